package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// separatorRun matches any mixture of whitespace, commas, colons and semicolons.
const separatorRun = `[\s,;:]*`

// KeywordConfig configures a KeywordHandler.
//
// Keyword is a regular-expression fragment such as "register|reg|join". Its
// own capture groups are ignored when isolating the remainder.
type KeywordConfig struct {
	Name    string
	Keyword string
	Help    func(ctx context.Context, msg *Message) error
	Handle  func(ctx context.Context, msg *Message, text string) error
}

// KeywordHandler accepts messages that start with a keyword and passes the
// rest of the text to Handle, or calls Help when nothing follows the keyword.
type KeywordHandler struct {
	name    string
	keyword string
	matcher *regexp.Regexp
	help    func(ctx context.Context, msg *Message) error
	handle  func(ctx context.Context, msg *Message, text string) error
}

// NewKeywordHandler validates cfg and compiles its matcher.
func NewKeywordHandler(cfg KeywordConfig) (*KeywordHandler, error) {
	keyword := strings.TrimSpace(cfg.Keyword)
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = keyword
	}

	if keyword == "" {
		return nil, configError(name, ErrMissingKeyword)
	}
	if cfg.Handle == nil {
		return nil, configError(name, ErrMissingHandle)
	}
	if cfg.Help == nil {
		return nil, configError(name, ErrMissingHelp)
	}

	matcher, err := regexp.Compile(KeywordExpression(keyword))
	if err != nil {
		return nil, configError(name, fmt.Errorf("%w: %v", ErrInvalidExpression, err))
	}

	return &KeywordHandler{
		name:    name,
		keyword: keyword,
		matcher: matcher,
		help:    cfg.Help,
		handle:  cfg.Handle,
	}, nil
}

// KeywordExpression builds the case-insensitive matcher source for a keyword
// fragment. The last capture group holds the remainder with surrounding
// separators removed.
func KeywordExpression(keyword string) string {
	return `(?is)^\s*(?:` + keyword + `)` + separatorRun + `(.*?)` + separatorRun + `$`
}

func (h *KeywordHandler) Name() string {
	return h.name
}

// Keyword returns the configured keyword fragment.
func (h *KeywordHandler) Keyword() string {
	return h.keyword
}

// Expression returns the compiled matcher source.
func (h *KeywordHandler) Expression() string {
	return h.matcher.String()
}

func (h *KeywordHandler) Dispatch(ctx context.Context, msg *Message) (bool, error) {
	matches := h.matcher.FindStringSubmatch(msg.Text())
	if matches == nil {
		return false, nil
	}

	remainder := strings.TrimSpace(matches[len(matches)-1])
	if remainder == "" {
		return true, h.help(ctx, msg)
	}

	return true, h.handle(ctx, msg, remainder)
}
