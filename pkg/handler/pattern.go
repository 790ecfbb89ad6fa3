package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Group is one positional capture of a pattern match. Matched is false for an
// optional group that did not take part in the match.
type Group struct {
	Value   string
	Matched bool
}

// PatternConfig configures a PatternHandler. Pattern is used verbatim, so
// anchoring and whitespace handling are up to its author.
type PatternConfig struct {
	Name    string
	Pattern string
	Handle  func(ctx context.Context, msg *Message, groups []Group) error
}

// PatternHandler accepts messages matching an arbitrary pattern and passes the
// capture groups to Handle in order.
type PatternHandler struct {
	name    string
	pattern string
	matcher *regexp.Regexp
	handle  func(ctx context.Context, msg *Message, groups []Group) error
}

// NewPatternHandler validates cfg and compiles its pattern case-insensitively.
func NewPatternHandler(cfg PatternConfig) (*PatternHandler, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = cfg.Pattern
	}

	if cfg.Pattern == "" {
		return nil, configError(name, ErrMissingPattern)
	}
	if cfg.Handle == nil {
		return nil, configError(name, ErrMissingHandle)
	}

	matcher, err := regexp.Compile("(?i)" + cfg.Pattern)
	if err != nil {
		return nil, configError(name, fmt.Errorf("%w: %v", ErrInvalidExpression, err))
	}

	return &PatternHandler{
		name:    name,
		pattern: cfg.Pattern,
		matcher: matcher,
		handle:  cfg.Handle,
	}, nil
}

func (h *PatternHandler) Name() string {
	return h.name
}

// Expression returns the compiled matcher source.
func (h *PatternHandler) Expression() string {
	return h.matcher.String()
}

func (h *PatternHandler) Dispatch(ctx context.Context, msg *Message) (bool, error) {
	text := msg.Text()
	loc := h.matcher.FindStringSubmatchIndex(text)
	if loc == nil {
		return false, nil
	}

	return true, h.handle(ctx, msg, groupsFromIndex(text, loc))
}

func groupsFromIndex(text string, loc []int) []Group {
	groups := make([]Group, len(loc)/2-1)
	for i := range groups {
		start, end := loc[2*i+2], loc[2*i+3]
		if start < 0 {
			continue
		}
		groups[i] = Group{Value: text[start:end], Matched: true}
	}

	return groups
}
