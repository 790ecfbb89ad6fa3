package phone

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smsrouter/pkg/router"
)

const (
	roleSent   = "sent"
	roleReply  = "reply"
	roleError  = "error"
	roleSystem = "system"

	notHandledText = "(not handled)"
	wheelStep      = 3
)

type bubble struct {
	role    string
	from    string
	content string
}

type sendResultMsg struct {
	result router.Result
	err    error
}

type model struct {
	ctx    context.Context
	sendFn SendFunc
	info   Info

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	bubbles   []bubble
	identity  string
	width     int
	height    int
	isReady   bool
	isSending bool
	followLog bool
	sent      int
	handled   int
}

func newModel(ctx context.Context, sendFn SendFunc, info Info) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Type a text message..."
	in.Focus()
	in.CharLimit = 0

	identity := strings.TrimSpace(info.Identity)
	if identity == "" {
		identity = defaultIdentity
	}

	return &model{
		ctx:       ctx,
		sendFn:    sendFn,
		info:      info,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  viewport.New(60, 12),
		identity:  identity,
		width:     72,
		height:    28,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.MouseMsg:
		m.handleViewportMouse(typed)
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.handleViewportKey(typed) {
			return m, nil
		}

		if typed.String() == "enter" {
			return m, m.submit()
		}
	case spinner.TickMsg:
		if !m.isSending {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case sendResultMsg:
		m.applyResult(typed)
		return m, nil
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles the enter key: local commands are applied in place and
// anything else is sent through the router as the current identity.
func (m *model) submit() tea.Cmd {
	if m.isSending {
		return nil
	}

	text := m.input.Value()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if isExitCommand(trimmed) {
		return tea.Quit
	}

	m.input.SetValue("")
	m.followLog = true

	if identity, ok := parseIdentityCommand(trimmed); ok {
		m.identity = identity
		m.bubbles = append(m.bubbles, bubble{role: roleSystem, content: "now texting as " + identity})
		m.refreshViewport(true)
		return nil
	}

	m.bubbles = append(m.bubbles, bubble{role: roleSent, from: m.identity, content: text})
	m.sent++
	m.isSending = true
	m.refreshViewport(true)

	return tea.Batch(m.spinner.Tick, sendCmd(m.ctx, m.sendFn, m.identity, text))
}

func (m *model) applyResult(msg sendResultMsg) {
	m.isSending = false

	for _, reply := range msg.result.Replies {
		role := roleReply
		if reply.IsError() {
			role = roleError
		}
		m.bubbles = append(m.bubbles, bubble{role: role, from: msg.result.Handler, content: reply.Text()})
	}

	switch {
	case msg.err != nil:
		m.bubbles = append(m.bubbles, bubble{role: roleError, from: msg.result.Handler, content: msg.err.Error()})
	case !msg.result.Handled:
		m.bubbles = append(m.bubbles, bubble{role: roleSystem, content: notHandledText})
	}

	if msg.result.Handled {
		m.handled++
	}

	m.refreshViewport(false)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}

	header := m.theme.header.Width(m.width - 2).Render("📱 smsrouter phone")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"from:%s · apps:%s · sent:%d · handled:%d",
		m.identity,
		displayOrNA(strings.Join(m.info.Handlers, ",")),
		m.sent,
		m.handled,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter send  ·  /as <number> switch phone  ·  PgUp/PgDn scroll  ·  🛑 Ctrl+C/Esc quit")
	if m.isSending {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s routing message...", m.spinner.View()))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("✉ "+m.identity)+" "+m.theme.hint.Render("(type /exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(40, m.width-6)
	h := max(8, m.height-10)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	bubbleWidth := max(20, m.viewport.Width*3/4)

	sections := make([]string, 0, len(m.bubbles))
	for _, item := range m.bubbles {
		sections = append(sections, m.renderBubble(item, bubbleWidth))
	}

	m.viewport.SetContent(strings.Join(sections, "\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

// renderBubble draws sent messages on the right and replies on the left,
// like a phone's message thread.
func (m *model) renderBubble(item bubble, width int) string {
	body := strings.TrimSpace(item.content)

	switch item.role {
	case roleSent:
		card := lipgloss.JoinVertical(lipgloss.Right,
			m.theme.sentTitle.Render(item.from),
			m.theme.sentBox.Width(width).Render(body),
		)
		return lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Right, card)
	case roleReply:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.replyTitle.Render(displayOrNA(item.from)),
			m.theme.replyBox.Width(width).Render(body),
		)
	case roleError:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.errorTitle.Render(displayOrNA(item.from)),
			m.theme.errorBox.Width(width).Render(body),
		)
	default:
		return lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Center, m.theme.hint.Render(body))
	}
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.SetYOffset(m.viewport.YOffset - wheelStep)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.SetYOffset(m.viewport.YOffset + wheelStep)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func sendCmd(ctx context.Context, sendFn SendFunc, from string, text string) tea.Cmd {
	return func() tea.Msg {
		result, err := sendFn(ctx, from, text)
		return sendResultMsg{result: result, err: err}
	}
}

// parseIdentityCommand recognizes "/as <identity>".
func parseIdentityCommand(input string) (string, bool) {
	fields := strings.Fields(input)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "/as") {
		return "", false
	}

	return fields[1], true
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
