package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/conversation"
	"github.com/xxxsen/bingio/internal/render"
)

type changedMsg struct{}

type submittedMsg struct {
	message conversation.Message
	err     error
}

// Model is the Bubble Tea model of the chat client. All state lives in the
// conversation store; the model only renders it and forwards commands.
type Model struct {
	ctx     context.Context
	session *conversation.Session
	store   *conversation.Store
	input   textinput.Model
	view    viewport.Model
	status  string
	ready   bool
	busy    bool
}

func New(ctx context.Context, session *conversation.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "How are you feeling, and who are you watching with?"
	ti.Focus()
	ti.CharLimit = 1000
	return Model{
		ctx:     ctx,
		session: session,
		store:   session.Store(),
		input:   ti,
		view:    viewport.New(0, 0),
		status:  "enter: send  esc: stop  ctrl+n: new chat  ctrl+c: quit",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

func (m Model) waitForChange() tea.Cmd {
	changes := m.store.Changes()
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func (m Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.session.Submit(m.ctx, text)
		return submittedMsg{message: msg, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := boxStyle.GetFrameSize()
		reserved := 1 + 1 + frame + 3
		m.view.Width = max(20, msg.Width)
		m.view.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil
	case changedMsg:
		m.refresh()
		return m, m.waitForChange()
	case submittedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = statusFor(msg.message)
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.store.CancelAll(m.ctx)
			return m, tea.Quit
		case tea.KeyEsc:
			if m.store.InFlight() > 0 {
				m.store.CancelAll(m.ctx)
				m.status = "Stopped."
			}
			return m, nil
		case tea.KeyCtrlN:
			m.store.Clear(m.ctx)
			m.status = "New conversation."
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			return m, m.submit(text)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.view.SetContent(Transcript(m.store.Messages(), m.store.Durations(), m.view.Width))
	m.view.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Bingio")
	input := boxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + m.view.View() + "\n" + input + "\n" + status
}

func statusFor(msg conversation.Message) string {
	switch msg.Outcome {
	case conversation.OutcomeCancelled:
		return "Stopped."
	case conversation.OutcomeError:
		return "Something went wrong."
	}
	return "Ready."
}

// Transcript renders messages oldest first with a header line per message.
func Transcript(messages []conversation.Message, durations map[string]int64, width int) string {
	if len(messages) == 0 {
		return hintStyle.Render("Start a new conversation.")
	}
	wrap := lipgloss.NewStyle()
	if width > 4 {
		wrap = wrap.Width(width - 2)
	}
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, header(msg, durations)+"\n"+wrap.Render(render.Body(msg)))
	}
	return strings.Join(blocks, "\n\n")
}

func header(msg conversation.Message, durations map[string]int64) string {
	name := userStyle.Render("You")
	if msg.Role == conversation.RoleAssistant {
		name = assistantStyle.Render("Bingio")
	}
	meta := render.Timestamp(msg)
	if ms, ok := durations[msg.ID]; ok && msg.Role == conversation.RoleAssistant {
		meta = strings.TrimSpace(fmt.Sprintf("%s  %s", meta, render.Duration(ms)))
	}
	if meta == "" {
		return name
	}
	return name + " " + hintStyle.Render(meta)
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, session *conversation.Session) error {
	_, err := tea.NewProgram(New(ctx, session), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		logutil.GetLogger(ctx).Error("chat client exited", zap.Error(err))
	}
	return err
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
