package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	conversation "github.com/ParkKunsu/MaLangEE-sub000/core"
	"github.com/ParkKunsu/MaLangEE-sub000/core/events"
)

type stateMsg conversation.ConversationState

type eventMsg struct{ event events.Event }

type completedMsg struct{ report *conversation.SessionReport }

type transcriptEntry struct {
	speaker string
	text    string
	korean  string
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	speakerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	koreanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type model struct {
	session  *conversation.Session
	messages <-chan tea.Msg

	input      textinput.Model
	state      conversation.ConversationState
	transcript []transcriptEntry
	report     *conversation.SessionReport

	width  int
	height int

	quitting bool
}

func newModel(session *conversation.Session, messages <-chan tea.Msg) model {
	input := textinput.New()
	input.Placeholder = "Type in English, or just speak..."
	input.Focus()

	return model{
		session:  session,
		messages: messages,
		input:    input,
		state:    session.State(),
		width:    80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// listen waits for the next session callback bridged onto the message
// channel. It re-arms itself after every delivery.
func (m model) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.messages
		if !ok {
			return nil
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.session.Close()
			return m, tea.Quit
		case "ctrl+t":
			m.session.SetMuted(!m.state.IsMuted)
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if err := m.session.SendText(text); err == nil {
				m.transcript = append(m.transcript, transcriptEntry{speaker: "you", text: text})
				m.input.Reset()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case stateMsg:
		m.state = conversation.ConversationState(msg)
		return m, m.listen()

	case eventMsg:
		m.handleEvent(msg.event)
		return m, m.listen()

	case completedMsg:
		m.report = msg.report
		return m, m.listen()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleEvent(event events.Event) {
	switch typedEvent := event.(type) {
	case events.UserTranscriptUpdated:
		if typedEvent.Transcript != "" {
			m.transcript = append(m.transcript, transcriptEntry{speaker: "you", text: typedEvent.Transcript})
		}
	case events.AssistantMessageFinal:
		if typedEvent.Message != "" {
			m.transcript = append(m.transcript, transcriptEntry{speaker: "malangee", text: typedEvent.Message})
		}
	case events.AssistantTranslationUpdated:
		for i := len(m.transcript) - 1; i >= 0; i-- {
			if m.transcript[i].speaker == "malangee" && m.transcript[i].text == typedEvent.Message {
				m.transcript[i].korean = typedEvent.Translation
				break
			}
		}
	case events.ScenarioCompleted:
		m.transcript = append(m.transcript, transcriptEntry{
			speaker: "malangee",
			text: fmt.Sprintf("Scenario ready: %s with %s, goal: %s",
				typedEvent.Place, typedEvent.ConversationPartner, typedEvent.ConversationGoal),
		})
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("MaLangEE"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n\n")

	width := m.width
	if width <= 0 {
		width = 80
	}

	for _, entry := range m.transcript {
		label := speakerStyle.Render(entry.speaker)
		if entry.speaker == "malangee" {
			label = assistantStyle.Render(entry.speaker)
		}
		b.WriteString(label + " " + wordwrap.String(entry.text, width-12) + "\n")
		if entry.korean != "" {
			b.WriteString("         " + koreanStyle.Render(wordwrap.String(entry.korean, width-12)) + "\n")
		}
	}

	if m.state.Error != nil {
		b.WriteString("\n" + errorStyle.Render(m.state.Error.Message) + "\n")
	}

	if m.report != nil {
		b.WriteString(fmt.Sprintf("\nSession over: %.0fs total, %.0fs of speaking practice.\n",
			m.report.TotalDurationSec, m.report.UserSpeechDurationSec))
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(statusStyle.Render("enter send · ctrl+t mute · esc quit"))
	return b.String()
}

func (m model) statusLine() string {
	indicators := []string{m.state.ConnectionState}
	if m.state.IsAISpeaking {
		indicators = append(indicators, "speaking")
	}
	if m.state.IsUserSpeaking {
		indicators = append(indicators, "listening to you")
	}
	if m.state.IsRecording {
		indicators = append(indicators, "mic on")
	}
	if m.state.IsMuted {
		indicators = append(indicators, "muted")
	}
	return strings.Join(indicators, " · ")
}
