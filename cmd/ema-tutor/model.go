package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	orchestration "github.com/koscakluka/ema-tutor/core"
	"github.com/koscakluka/ema-tutor/core/chat"
	"github.com/koscakluka/ema-tutor/core/quiz"
)

// tutor is the part of the orchestrator the terminal UI drives.
type tutor interface {
	EnableVoiceChat(ctx context.Context) error
	DisableVoiceChat()
	VoiceChatEnabled() bool
	SendMessage(ctx context.Context, text string) chat.Result
	SendNow()
}

type (
	previewMsg       string
	messageMsg       chat.Message
	subjectMsg       string
	badgesMsg        []string
	turnStateMsg     orchestration.TurnState
	speakingMsg      string
	wordBoundaryMsg  int
	quizIndexMsg     int
	quizClosedMsg    struct{}
	quizOpenedMsg    struct{ quiz quiz.Quiz }
	quizSubmittedMsg struct {
		answers []string
		score   quiz.Score
	}
	errMsg   struct{ err error }
	sentMsg  struct{ result chat.Result }
	voiceMsg struct{ err error }
)

type model struct {
	ctx   context.Context
	tutor tutor

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	ready    bool

	messages    []chat.Message
	subject     string
	notices     []string
	preview     string
	state       orchestration.TurnState
	voice       bool
	waiting     bool
	speaking    string
	spokenIndex int

	quiz      *quiz.Quiz
	quizIndex int
	lastErr   error
}

func newModel(ctx context.Context, tutor tutor) model {
	input := textinput.New()
	input.Placeholder = "Type a message, or press ctrl+t to talk"
	input.CharLimit = 2000
	input.Focus()

	return model{
		ctx:         ctx,
		tutor:       tutor,
		input:       input,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		state:       orchestration.TurnIdle,
		spokenIndex: -1,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = msg.Width, height
		}
		m.input.Width = max(msg.Width-4, 10)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+t":
			cmds = append(cmds, m.toggleVoice())
		case "ctrl+s":
			cmds = append(cmds, m.sendNow())
		case "enter":
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case previewMsg:
		m.preview = string(msg)
	case messageMsg:
		m.upsert(chat.Message(msg))
		if msg.Role == chat.RoleUser {
			m.preview = ""
		}
	case subjectMsg:
		m.subject = string(msg)
	case badgesMsg:
		m.notices = append(m.notices, "New badges: "+strings.Join(msg, ", "))
	case turnStateMsg:
		m.state = orchestration.TurnState(msg)
		m.voice = m.state != orchestration.TurnIdle
		if m.state != orchestration.TurnSpeaking {
			m.speaking, m.spokenIndex = "", -1
		}
	case speakingMsg:
		m.speaking, m.spokenIndex = string(msg), -1
	case wordBoundaryMsg:
		m.spokenIndex = int(msg)
	case quizOpenedMsg:
		q := msg.quiz
		m.quiz, m.quizIndex = &q, 0
	case quizIndexMsg:
		m.quizIndex = int(msg)
	case quizSubmittedMsg:
		m.notices = append(m.notices, fmt.Sprintf("Quiz submitted: %d/%d (%.0f%%)",
			msg.score.Correct, msg.score.Total, msg.score.Percentage))
	case quizClosedMsg:
		m.quiz = nil
	case errMsg:
		m.lastErr = msg.err
	case sentMsg:
		m.waiting = false
		if msg.result.Err != nil {
			m.lastErr = msg.result.Err
		}
	case voiceMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		}
		m.voice = m.tutor.VoiceChatEnabled()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	if m.ready {
		atBottom := m.viewport.AtBottom()
		m.viewport.SetContent(m.renderTranscript())
		if atBottom {
			m.viewport.GotoBottom()
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// upsert appends message, or replaces it when it was amended.
func (m *model) upsert(message chat.Message) {
	for i := range m.messages {
		if m.messages[i].ID == message.ID && message.ID != uuid.Nil {
			m.messages[i] = message
			return
		}
	}
	m.messages = append(m.messages, message)
}

func (m *model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return nil
	}
	m.input.SetValue("")
	m.waiting = true
	m.lastErr = nil

	ctx, tutor := m.ctx, m.tutor
	return func() tea.Msg {
		return sentMsg{result: tutor.SendMessage(ctx, text)}
	}
}

// toggleVoice runs outside the update loop, the orchestrator reports back
// through the program.
func (m *model) toggleVoice() tea.Cmd {
	ctx, tutor, enable := m.ctx, m.tutor, !m.voice
	m.lastErr = nil
	return func() tea.Msg {
		if !enable {
			tutor.DisableVoiceChat()
			return voiceMsg{}
		}
		return voiceMsg{err: tutor.EnableVoiceChat(ctx)}
	}
}

func (m *model) sendNow() tea.Cmd {
	if !m.voice || m.preview == "" {
		return nil
	}
	tutor := m.tutor
	return func() tea.Msg {
		tutor.SendNow()
		return nil
	}
}
