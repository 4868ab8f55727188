package main

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-tutor/core"
	"github.com/koscakluka/ema-tutor/core/chat"
	"github.com/koscakluka/ema-tutor/core/quiz"
)

// status, speaking, preview, error and input lines
const footerHeight = 5

var (
	accentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	tutorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	highlightStyle = lipgloss.NewStyle().Background(lipgloss.Color("205")).Foreground(lipgloss.Color("0"))
	quizStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)

	stateStyles = map[orchestration.TurnState]lipgloss.Style{
		orchestration.TurnIdle:      dimStyle,
		orchestration.TurnListening: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		orchestration.TurnSpeaking:  accentStyle,
	}
)

func (m model) View() string {
	if !m.ready {
		return "Starting..."
	}

	lines := []string{
		m.viewport.View(),
		m.renderStatus(),
		m.fit(dimStyle.Render("Tutor: ") + renderSpoken(m.speaking, m.spokenIndex)),
		m.fit(dimStyle.Render("You:   ") + m.preview),
		m.renderError(),
		m.input.View(),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderStatus() string {
	state := stateStyles[m.state].Render("● " + m.state.String())
	parts := []string{state}
	if m.subject != "" {
		parts = append(parts, "subject: "+m.subject)
	}
	if m.waiting {
		parts = append(parts, m.spinner.View()+" waiting for tutor")
	}
	parts = append(parts, dimStyle.Render("ctrl+t talk · ctrl+s send now · esc quit"))
	return m.fit(strings.Join(parts, "  "))
}

func (m model) renderError() string {
	if m.lastErr == nil {
		return ""
	}
	return m.fit(errorStyle.Render("! " + m.lastErr.Error()))
}

func (m model) fit(line string) string {
	if m.width <= 0 {
		return line
	}
	return truncate.StringWithTail(line, uint(m.width), "…")
}

func (m model) renderTranscript() string {
	width := max(m.width-2, 20)

	var b strings.Builder
	for _, message := range m.messages {
		label := tutorStyle.Render("Tutor")
		if message.Role == chat.RoleUser {
			label = userStyle.Render("You")
		}
		b.WriteString(label + "\n")
		b.WriteString(wordwrap.String(message.Content, width) + "\n\n")
	}
	for _, notice := range m.notices {
		b.WriteString(dimStyle.Render(wordwrap.String(notice, width)) + "\n")
	}
	if m.quiz != nil {
		b.WriteString(renderQuiz(*m.quiz, m.quizIndex, width-4))
	}
	return b.String()
}

func renderQuiz(q quiz.Quiz, index int, width int) string {
	if index < 0 || index >= len(q.Questions) {
		return ""
	}
	question := q.Questions[index]

	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d\n", index+1, len(q.Questions))
	b.WriteString(wordwrap.String(question.Prompt, width))
	switch question.Type {
	case quiz.MultipleChoice:
		for _, choice := range question.Choices() {
			b.WriteString("\n" + wordwrap.String(choice.Letter+") "+choice.Text, width))
		}
	case quiz.TrueFalse:
		b.WriteString("\nTrue / False")
	}
	b.WriteString("\n" + dimStyle.Render("say an answer, next, previous, repeat or submit"))
	return quizStyle.Render(b.String())
}

// renderSpoken highlights the word starting at the rune offset index.
func renderSpoken(text string, index int) string {
	runes := []rune(text)
	if index < 0 || index >= len(runes) {
		return text
	}

	end := index
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}
	return string(runes[:index]) + highlightStyle.Render(string(runes[index:end])) + string(runes[end:])
}
