package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Decision is the outcome of a confirmation prompt
type Decision int

const (
	Undecided Decision = iota
	Accepted
	Denied
)

func (d Decision) String() string {
	return [...]string{"undecided", "accepted", "denied"}[d]
}

const acceptText = "YES"

type confirmKeyMap struct {
	Quit  key.Binding
	Enter key.Binding
}

var defaultConfirmKeyMap = confirmKeyMap{
	Quit:  key.NewBinding(key.WithKeys(tea.KeyEsc.String(), tea.KeyCtrlC.String())),
	Enter: key.NewBinding(key.WithKeys(tea.KeyEnter.String())),
}

// ConfirmModel asks the user to type YES before something irreversible. Only
// the letters of YES in order are accepted; Esc or Ctrl+C declines.
type ConfirmModel struct {
	Prompt string

	keys     confirmKeyMap
	input    textinput.Model
	decision Decision
	done     bool
}

var _ tea.Model = (*ConfirmModel)(nil)

// NewConfirm returns a prompt showing the given question
func NewConfirm(prompt string) *ConfirmModel {
	input := textinput.New()
	input.Placeholder = acceptText
	input.Prompt = strings.TrimSuffix(prompt, " ") + " "
	input.PromptStyle = promptStyle
	input.PlaceholderStyle = placeholderStyle
	input.CharLimit = len(acceptText)
	input.Focus()

	return &ConfirmModel{
		Prompt: prompt,
		keys:   defaultConfirmKeyMap,
		input:  input,
	}
}

// Decision returns what the user chose
func (m *ConfirmModel) Decision() Decision {
	return m.decision
}

func (m *ConfirmModel) Init() tea.Cmd {
	return textinput.Blink
}

// validNext reports whether s may follow the text typed so far
func validNext(s, current string) bool {
	if len(current) >= len(acceptText) {
		return false
	}
	return s == string(acceptText[len(current)])
}

func (m *ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.decision = Denied
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Enter):
		if m.input.Value() == acceptText {
			m.decision = Accepted
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case keyMsg.Type == tea.KeyBackspace:
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	default:
		if validNext(keyMsg.String(), m.input.Value()) {
			m.input, cmd = m.input.Update(msg)
		}
		return m, cmd
	}
}

func (m *ConfirmModel) View() string {
	if m.done {
		answer := "No"
		if m.decision == Accepted {
			answer = acceptText
		}
		return promptPrefixStyle.Render("? ") + promptStyle.Render(m.Prompt) + " " + answer + "\n"
	}

	mark := invalidStyle.Render("✗")
	if m.input.Value() == acceptText {
		mark = validStyle.Render("✓")
	}
	return promptPrefixStyle.Render("? ") + m.input.View() + " " + mark
}

// Confirm shows the prompt on out, reads keys from in and reports whether the
// user typed YES
func Confirm(prompt string, in io.Reader, out io.Writer) (bool, error) {
	m := NewConfirm(prompt)
	p := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return m.Decision() == Accepted, nil
}
