package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
)

// browser lists entry names and lets the user pick one. It only ever sees
// names; the secret is read after the program exits.
type browser struct {
	names     []string
	visible   []string
	cursor    int
	filter    textinput.Model
	filtering bool
	chosen    string
}

func newBrowser(names []string) browser {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/"
	b := browser{names: names, filter: ti}
	b.refilter()
	return b
}

// runBrowser shows the picker and returns the chosen name, or "" if the user
// quit without choosing.
func runBrowser(names []string) (string, error) {
	m, err := tea.NewProgram(newBrowser(names)).Run()
	if err != nil {
		return "", errors.Wrap(err, "browse")
	}
	return m.(browser).chosen, nil
}

func (b *browser) refilter() {
	q := b.filter.Value()
	b.visible = make([]string, 0, len(b.names))
	for _, n := range b.names {
		if q == "" || strings.Contains(strings.ToLower(n), strings.ToLower(q)) {
			b.visible = append(b.visible, n)
		}
	}
	if b.cursor >= len(b.visible) {
		b.cursor = len(b.visible) - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}
}

func (b browser) Init() tea.Cmd {
	return nil
}

func (b browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}
	if b.filtering {
		return b.updateFilter(key)
	}

	switch key.String() {
	case "q", "esc", "ctrl+c":
		return b, tea.Quit
	case "j", "down":
		if b.cursor < len(b.visible)-1 {
			b.cursor++
		}
	case "k", "up":
		if b.cursor > 0 {
			b.cursor--
		}
	case "/":
		b.filtering = true
		cmd := b.filter.Focus()
		return b, cmd
	case "enter":
		if len(b.visible) > 0 {
			b.chosen = b.visible[b.cursor]
			return b, tea.Quit
		}
	}
	return b, nil
}

func (b browser) updateFilter(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		return b, tea.Quit
	case "esc":
		b.filter.SetValue("")
		fallthrough
	case "enter":
		b.filtering = false
		b.filter.Blur()
		b.refilter()
		return b, nil
	}
	var cmd tea.Cmd
	b.filter, cmd = b.filter.Update(key)
	b.refilter()
	return b, cmd
}

func (b browser) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Vault Entries") + "\n\n")
	if len(b.visible) == 0 {
		s.WriteString(dimStyle.Render("no matching keys") + "\n")
	}
	for i, n := range b.visible {
		line := fmt.Sprintf("  %s", n)
		if i == b.cursor {
			line = selectedStyle.Render(line)
		}
		s.WriteString(line + "\n")
	}
	if b.filtering || b.filter.Value() != "" {
		s.WriteString("\n" + b.filter.View() + "\n")
	}
	s.WriteString(dimStyle.Render("\nj/k=move, /=filter, enter=copy, q=quit"))
	return s.String()
}
