package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var errPickerCancelled = errors.New("no client selected")

var (
	pickerUp     = key.NewBinding(key.WithKeys("up", "k"))
	pickerDown   = key.NewBinding(key.WithKeys("down", "j"))
	pickerSelect = key.NewBinding(key.WithKeys("enter"))
	pickerQuit   = key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"))

	pickerSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#7D56F4")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 1)

	pickerItemStyle = lipgloss.NewStyle().Padding(0, 1)
)

// peerPicker lets the user choose one username from the directory listing.
type peerPicker struct {
	names    []string
	selected int
	height   int

	chosen    string
	cancelled bool
}

func newPeerPicker(names []string) *peerPicker {
	return &peerPicker{names: names}
}

func (p *peerPicker) Init() tea.Cmd {
	return nil
}

func (p *peerPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.height = msg.Height

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pickerQuit):
			p.cancelled = true
			return p, tea.Quit

		case key.Matches(msg, pickerUp):
			if p.selected > 0 {
				p.selected--
			}

		case key.Matches(msg, pickerDown):
			if p.selected < len(p.names)-1 {
				p.selected++
			}

		case key.Matches(msg, pickerSelect):
			if len(p.names) > 0 {
				p.chosen = p.names[p.selected]
				return p, tea.Quit
			}
		}
	}
	return p, nil
}

func (p *peerPicker) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Select a client"))
	b.WriteString("\n\n")

	start, end := p.window()
	for i := start; i < end; i++ {
		if i == p.selected {
			b.WriteString(pickerSelectedStyle.Render(p.names[i]))
		} else {
			b.WriteString(pickerItemStyle.Render(p.names[i]))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(idStyle.Render(fmt.Sprintf("%d/%d  ↑/↓ move • enter select • esc cancel", p.selected+1, len(p.names))))
	return b.String()
}

// window returns the visible slice of names, keeping the selection centered.
func (p *peerPicker) window() (int, int) {
	maxVisible := p.height - 6
	if maxVisible < 5 {
		maxVisible = 5
	}
	if len(p.names) <= maxVisible {
		return 0, len(p.names)
	}

	start := p.selected - maxVisible/2
	if start < 0 {
		start = 0
	}
	end := start + maxVisible
	if end > len(p.names) {
		end = len(p.names)
		start = end - maxVisible
	}
	return start, end
}

func pickPeer(names []string) (string, error) {
	final, err := tea.NewProgram(newPeerPicker(names)).Run()
	if err != nil {
		return "", err
	}
	p := final.(*peerPicker)
	if p.cancelled || p.chosen == "" {
		return "", errPickerCancelled
	}
	return p.chosen, nil
}
