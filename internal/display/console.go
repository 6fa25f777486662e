package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Panel geometry in terminal cells, roughly the 250x122 e-paper aspect ratio.
const (
	panelWidth  = 32
	panelHeight = 7
)

var (
	panelStyle = lipgloss.NewStyle().
			Width(panelWidth).
			Height(panelHeight).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#6E6E6E")).
			Align(lipgloss.Center, lipgloss.Center)
	idleStyle     = lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 2)
	headlineStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	lineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	sleepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
)

// Console draws screens as a bordered panel on a terminal. It stands in for
// the e-paper panel on a development machine.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Render writes the panel for s.
func (c *Console) Render(s Screen) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, Draw(s))
	return err
}

// Sleep writes a dimmed marker line.
func (c *Console) Sleep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, sleepStyle.Render("(panel asleep)"))
	return err
}

// Draw lays out s as a panel string.
func Draw(s Screen) string {
	content := Text(s)
	var body string
	switch s.Kind {
	case KindIdle:
		body = idleStyle.Render(content.Headline)
	default:
		parts := []string{headlineStyle.Render(content.Headline), ""}
		for _, l := range content.Lines {
			parts = append(parts, lineStyle.Render(l))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, parts...)
	}
	return panelStyle.Render(strings.TrimRight(body, "\n"))
}
