package display

import (
	"log"
	"strings"
)

// Logger renders screens as log lines. Useful on a headless Pi without the
// panel attached.
type Logger struct{}

// Render logs the screen text.
func (Logger) Render(s Screen) error {
	c := Text(s)
	if len(c.Lines) == 0 {
		log.Printf("display: %s: %s", s.Kind, c.Headline)
		return nil
	}
	log.Printf("display: %s: %s | %s", s.Kind, c.Headline, strings.Join(c.Lines, " | "))
	return nil
}

// Sleep logs the power-down.
func (Logger) Sleep() error {
	log.Printf("display: sleep")
	return nil
}
