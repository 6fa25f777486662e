// Package display defines the screens the appliance can show and the
// renderers that put them on an output.
package display

import (
	"fmt"

	"github.com/sweeney/habit-button/internal/analytics"
)

// Kind selects one of the fixed screens.
type Kind string

const (
	KindIdle  Kind = "IDLE"
	KindStats Kind = "STATS"
	KindDone  Kind = "DONE"
)

// Screen is a render request. Stats is only meaningful for KindStats.
type Screen struct {
	Kind  Kind
	Stats analytics.Snapshot
}

// Idle is the resting screen.
func Idle() Screen { return Screen{Kind: KindIdle} }

// Stats is the screen shown after a logged press.
func Stats(s analytics.Snapshot) Screen { return Screen{Kind: KindStats, Stats: s} }

// Done is the screen shown once the stats have timed out.
func Done() Screen { return Screen{Kind: KindDone} }

// Display is the output device. Render may be slow (an e-paper refresh takes
// seconds) and is never called concurrently by the controller.
type Display interface {
	Render(s Screen) error
	// Sleep puts the panel in low-power mode after a render.
	Sleep() error
}

// Content is the text laid out on a screen.
type Content struct {
	Headline string
	Lines    []string
}

// Text returns the words shown for s.
func Text(s Screen) Content {
	switch s.Kind {
	case KindIdle:
		return Content{Headline: "WYAO"}
	case KindStats:
		return Content{
			Headline: "Keep it up!",
			Lines: []string{
				fmt.Sprintf("This week  %d", s.Stats.WeeklyVolume),
				fmt.Sprintf("Streak     %d %s", s.Stats.WeeklyStreak, plural(s.Stats.WeeklyStreak, "week", "weeks")),
				fmt.Sprintf("Total      %d", s.Stats.Total),
			},
		}
	case KindDone:
		return Content{Headline: "Done", Lines: []string{"See you next time"}}
	}
	return Content{Headline: string(s.Kind)}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
