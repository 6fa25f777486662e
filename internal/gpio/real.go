//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const chipName = "gpiochip0"

// RealButton reads the button from actual hardware using the Linux GPIO
// character device.
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	// Set when edge events are enabled; Read then returns the level tracked
	// by the event handler instead of polling the line.
	edges   bool
	pressed atomic.Bool
}

// NewRealButton requests pin as an input with pull-up. With edges set, the
// kernel reports both edges (debounced by debounce, if non-zero) and Read
// returns the last reported level.
func NewRealButton(pin int, edges bool, debounce time.Duration) (*RealButton, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealButton{chip: chip, edges: edges}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	if edges {
		opts = append(opts, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(b.handleEvent))
		if debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(debounce))
		}
	}

	line, err := chip.RequestLine(pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line

	if edges {
		raw, err := line.Value()
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("read button pin %d: %w", pin, err)
		}
		b.pressed.Store(raw == 0)
	}
	return b, nil
}

func (b *RealButton) handleEvent(evt gpiocdev.LineEvent) {
	// Falling edge: pulled to ground by the switch.
	b.pressed.Store(evt.Type == gpiocdev.LineEventFallingEdge)
}

// Read returns true while the button is held down.
func (b *RealButton) Read() (bool, error) {
	if b.edges {
		return b.pressed.Load(), nil
	}
	raw, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return raw == 0, nil
}

// Close releases GPIO resources.
// Reconfigures the line to input with pull-up (the Pi boot default for this
// pin) before closing.
func (b *RealButton) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLED drives the status LED on actual hardware.
type RealLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealLED requests pin as an output with the given initial level.
func NewRealLED(pin int, on bool) (*RealLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(level(on)))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pin, err)
	}
	return &RealLED{chip: chip, line: line}, nil
}

// Set switches the LED.
func (l *RealLED) Set(on bool) error {
	if err := l.line.SetValue(level(on)); err != nil {
		return fmt.Errorf("set LED pin: %w", err)
	}
	return nil
}

// Close switches the LED off and releases GPIO resources.
func (l *RealLED) Close() error {
	var errs []error
	if l.line != nil {
		if err := l.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear LED pin: %w", err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pin: %w", err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
