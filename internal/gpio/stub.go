//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(pin int, edges bool, debounce time.Duration) (*RealButton, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (b *RealButton) Read() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}

// RealLED is not available on non-Linux platforms.
type RealLED struct{}

// NewRealLED returns an error on non-Linux platforms.
func NewRealLED(pin int, on bool) (*RealLED, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (l *RealLED) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (l *RealLED) Close() error {
	return nil
}
