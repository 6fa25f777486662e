package gpio

import (
	"errors"
	"sync"
)

// FakeButton is a test double that returns scripted button levels.
type FakeButton struct {
	// Samples contains the scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples []bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the button to the beginning of samples.
func (f *FakeButton) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeLED records every level it is set to. It is safe for concurrent use
// because Indicator flashes from its own goroutine.
type FakeLED struct {
	mu     sync.Mutex
	levels []bool
	closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeLED creates a FakeLED.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// Set records the level.
func (f *FakeLED) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.levels = append(f.levels, on)
	return nil
}

// Levels returns a copy of the recorded levels.
func (f *FakeLED) Levels() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.levels...)
}

// Closed reports whether Close was called.
func (f *FakeLED) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
