package display

import "sync"

// Fake records every screen it is asked to render.
type Fake struct {
	mu      sync.Mutex
	screens []Screen
	sleeps  int

	// RenderError, if set, will be returned by Render (and nothing recorded).
	RenderError error
	// SleepError, if set, will be returned by Sleep.
	SleepError error
	// OnRender, if set, runs inside Render before it returns. Tests use it
	// to block a render or to inspect state mid-render.
	OnRender func(Screen)
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Render records s.
func (f *Fake) Render(s Screen) error {
	f.mu.Lock()
	hook := f.OnRender
	err := f.RenderError
	f.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.screens = append(f.screens, s)
	f.mu.Unlock()
	return nil
}

// Sleep counts the call.
func (f *Fake) Sleep() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SleepError != nil {
		return f.SleepError
	}
	f.sleeps++
	return nil
}

// Screens returns a copy of the rendered screens.
func (f *Fake) Screens() []Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Screen(nil), f.screens...)
}

// Last returns the most recent screen.
func (f *Fake) Last() (Screen, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.screens) == 0 {
		return Screen{}, false
	}
	return f.screens[len(f.screens)-1], true
}

// Sleeps returns how many times Sleep succeeded.
func (f *Fake) Sleeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sleeps
}

// SetRenderError changes RenderError under the lock.
func (f *Fake) SetRenderError(err error) {
	f.mu.Lock()
	f.RenderError = err
	f.mu.Unlock()
}
