package gpio

import (
	"log"
	"sync"
	"time"
)

// Indicator holds the LED at a rest level and flashes it on demand without
// blocking the caller.
type Indicator struct {
	led LED

	mu       sync.Mutex
	rest     bool
	flashing bool

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// NewIndicator wraps led. restOn selects whether the LED is lit at rest.
func NewIndicator(led LED, restOn bool) *Indicator {
	return &Indicator{led: led, rest: restOn, sleep: time.Sleep}
}

// Rest puts the LED at its rest level.
func (i *Indicator) Rest() error {
	i.mu.Lock()
	on := i.rest
	i.mu.Unlock()
	return i.led.Set(on)
}

// Flash toggles the LED away from its rest level and back, times times,
// on a separate goroutine. A Flash requested while one is running is dropped.
func (i *Indicator) Flash(times int, interval time.Duration) {
	i.mu.Lock()
	if i.flashing {
		i.mu.Unlock()
		return
	}
	i.flashing = true
	i.mu.Unlock()

	go i.blink(times, interval)
}

func (i *Indicator) blink(times int, interval time.Duration) {
	defer func() {
		i.mu.Lock()
		i.flashing = false
		i.mu.Unlock()
	}()

	i.mu.Lock()
	rest := i.rest
	i.mu.Unlock()

	for n := 0; n < times; n++ {
		if err := i.led.Set(!rest); err != nil {
			log.Printf("led: flash: %v", err)
			return
		}
		i.sleep(interval)
		if err := i.led.Set(rest); err != nil {
			log.Printf("led: flash: %v", err)
			return
		}
		i.sleep(interval)
	}
}
