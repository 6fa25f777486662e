package press

import (
	"context"
	"log"
	"time"
)

// Source is a readable button level. gpio.Button satisfies it.
type Source interface {
	Read() (bool, error)
}

// Poller samples a Source on every tick and feeds the classifier. Emitted
// events go to sink, which must not block.
type Poller struct {
	src        Source
	classifier *Classifier
	sink       func(Kind)
	now        func() time.Time
	interval   time.Duration

	faults int
}

// NewPoller creates a Poller. now supplies the sample timestamps. A
// non-positive cfg.PollInterval falls back to the default.
func NewPoller(src Source, cfg Config, sink func(Kind), now func() time.Time) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Poller{
		src:        src,
		classifier: NewClassifier(cfg),
		sink:       sink,
		now:        now,
		interval:   cfg.PollInterval,
	}
}

// Interval returns the sampling period the tick source should use.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Poll takes one sample. A read error is an input fault: it is logged and
// the classifier state is left as it was.
func (p *Poller) Poll() {
	pressed, err := p.src.Read()
	if err != nil {
		p.faults++
		log.Printf("press: read button: %v", err)
		return
	}
	if kind, ok := p.classifier.Process(Sample{Pressed: pressed, Time: p.now()}); ok {
		log.Printf("press: %s", kind)
		p.sink(kind)
	}
}

// Run polls on every tick until ctx is done or tick is closed.
func (p *Poller) Run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-tick:
			if !ok {
				return
			}
			p.Poll()
		}
	}
}

// Faults returns the number of failed reads.
func (p *Poller) Faults() int {
	return p.faults
}

// Idle reports whether no press is in progress.
func (p *Poller) Idle() bool {
	return p.classifier.Idle()
}
