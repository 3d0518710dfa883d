// Package progress plays a fixed sequence of cosmetic progress steps.
// The steps are not tied to bytes sent or server-side work.
package progress

import (
	"context"
	"time"
)

// Step is one progress update.
type Step struct {
	Percent int    `json:"percent"`
	Label   string `json:"label"`
}

// DefaultSteps is the standard four-phase sequence.
var DefaultSteps = []Step{
	{Percent: 25, Label: "Reading file..."},
	{Percent: 50, Label: "Extracting text..."},
	{Percent: 75, Label: "Analyzing content..."},
	{Percent: 100, Label: "Organizing data..."},
}

// DefaultDelay is the pause after each step.
const DefaultDelay = 800 * time.Millisecond

// Simulator emits Steps in order, pausing Delay after each one.
type Simulator struct {
	Steps []Step
	Delay time.Duration
}

func New(delay time.Duration) *Simulator {
	if delay < 0 {
		delay = 0
	}
	return &Simulator{Steps: DefaultSteps, Delay: delay}
}

// Run emits every step, then returns nil. It returns ctx.Err() as soon as the
// context is done; no further steps are emitted after that.
func (s *Simulator) Run(ctx context.Context, emit func(Step)) error {
	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(step)

		timer := time.NewTimer(s.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
