package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/twinshot/internal/engine"
)

// interactFunc turns interactions into an engine callback. Interactions
// bound to the other pass are skipped. wait sleeps on clock so it stays
// deterministic under test.
func interactFunc(interactions []Interaction, clock engine.Clock) engine.InteractFunc {
	return func(ctx context.Context, d engine.Driver, pass engine.Pass) error {
		for i, in := range interactions {
			if in.Pass != "" && in.Pass != pass.String() {
				continue
			}
			if err := perform(ctx, d, clock, in); err != nil {
				return fmt.Errorf("interaction %d (%s): %w", i, in.Describe(), err)
			}
		}
		return nil
	}
}

func perform(ctx context.Context, d engine.Driver, clock engine.Clock, in Interaction) error {
	switch {
	case in.Click != "":
		return d.Click(ctx, in.Click)
	case in.Fill != nil:
		return d.Fill(ctx, in.Fill.Selector, in.Fill.Text)
	case in.Eval != "":
		return d.Evaluate(ctx, in.Eval)
	case in.Wait != "":
		dur, err := time.ParseDuration(in.Wait)
		if err != nil {
			return err
		}
		return clock.Sleep(ctx, dur)
	default:
		return fmt.Errorf("empty interaction")
	}
}

// Record appends the scenario's steps to h, in order.
// clock drives wait interactions; nil means engine.SystemClock.
func (s *Scenario) Record(h *engine.Harness, clock engine.Clock) error {
	if clock == nil {
		clock = engine.SystemClock{}
	}

	for i, step := range s.Steps {
		form, err := step.Form()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}

		switch form {
		case FormGoto:
			if step.Screenshot != "" {
				h.GotoAndScreenshot(*step.Goto, step.Screenshot)
			} else {
				h.Goto(*step.Goto)
			}
		case FormScreenshot:
			if step.Threshold != nil {
				h.ScreenshotWithThreshold(step.Screenshot, *step.Threshold)
			} else {
				h.Screenshot(step.Screenshot)
			}
		case FormNavigate:
			h.Navigate(interactFunc(step.Navigate, clock))
		case FormCapture:
			fn := interactFunc(step.Interact, clock)
			if step.Threshold != nil {
				h.CaptureWithThreshold(step.Capture, *step.Threshold, fn)
			} else {
				h.CaptureWithDefaultThreshold(step.Capture, fn)
			}
		}
	}

	return nil
}
