package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Settle delays. They trade speed for screenshots of a stable page.
const (
	NavigateSettleBefore  = 1000 * time.Millisecond
	NavigateSettleAfter   = 2000 * time.Millisecond
	ScreenshotIdleTimeout = 5000 * time.Millisecond
	ScreenshotSettleAfter = 250 * time.Millisecond
)

// runStep routes a step to its runner.
func (h *Harness) runStep(ctx context.Context, pass Pass, index int, step Step) error {
	switch step.Kind {
	case StepGoto:
		return h.runGoto(ctx, pass, index, step)
	case StepNavigate:
		return h.runNavigate(ctx, pass, index, step)
	case StepScreenshot:
		return h.runScreenshot(ctx, pass, index, step)
	default:
		return fmt.Errorf("step %d: unknown step kind %s", index, step.Kind)
	}
}

func (h *Harness) hostFor(pass Pass) string {
	if pass == PassTest {
		return h.testHost
	}
	return h.baseHost
}

// runGoto loads <host>+path.
func (h *Harness) runGoto(ctx context.Context, pass Pass, index int, step Step) error {
	dest := h.hostFor(pass) + step.Path

	h.profiler.Start(PhaseGoto)
	err := h.driver.Goto(ctx, dest)
	h.profiler.Stop(PhaseGoto)

	if err != nil {
		return newStepError(KindNavigation, pass, index, step, fmt.Errorf("goto %s: %w", dest, err))
	}

	h.logger.Debug("navigated", "pass", pass, "url", dest)
	return nil
}

// runNavigate runs the interaction callback between two settle delays,
// profiled as a single interval.
func (h *Harness) runNavigate(ctx context.Context, pass Pass, index int, step Step) error {
	h.profiler.Start(PhaseNavigate)
	defer h.profiler.Stop(PhaseNavigate)

	fail := func(err error) error {
		return newStepError(KindInteraction, pass, index, step, err)
	}

	if step.Interact == nil {
		return fail(errors.New("no interaction callback"))
	}

	if err := h.clock.Sleep(ctx, NavigateSettleBefore); err != nil {
		return fail(err)
	}
	if err := step.Interact(ctx, h.driver, pass); err != nil {
		return fail(err)
	}
	if err := h.clock.Sleep(ctx, NavigateSettleAfter); err != nil {
		return fail(err)
	}

	h.logger.Debug("interaction completed", "pass", pass, "step", index)
	return nil
}

// runScreenshot captures the pass's artifact and, on the test pass,
// compares it with the base artifact.
func (h *Harness) runScreenshot(ctx context.Context, pass Pass, index int, step Step) error {
	fail := func(kind ErrorKind, err error) error {
		return newStepError(kind, pass, index, step, err)
	}

	if err := h.artifacts.Ensure(); err != nil {
		return fail(KindCapture, err)
	}

	path := h.artifacts.ForPass(step.Name, pass)

	h.profiler.Start(PhaseScreenshot)
	err := h.driver.WaitIdle(ctx, ScreenshotIdleTimeout)
	if err == nil {
		err = h.driver.Screenshot(ctx, path)
	}
	h.profiler.Stop(PhaseScreenshot)
	if err != nil {
		return fail(KindCapture, fmt.Errorf("screenshot %q: %w", step.Name, err))
	}

	h.logger.Debug("captured", "pass", pass, "capture", step.Name, "path", path)

	if err := h.clock.Sleep(ctx, ScreenshotSettleAfter); err != nil {
		return fail(KindCapture, err)
	}

	if pass != PassTest {
		return nil
	}

	cmp, err := h.comparator.Compare(ctx,
		step.Name,
		h.artifacts.Path(step.Name, RoleBase),
		path,
		h.artifacts.Path(step.Name, RoleDiff),
		step.Threshold,
	)

	var thresholdErr *ThresholdExceededError
	switch {
	case err == nil:
		h.observer.Compared(cmp)
		return nil
	case errors.As(err, &thresholdErr):
		h.observer.Compared(cmp)
		return thresholdErr
	default:
		return fail(KindDiff, err)
	}
}
