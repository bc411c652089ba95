package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/twinshot/internal/testutil"
)

func TestProfiler_AccumulatesAcrossIntervals(t *testing.T) {
	clock := testutil.NewManualClock(nil)
	p := NewProfiler(clock)

	p.Start("x")
	clock.Advance(100 * time.Millisecond)
	p.Stop("x")

	p.Start("x")
	clock.Advance(150 * time.Millisecond)
	p.Stop("x")

	assert.Equal(t, 250*time.Millisecond, p.Total("x"))
	assert.Equal(t, int64(250), p.Summary()["x"])
}

func TestProfiler_StopWithoutStartIsNoop(t *testing.T) {
	clock := testutil.NewManualClock(nil)
	p := NewProfiler(clock)

	clock.Advance(time.Second)
	p.Stop("never-started")

	assert.Zero(t, p.Total("never-started"))
	assert.Empty(t, p.Totals())
}

func TestProfiler_SecondStopIsNoop(t *testing.T) {
	clock := testutil.NewManualClock(nil)
	p := NewProfiler(clock)

	p.Start("x")
	clock.Advance(10 * time.Millisecond)
	p.Stop("x")
	clock.Advance(time.Second)
	p.Stop("x")

	assert.Equal(t, 10*time.Millisecond, p.Total("x"))
}

func TestProfiler_RestartOverwritesUnfinishedStart(t *testing.T) {
	clock := testutil.NewManualClock(nil)
	p := NewProfiler(clock)

	p.Start("x")
	clock.Advance(time.Second)
	p.Start("x")
	clock.Advance(20 * time.Millisecond)
	p.Stop("x")

	assert.Equal(t, 20*time.Millisecond, p.Total("x"))
}

func TestProfiler_PhasesAreIndependent(t *testing.T) {
	clock := testutil.NewManualClock(nil)
	p := NewProfiler(clock)

	p.Start(PhaseGoto)
	clock.Advance(5 * time.Millisecond)
	p.Start(PhaseScreenshot)
	clock.Advance(7 * time.Millisecond)
	p.Stop(PhaseGoto)
	p.Stop(PhaseScreenshot)

	assert.Equal(t, map[string]time.Duration{
		PhaseGoto:       12 * time.Millisecond,
		PhaseScreenshot: 7 * time.Millisecond,
	}, p.Totals())
}

func TestProfiler_TotalsIsACopy(t *testing.T) {
	clock := testutil.NewManualClock(nil)
	p := NewProfiler(clock)
	p.Start("x")
	clock.Advance(time.Millisecond)
	p.Stop("x")

	totals := p.Totals()
	totals["x"] = time.Hour

	assert.Equal(t, time.Millisecond, p.Total("x"))
}

func TestProfiler_ThreadSafe(t *testing.T) {
	p := NewProfiler(testutil.NewManualClock(nil))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.Start("x")
				p.Stop("x")
				_ = p.Summary()
			}
		}()
	}
	wg.Wait()
}

func TestNewProfiler_DefaultsToSystemClock(t *testing.T) {
	p := NewProfiler(nil)
	p.Start("x")
	p.Stop("x")
	assert.GreaterOrEqual(t, p.Total("x"), time.Duration(0))
}
