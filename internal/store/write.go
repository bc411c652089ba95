package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/twinshot/internal/engine"
)

// BeginRun inserts a run that has started but not finished.
// The run's position in the ledger is assigned here.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	optsJSON, err := marshalOptions(run.Options)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scenario, base_host, test_host, options, started_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.BaseHost,
		run.TestHost,
		optsJSON,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	return nil
}

// FinishRun marks a run finished. A nil runErr means the run passed.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, runErr error) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, passed = ?, error = ?
		WHERE id = ?
	`,
		formatTime(finishedAt),
		boolToInt(runErr == nil),
		errorText(runErr),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}

	return nil
}

// WriteStep inserts one finished step.
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteStep(ctx context.Context, runID string, seq int, e engine.StepEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps
		(run_id, seq, pass, step_index, action, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		e.Pass.String(),
		e.Index,
		e.Step.Describe(),
		e.Duration.Milliseconds(),
		errorText(e.Err),
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}

	return nil
}

// WriteComparison inserts one judged capture.
func (s *Store) WriteComparison(ctx context.Context, runID string, seq int, c engine.Comparison) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comparisons
		(run_id, seq, name, differences, total, percentage, threshold, base_path, test_path, diff_path, passed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		c.Name,
		c.Differences,
		c.Total,
		c.Percentage,
		c.Threshold,
		c.BasePath,
		c.TestPath,
		c.DiffPath,
		boolToInt(c.Passed),
	)
	if err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}

	return nil
}

// WriteProfile stores a profiler summary, replacing any earlier one for
// the same run.
func (s *Store) WriteProfile(ctx context.Context, runID string, summary map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write profile: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	phases := make([]string, 0, len(summary))
	for phase := range summary {
		phases = append(phases, phase)
	}
	sort.Strings(phases)

	for _, phase := range phases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (run_id, phase, total_ms) VALUES (?, ?, ?)
		`, runID, phase, summary[phase]); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write profile: commit: %w", err)
	}
	return nil
}
