package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/twinshot/internal/engine"
)

// ReadReport loads every run in the ledger with its steps, comparisons
// and profile. Runs, steps and comparisons are ordered by seq.
//
// Returns empty slices (not nil) for runs with no recorded rows.
func (s *Store) ReadReport(ctx context.Context) (Report, error) {
	runs, err := s.readRuns(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Runs: make([]RunReport, 0, len(runs))}
	for _, run := range runs {
		rr, err := s.readRunReport(ctx, run)
		if err != nil {
			return Report{}, err
		}
		report.Runs = append(report.Runs, rr)
	}

	return report, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, base_host, test_host, options, started_at, finished_at, passed, error
		FROM runs
		WHERE id = ?
	`, id)

	return scanRun(row)
}

func (s *Store) readRunReport(ctx context.Context, run Run) (RunReport, error) {
	steps, err := s.readSteps(ctx, run.ID)
	if err != nil {
		return RunReport{}, err
	}
	comparisons, err := s.readComparisons(ctx, run.ID)
	if err != nil {
		return RunReport{}, err
	}
	profile, err := s.readProfile(ctx, run.ID)
	if err != nil {
		return RunReport{}, err
	}

	return RunReport{
		Run:         run,
		Steps:       steps,
		Comparisons: comparisons,
		Profile:     profile,
	}, nil
}

func (s *Store) readRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, base_host, test_host, options, started_at, finished_at, passed, error
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

func (s *Store) readSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, pass, step_index, action, duration_ms, error
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		var (
			rec    StepRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &rec.Pass, &rec.Index, &rec.Action, &rec.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Error = errMsg.String
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	return steps, nil
}

func (s *Store) readComparisons(ctx context.Context, runID string) ([]engine.Comparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, differences, total, percentage, threshold, base_path, test_path, diff_path, passed
		FROM comparisons
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query comparisons: %w", err)
	}
	defer rows.Close()

	comparisons := []engine.Comparison{}
	for rows.Next() {
		var (
			c      engine.Comparison
			passed int
		)
		if err := rows.Scan(&c.Name, &c.Differences, &c.Total, &c.Percentage, &c.Threshold,
			&c.BasePath, &c.TestPath, &c.DiffPath, &passed); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		c.Passed = passed != 0
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}

	return comparisons, nil
}

func (s *Store) readProfile(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phase, total_ms FROM profiles WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	defer rows.Close()

	profile := map[string]int64{}
	for rows.Next() {
		var (
			phase string
			ms    int64
		)
		if err := rows.Scan(&phase, &ms); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profile[phase] = ms
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile: %w", err)
	}

	return profile, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		optsJSON   string
		startedAt  string
		finishedAt sql.NullString
		passed     sql.NullInt64
		errMsg     sql.NullString
	)
	err := row.Scan(&run.ID, &run.Scenario, &run.BaseHost, &run.TestHost,
		&optsJSON, &startedAt, &finishedAt, &passed, &errMsg)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.Options, err = unmarshalOptions(optsJSON); err != nil {
		return Run{}, err
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if finishedAt.Valid {
		run.Finished = true
		if run.FinishedAt, err = parseTime(finishedAt.String); err != nil {
			return Run{}, err
		}
	}
	run.Passed = passed.Valid && passed.Int64 != 0
	run.Error = errMsg.String

	return run, nil
}
