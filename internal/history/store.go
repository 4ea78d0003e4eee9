package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/termscript/termscript/internal/script"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if ts, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", s)
}

// Run is one recorded script execution.
type Run struct {
	ID         string
	ScriptName string
	StartedAt  time.Time
	Duration   time.Duration
	Success    bool
	ExitCode   *int
	StepCount  int
	FailedStep *int
	FirstError string
}

// StepRow is one recorded step of a run.
type StepRow struct {
	Index    int
	Kind     string
	Success  bool
	Duration time.Duration
	Error    string
}

// ScriptSummary aggregates all recorded runs of one script.
type ScriptSummary struct {
	ScriptName string
	Runs       int
	Passes     int
	Failures   int
	LastRun    time.Time
}

// RecordRun persists a completed run and its step results in one
// transaction.
func (s *Store) RecordRun(res *script.Result) error {
	if res == nil {
		return fmt.Errorf("result is nil")
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var failedStep any
	if idx := res.FailedStep(); idx >= 0 {
		failedStep = idx
	}
	var firstError any
	if res.FirstError != nil {
		firstError = res.FirstError.Error()
	}
	var exitCode any
	if res.ExitCode != nil {
		exitCode = *res.ExitCode
	}

	if _, err := tx.Exec(`
INSERT INTO runs (id, script_name, started_at, duration_ms, success, exit_code, step_count, failed_step, first_error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.ScriptName, formatSQLiteTime(res.StartedAt),
		res.TotalDuration.Milliseconds(), res.Success,
		exitCode, len(res.Steps), failedStep, firstError,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, sr := range res.Steps {
		var stepErr any
		if sr.Err != nil {
			stepErr = sr.Err.Error()
		}
		if _, err := tx.Exec(`
INSERT INTO run_steps (run_id, idx, kind, success, duration_ms, error)
VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, sr.Index, string(sr.Kind), sr.Success,
			sr.Duration.Milliseconds(), stepErr,
		); err != nil {
			return fmt.Errorf("insert step %d: %w", sr.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// a default of 50.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
SELECT id, script_name, started_at, duration_ms, success, exit_code, step_count, failed_step, first_error
FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunsForScript returns the most recent runs of one script, newest first.
func (s *Store) RunsForScript(name string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
SELECT id, script_name, started_at, duration_ms, success, exit_code, step_count, failed_step, first_error
FROM runs WHERE script_name = ? ORDER BY started_at DESC, id LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", name, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the recorded step results of one run, in order.
func (s *Store) Steps(runID string) ([]StepRow, error) {
	rows, err := s.conn.Query(`
SELECT idx, kind, success, duration_ms, error
FROM run_steps WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRow
	for rows.Next() {
		var (
			sr         StepRow
			durationMS int64
			stepErr    sql.NullString
		)
		if err := rows.Scan(&sr.Index, &sr.Kind, &sr.Success, &durationMS, &stepErr); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		sr.Duration = time.Duration(durationMS) * time.Millisecond
		sr.Error = stepErr.String
		steps = append(steps, sr)
	}
	return steps, rows.Err()
}

// Summary aggregates runs per script, most recently run first.
func (s *Store) Summary() ([]ScriptSummary, error) {
	rows, err := s.conn.Query(`
SELECT script_name,
       COUNT(*),
       SUM(CASE WHEN success THEN 1 ELSE 0 END),
       SUM(CASE WHEN success THEN 0 ELSE 1 END),
       MAX(started_at)
FROM runs GROUP BY script_name ORDER BY MAX(started_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var out []ScriptSummary
	for rows.Next() {
		var (
			sum        ScriptSummary
			lastRunStr string
		)
		if err := rows.Scan(&sum.ScriptName, &sum.Runs, &sum.Passes, &sum.Failures, &lastRunStr); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if ts, err := parseSQLiteTime(lastRunStr); err == nil {
			sum.LastRun = ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r            Run
		startedAtStr string
		durationMS   int64
		exitCode     sql.NullInt64
		failedStep   sql.NullInt64
		firstError   sql.NullString
	)
	if err := rows.Scan(&r.ID, &r.ScriptName, &startedAtStr, &durationMS,
		&r.Success, &exitCode, &r.StepCount, &failedStep, &firstError); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if ts, err := parseSQLiteTime(startedAtStr); err == nil {
		r.StartedAt = ts
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if exitCode.Valid {
		code := int(exitCode.Int64)
		r.ExitCode = &code
	}
	if failedStep.Valid {
		idx := int(failedStep.Int64)
		r.FailedStep = &idx
	}
	r.FirstError = firstError.String
	return r, nil
}
