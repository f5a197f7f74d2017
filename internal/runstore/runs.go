package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRunNotFound is returned when a run id has no ledger row.
var ErrRunNotFound = errors.New("run not found")

const runColumns = "id, status, started_at, finished_at, log_path, override_path, cache_dir, error_message, loaders_json"

// Begin inserts a run in the running state.
func (s *Store) Begin(ctx context.Context, opts BeginOptions) (*Run, error) {
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		return nil, errors.New("run id required")
	}
	now := time.Now().UTC()
	if _, err := s.exec(ctx,
		`INSERT INTO runs (id, status, started_at, log_path, override_path, cache_dir) VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		StatusRunning,
		now.Format(timeLayout),
		nullableString(opts.LogPath),
		nullableString(opts.OverridePath),
		nullableString(opts.CacheDir),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{
		ID:           id,
		Status:       StatusRunning,
		StartedAt:    now,
		LogPath:      opts.LogPath,
		OverridePath: opts.OverridePath,
		CacheDir:     opts.CacheDir,
	}, nil
}

// RecordStage stores the outcome of one stage. Recording the same stage index
// twice replaces the earlier row.
func (s *Store) RecordStage(ctx context.Context, runID string, record StageRecord) error {
	if _, err := s.exec(ctx,
		`INSERT OR REPLACE INTO run_stages (run_id, stage_index, name, status, elapsed_ms, error_message)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		record.Index,
		record.Name,
		record.Status,
		record.Elapsed.Milliseconds(),
		nullableString(record.ErrorMessage),
	); err != nil {
		return fmt.Errorf("record stage %d: %w", record.Index, err)
	}
	return nil
}

// Finish closes a run with its final status. loaders may be nil for runs that
// never reached the summary.
func (s *Store) Finish(ctx context.Context, runID string, status Status, loaders map[string]int, runErr error) error {
	var loadersJSON any
	if loaders != nil {
		data, err := json.Marshal(loaders)
		if err != nil {
			return fmt.Errorf("marshal loaders: %w", err)
		}
		loadersJSON = string(data)
	}
	var message string
	if runErr != nil {
		message = strings.TrimSpace(runErr.Error())
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ?, loaders_json = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(timeLayout),
		nullableString(message),
		loadersJSON,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Get returns a run with its stages.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := s.attachStages(ctx, []*Run{run}); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachStages(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) attachStages(ctx context.Context, runs []*Run) error {
	for _, run := range runs {
		rows, err := s.db.QueryContext(ctx,
			`SELECT stage_index, name, status, elapsed_ms, error_message FROM run_stages WHERE run_id = ? ORDER BY stage_index`,
			run.ID,
		)
		if err != nil {
			return fmt.Errorf("query stages: %w", err)
		}
		for rows.Next() {
			var (
				record    StageRecord
				status    string
				elapsedMS int64
				message   sql.NullString
			)
			if err := rows.Scan(&record.Index, &record.Name, &status, &elapsedMS, &message); err != nil {
				rows.Close()
				return fmt.Errorf("scan stage: %w", err)
			}
			record.Status = Status(status)
			record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
			record.ErrorMessage = message.String
			run.Stages = append(run.Stages, record)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		status       string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		logPath      sql.NullString
		overridePath sql.NullString
		cacheDir     sql.NullString
		errorMessage sql.NullString
		loadersRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&status,
		&startedRaw,
		&finishedRaw,
		&logPath,
		&overridePath,
		&cacheDir,
		&errorMessage,
		&loadersRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		Status:       Status(status),
		StartedAt:    parseTime(startedRaw),
		LogPath:      logPath.String,
		OverridePath: overridePath.String,
		CacheDir:     cacheDir.String,
		ErrorMessage: errorMessage.String,
	}
	if finished := parseTime(finishedRaw); !finished.IsZero() {
		run.FinishedAt = &finished
	}
	if loadersRaw.Valid && loadersRaw.String != "" {
		if err := json.Unmarshal([]byte(loadersRaw.String), &run.Loaders); err != nil {
			return nil, fmt.Errorf("decode loaders for run %s: %w", id, err)
		}
	}
	return run, nil
}

// Recorder binds a run id so stage executors can record outcomes without
// knowing about the ledger.
func (s *Store) Recorder(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// RunRecorder records stages for a single run.
type RunRecorder struct {
	store *Store
	runID string
}

// RecordStage stores a stage outcome for the bound run.
func (r *RunRecorder) RecordStage(ctx context.Context, record StageRecord) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.RecordStage(ctx, r.runID, record)
}
