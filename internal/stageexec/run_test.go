package stageexec_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"featprep/internal/runstore"
	"featprep/internal/stageexec"
)

type recorderStub struct {
	records []runstore.StageRecord
	err     error
}

func (r *recorderStub) RecordStage(_ context.Context, record runstore.StageRecord) error {
	r.records = append(r.records, record)
	return r.err
}

func fakeClock(step time.Duration) func() time.Time {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRunLogsAndRecordsSuccess(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorderStub{}
	stage := stageexec.Stage{Index: 2, Total: 4, Name: "initialize", Label: "Initialize experiment"}

	var sawStage string
	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:   newLogger(&buf),
		Stage:    stage,
		Recorder: rec,
		Now:      fakeClock(3 * time.Second),
		Fn: func(ctx context.Context, logger *slog.Logger) error {
			logger.Info("inside stage")
			sawStage = "ran"
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sawStage != "ran" {
		t.Fatal("expected stage function to run")
	}

	out := buf.String()
	for _, fragment := range []string{"stage started", "stage completed", "event_type=stage_complete", "stage=initialize", `title="[2/4] Initialize experiment"`, "elapsed=3s"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in log output:\n%s", fragment, out)
		}
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(rec.records))
	}
	got := rec.records[0]
	if got.Status != runstore.StatusCompleted || got.Elapsed != 3*time.Second || got.Index != 2 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestRunReturnsStageErrorUnchanged(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorderStub{}
	boom := errors.New("collaborator crashed")

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:   newLogger(&buf),
		Stage:    stageexec.Stage{Index: 3, Total: 4, Name: "extract"},
		Recorder: rec,
		Fn: func(context.Context, *slog.Logger) error {
			return boom
		},
	})
	if err != boom {
		t.Fatalf("expected the identical error, got %v", err)
	}
	if !strings.Contains(buf.String(), "stage failed") || !strings.Contains(buf.String(), "collaborator crashed") {
		t.Fatalf("expected failure logged:\n%s", buf.String())
	}
	if len(rec.records) != 1 || rec.records[0].Status != runstore.StatusFailed || rec.records[0].ErrorMessage != "collaborator crashed" {
		t.Fatalf("unexpected records %+v", rec.records)
	}
}

func TestRecorderErrorDoesNotFailStage(t *testing.T) {
	var buf bytes.Buffer
	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:   newLogger(&buf),
		Stage:    stageexec.Stage{Index: 1, Total: 4, Name: "import"},
		Recorder: &recorderStub{err: errors.New("database is locked")},
		Fn:       func(context.Context, *slog.Logger) error { return nil },
	})
	if err != nil {
		t.Fatalf("expected ledger failure to be tolerated, got %v", err)
	}
	if !strings.Contains(buf.String(), "failed to record stage") {
		t.Fatalf("expected ledger warning:\n%s", buf.String())
	}
}

func TestRunRequiresFunction(t *testing.T) {
	if err := stageexec.Run(context.Background(), stageexec.Options{Stage: stageexec.Stage{Name: "empty"}}); err == nil {
		t.Fatal("expected error for missing stage function")
	}
}

func TestStageTitleFallsBackToName(t *testing.T) {
	if got := (stageexec.Stage{Index: 4, Total: 4, Name: "summarize"}).Title(); got != "[4/4] summarize" {
		t.Fatalf("unexpected title %q", got)
	}
}
