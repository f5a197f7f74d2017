package runstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"featprep/internal/runstore"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.Open(filepath.Join(t.TempDir(), "logs", "featprep.db"))
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.Begin(ctx, runstore.BeginOptions{
		ID:       "run-1",
		LogPath:  "/tmp/extract.log",
		CacheDir: "/save/cache/algonauts-2025",
	})
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if run.Status != runstore.StatusRunning {
		t.Fatalf("expected running status, got %s", run.Status)
	}

	recorder := store.Recorder(run.ID)
	stages := []runstore.StageRecord{
		{Index: 1, Name: "import", Status: runstore.StatusCompleted, Elapsed: 1500 * time.Millisecond},
		{Index: 2, Name: "initialize", Status: runstore.StatusCompleted, Elapsed: 2 * time.Second},
	}
	for _, stage := range stages {
		if err := recorder.RecordStage(ctx, stage); err != nil {
			t.Fatalf("RecordStage failed: %v", err)
		}
	}

	loaders := map[string]int{"train": 120, "val": 15, "test": 15}
	if err := store.Finish(ctx, run.ID, runstore.StatusCompleted, loaders, nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != runstore.StatusCompleted || got.FinishedAt == nil {
		t.Fatalf("expected completed run with finish time, got %+v", got)
	}
	if got.Elapsed() < 0 {
		t.Fatalf("unexpected negative elapsed %s", got.Elapsed())
	}
	if diff := cmp.Diff(loaders, got.Loaders); diff != "" {
		t.Fatalf("loaders mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(stages, got.Stages); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
	if got.LogPath != "/tmp/extract.log" || got.CacheDir != "/save/cache/algonauts-2025" {
		t.Fatalf("unexpected paths: %+v", got)
	}
}

func TestFinishRecordsFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Begin(ctx, runstore.BeginOptions{ID: "run-fail"}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := store.RecordStage(ctx, "run-fail", runstore.StageRecord{
		Index: 2, Name: "initialize", Status: runstore.StatusFailed, ErrorMessage: "no GPU",
	}); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}
	if err := store.Finish(ctx, "run-fail", runstore.StatusFailed, nil, errors.New("no GPU")); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := store.Get(ctx, "run-fail")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != runstore.StatusFailed || got.ErrorMessage != "no GPU" {
		t.Fatalf("unexpected failed run: %+v", got)
	}
	if got.Loaders != nil {
		t.Fatalf("expected no loaders, got %v", got.Loaders)
	}
	if len(got.Stages) != 1 || got.Stages[0].ErrorMessage != "no GPU" {
		t.Fatalf("unexpected stages: %+v", got.Stages)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Begin(ctx, runstore.BeginOptions{ID: id}); err != nil {
			t.Fatalf("Begin %s failed: %v", id, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestUnknownRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, runstore.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound from Get, got %v", err)
	}
	if err := store.Finish(ctx, "missing", runstore.StatusCompleted, nil, nil); !errors.Is(err, runstore.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound from Finish, got %v", err)
	}
}

func TestBeginRequiresID(t *testing.T) {
	store := openStore(t)
	if _, err := store.Begin(context.Background(), runstore.BeginOptions{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featprep.db")
	store, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Begin(context.Background(), runstore.BeginOptions{ID: "persisted"}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	store.Close()

	reopened, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []*runstore.Run{{ID: "persisted", Status: runstore.StatusRunning}}
	if diff := cmp.Diff(want, runs, cmpopts.IgnoreFields(runstore.Run{}, "StartedAt")); diff != "" {
		t.Fatalf("unexpected runs (-want +got):\n%s", diff)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featprep.db")
	store, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := runstore.Open(path); !errors.Is(err, runstore.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
