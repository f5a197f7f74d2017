package experiment_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"featprep/internal/experiment"
	"featprep/internal/services"
)

func TestMergeLayersExtractionOverride(t *testing.T) {
	base := experiment.DefaultDocument("/data/study", "/save/cache")
	merged := experiment.Merge(base, experiment.ExtractionOverride())

	want := experiment.Document{
		"n_epochs": 0,
		"infra": experiment.Document{
			"cluster":       "local",
			"gpus_per_node": 1,
			"mem_gb":        64,
			"timeout_min":   720,
		},
		"data": experiment.Document{
			"num_workers":   4,
			"study":         experiment.Document{"path": "/data/study"},
			"text_feature":  experiment.Document{"infra": experiment.Document{"folder": "/save/cache"}},
			"video_feature": experiment.Document{"infra": experiment.Document{"folder": "/save/cache"}},
			"audio_feature": experiment.Document{"infra": experiment.Document{"folder": "/save/cache"}},
		},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged document mismatch (-want +got):\n%s", diff)
	}
	if got := merged.String(experiment.KeyCacheFolder); got != "/save/cache" {
		t.Fatalf("unexpected cache folder %q", got)
	}
	if got := merged.String(experiment.KeyStudyPath); got != "/data/study" {
		t.Fatalf("unexpected study path %q", got)
	}
	if gb, ok := merged.Float(experiment.KeyMemoryGB); !ok || gb != 64 {
		t.Fatalf("unexpected memory budget %v ok=%v", gb, ok)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := experiment.DefaultDocument("/data", "/cache")
	override := experiment.Document{"data": experiment.Document{"study": experiment.Document{"path": "/other"}}}

	merged := experiment.Merge(base, override)
	if got := merged.String(experiment.KeyStudyPath); got != "/other" {
		t.Fatalf("expected override to win, got %q", got)
	}
	if got := base.String(experiment.KeyStudyPath); got != "/data" {
		t.Fatalf("expected base untouched, got %q", got)
	}
}

func TestMergeDottedKeys(t *testing.T) {
	merged := experiment.Merge(
		experiment.DefaultDocument("/data", "/cache"),
		experiment.Document{"data.study.query": "subject_timeline_index<50"},
	)
	if got := merged.String(experiment.KeyStudyQuery); got != "subject_timeline_index<50" {
		t.Fatalf("expected dotted key to land in nested section, got %q", got)
	}
	if got := merged.String(experiment.KeyStudyPath); got != "/data" {
		t.Fatalf("expected sibling keys preserved, got %q", got)
	}
}

func TestLoadOverrideFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"override.toml": "n_epochs = 1\n[data.study]\nquery = \"subject_timeline_index<50\"\n",
		"override.yaml": "n_epochs: 1\ndata:\n  study:\n    query: subject_timeline_index<50\n",
		"override.json": `{"n_epochs": 1, "data": {"study": {"query": "subject_timeline_index<50"}}}`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write override: %v", err)
			}
			doc, err := experiment.LoadOverride(path)
			if err != nil {
				t.Fatalf("LoadOverride returned error: %v", err)
			}
			if got := doc.String(experiment.KeyStudyQuery); got != "subject_timeline_index<50" {
				t.Fatalf("unexpected query %q", got)
			}
			if epochs, ok := doc.Float("n_epochs"); !ok || epochs != 1 {
				t.Fatalf("unexpected n_epochs %v ok=%v", epochs, ok)
			}
		})
	}
}

func TestLoadOverrideErrorsAreConfigurationFaults(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("data: [unterminated"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	unsupported := filepath.Join(dir, "override.ini")
	if err := os.WriteFile(unsupported, []byte("x=1"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	for _, path := range []string{bad, unsupported, filepath.Join(dir, "missing.toml")} {
		if _, err := experiment.LoadOverride(path); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected configuration error for %s, got %v", filepath.Base(path), err)
		}
	}
}

func TestLoadOverrideEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	doc, err := experiment.LoadOverride(path)
	if err != nil {
		t.Fatalf("LoadOverride returned error: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %v", doc)
	}
}

func TestValidateRequiresPaths(t *testing.T) {
	if err := experiment.DefaultDocument("/data", "/cache").Validate(); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	err := experiment.DefaultDocument("", "/cache").Validate()
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
