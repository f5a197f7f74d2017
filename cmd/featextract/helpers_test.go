package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"featprep/internal/config"
	"featprep/internal/experiment"
	"featprep/internal/runstore"
)

// fakeFactory stands in for the subprocess collaborator. It writes to the
// progress stream the way the real one relays progress bars.
type fakeFactory struct {
	mu       sync.Mutex
	built    int
	progress io.Writer
	workDir  string
	newErr   error
	loadErr  error
	loaders  map[string]experiment.Loader
	gotDoc   experiment.Document
}

func (f *fakeFactory) builder() factoryBuilder {
	return func(_ *config.Config, workDir string, progress io.Writer, _ *slog.Logger) (experiment.Factory, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.built++
		f.workDir = workDir
		f.progress = progress
		return f, nil
	}
}

func (f *fakeFactory) New(_ context.Context, doc experiment.Document) (experiment.Experiment, error) {
	f.gotDoc = doc
	fmt.Fprint(f.progress, "initializing extractors\n")
	if f.newErr != nil {
		return nil, f.newErr
	}
	return f, nil
}

func (f *fakeFactory) Data() experiment.DataSource { return f }

func (f *fakeFactory) GetLoaders(_ context.Context, splits []string) (map[string]experiment.Loader, error) {
	for _, split := range splits {
		fmt.Fprintf(f.progress, "%s:  50%%|#####     | 5/10\r%s: 100%%|##########| 10/10\n", split, split)
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loaders, nil
}

func defaultLoaders() map[string]experiment.Loader {
	return map[string]experiment.Loader{
		"train": experiment.BatchCount(120),
		"val":   experiment.BatchCount(12),
		"test":  experiment.BatchCount(30),
	}
}

type cliEnv struct {
	configPath string
	logDir     string
	saveRoot   string
	cacheDir   string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Chdir(base)
	t.Setenv("FEATPREP_LOGFILE", "")

	dataRoot := filepath.Join(base, "data")
	saveRoot := filepath.Join(base, "save")
	t.Setenv("DATAPATH", dataRoot)
	t.Setenv("SAVEPATH", saveRoot)

	logDir := filepath.Join(base, "state")
	configPath := filepath.Join(base, "featprep.toml")
	content := fmt.Sprintf("[paths]\nlog_dir = %q\n\n[logging]\nlevel = \"info\"\n", logDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{
		configPath: configPath,
		logDir:     logDir,
		saveRoot:   saveRoot,
		cacheDir:   filepath.Join(saveRoot, "cache", "algonauts-2025"),
	}
}

func runCLI(t *testing.T, env *cliEnv, factory *fakeFactory, args ...string) (string, string, error) {
	t.Helper()
	var opts []contextOption
	if factory != nil {
		opts = append(opts, withFactory(factory.builder()))
	}
	cmd := newRootCommand(opts...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func listRuns(t *testing.T, env *cliEnv) []*runstore.Run {
	t.Helper()
	store, err := runstore.Open(filepath.Join(env.logDir, "featprep.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	return runs
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
