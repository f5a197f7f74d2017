package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"featprep/internal/accel"
	"featprep/internal/preflight"
)

type stubPython struct {
	missing map[string]bool
}

func (stubPython) Binary() string { return "python3" }

func (s stubPython) ImportModule(_ context.Context, name string) error {
	if s.missing[name] {
		return &importError{name: name}
	}
	return nil
}

func (stubPython) HasPackage(context.Context, string) (bool, error) { return true, nil }

type importError struct{ name string }

func (e *importError) Error() string { return "No module named '" + e.name + "'" }

type noAccelerator struct{}

func (noAccelerator) Devices(context.Context) ([]accel.Device, error) { return nil, nil }

func runFeatcheck(t *testing.T, args []string, opts ...preflight.Option) (string, int) {
	t.Helper()
	var exitCode int
	base := []preflight.Option{
		preflight.WithPython(stubPython{}),
		preflight.WithAccelerator(noAccelerator{}),
		preflight.WithMemory(func() (uint64, error) { return 256 << 30, nil }),
	}
	cmd := newRootCommand(&exitCode, append(base, opts...)...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("featcheck returned error: %v (stderr %q)", err, stderr.String())
	}
	return stdout.String(), exitCode
}

// readyHost prepares the environment variables, directories and binaries
// every check expects.
func readyHost(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	hf := filepath.Join(root, "hf")
	for _, dir := range []string{
		bin,
		filepath.Join(hf, "models--facebook--vjepa2"),
		filepath.Join(root, "data", "algonauts2025", "download", "algonauts_2025.competitors"),
		filepath.Join(root, "save", "cache", "algonauts-2025"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(filepath.Join(bin, "ffmpeg"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	t.Setenv("PATH", bin)
	t.Setenv("DATAPATH", filepath.Join(root, "data"))
	t.Setenv("SAVEPATH", filepath.Join(root, "save"))
	t.Setenv("SCRATCH", root)
	t.Setenv("HF_HOME", hf)
	t.Setenv("TRANSFORMERS_CACHE", hf)
}

func TestFeatcheckReadyHostExitsZero(t *testing.T) {
	readyHost(t)

	out, code := runFeatcheck(t, nil)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d:\n%s", code, out)
	}
	for _, fragment := range []string{
		"== 1. Tool Configuration ==",
		"== 2. Python Packages ==",
		"== 10. Host Memory ==",
		"facebook/vjepa2",
		"[WARN] no CUDA accelerator available",
		"All checks passed!",
		"1 warning(s)",
	} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in output:\n%s", fragment, out)
		}
	}
}

func TestFeatcheckExitCodeEqualsFailLines(t *testing.T) {
	readyHost(t)
	t.Setenv("SAVEPATH", "")
	t.Setenv("PATH", t.TempDir())

	out, code := runFeatcheck(t, nil, preflight.WithPython(stubPython{missing: map[string]bool{"julius": true}}))

	failLines := strings.Count(out, "[FAIL]")
	if failLines == 0 || code != failLines {
		t.Fatalf("expected exit code %d to equal FAIL lines %d:\n%s", code, failLines, out)
	}
	// julius, SAVEPATH, cache path, ffmpeg.
	if code != 4 {
		t.Fatalf("expected 4 failures, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "4 issue(s) found") {
		t.Fatalf("expected failure banner:\n%s", out)
	}
}

func TestFeatcheckBrokenConfigIsOneFailure(t *testing.T) {
	readyHost(t)
	broken := filepath.Join(t.TempDir(), "featprep.toml")
	if err := os.WriteFile(broken, []byte("[python\nbinary = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, code := runFeatcheck(t, []string{"--config", broken})
	if code != 1 {
		t.Fatalf("expected the broken config to count as one failure, got %d:\n%s", code, out)
	}
	if strings.Count(out, "[FAIL]") != 1 || !strings.Contains(out, "checking with built-in defaults") {
		t.Fatalf("expected a single configuration FAIL line:\n%s", out)
	}
	if !strings.Contains(out, "== 10. Host Memory ==") {
		t.Fatalf("expected the battery to keep running on defaults:\n%s", out)
	}
}

func TestFeatcheckRejectsArguments(t *testing.T) {
	var exitCode int
	cmd := newRootCommand(&exitCode)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"unexpected"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
}

func TestMemoryBudgetReadsOverride(t *testing.T) {
	readyHost(t)
	override := filepath.Join(t.TempDir(), "big.toml")
	if err := os.WriteFile(override, []byte("[infra]\nmem_gb = 512\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	out, code := runFeatcheck(t, []string{"--override", override})
	if code != 0 {
		t.Fatalf("memory shortfall must not fail the run, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "budget 512 GiB") {
		t.Fatalf("expected override budget in output:\n%s", out)
	}
	if !strings.Contains(out, "2 warning(s)") {
		t.Fatalf("expected memory warning alongside accelerator warning:\n%s", out)
	}
}
