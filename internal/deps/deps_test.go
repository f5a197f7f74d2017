package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCheckBinary(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := make([]Status, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, CheckBinary(req))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected blank command to be reported as not configured, got %#v", results[2])
	}
}

func TestCheckFFmpegRequiresPath(t *testing.T) {
	envBin := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	pythonPath := filepath.Join(envBin, executableName("python3"))
	ffmpegPath := filepath.Join(envBin, executableName("ffmpeg"))
	for _, path := range []string{pythonPath, ffmpegPath} {
		if err := os.WriteFile(path, script, 0o755); err != nil {
			t.Fatalf("write stub %s: %v", path, err)
		}
	}
	t.Setenv("PATH", "")

	status := CheckFFmpeg(pythonPath, "ffmpeg")
	if status.Available {
		t.Fatalf("expected ffmpeg outside PATH to be unavailable, got %#v", status)
	}
	if !strings.Contains(status.Detail, "not in PATH") || !strings.Contains(status.Detail, ffmpegPath) {
		t.Fatalf("expected detail to name the interpreter sibling, got %q", status.Detail)
	}
}

func TestCheckFFmpegFoundOnPath(t *testing.T) {
	tmp := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	pythonPath := filepath.Join(tmp, executableName("python3"))
	if err := os.WriteFile(pythonPath, script, 0o755); err != nil {
		t.Fatalf("write python stub: %v", err)
	}

	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	status := CheckFFmpeg(pythonPath, "")
	if !status.Available {
		t.Fatalf("expected ffmpeg on PATH to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected ffmpeg command %q, got %q", ffmpegPath, status.Command)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg(filepath.Join(t.TempDir(), "python3"), "ffmpeg")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail != `binary "ffmpeg" not in PATH` {
		t.Fatalf("unexpected detail: %q", status.Detail)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
