package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpeg reports whether the FFmpeg binary moviepy launches resolves on
// PATH. moviepy runs ffmpeg by name, so only a PATH hit counts as available.
//
// Virtualenv and conda installs often ship ffmpeg next to the interpreter and
// only expose it once the environment is activated. When such a sibling exists
// but PATH does not reach it, the detail points at it.
func CheckFFmpeg(pythonCommand, ffmpegCommand string) Status {
	ffmpegName := strings.TrimSpace(ffmpegCommand)
	if ffmpegName == "" {
		ffmpegName = "ffmpeg"
	}

	result := CheckBinary(Requirement{
		Name:        "ffmpeg",
		Command:     ffmpegName,
		Description: "Needed by moviepy to extract audio from video",
	})
	if result.Available {
		result.Detail = "found in PATH"
		return result
	}

	result.Detail = fmt.Sprintf("binary %q not in PATH", ffmpegName)
	if sibling := interpreterSibling(pythonCommand, ffmpegName); sibling != "" {
		result.Detail = fmt.Sprintf("%s (%s exists next to the Python interpreter; activate its environment)", result.Detail, sibling)
	}
	return result
}

// interpreterSibling returns an executable named name in the interpreter's
// directory, or "".
func interpreterSibling(pythonCommand, name string) string {
	if strings.ContainsRune(name, filepath.Separator) {
		return ""
	}
	python := strings.TrimSpace(pythonCommand)
	if python == "" {
		return ""
	}
	resolved := python
	if !filepath.IsAbs(python) {
		path, err := exec.LookPath(python)
		if err != nil {
			return ""
		}
		resolved = path
	}
	candidate := siblingBinary(resolved, name)
	if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
		return candidate
	}
	return ""
}

func siblingBinary(interpreterPath, name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(interpreterPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
