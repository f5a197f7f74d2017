package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sys/unix"

	"featprep/internal/deps"
)

// checkModules imports every configured capability module. Each module is
// mandatory.
func (r *Runner) checkModules(ctx context.Context) []Check {
	checks := make([]Check, 0, len(r.cfg.Python.Modules))
	for _, module := range r.cfg.Python.Modules {
		if err := r.python.ImportModule(ctx, module); err != nil {
			checks = append(checks, fail(CategoryModule, module, err.Error()))
			continue
		}
		checks = append(checks, ok(CategoryModule, module, "importable"))
	}
	return checks
}

// checkAssets reports the fallback and primary spaCy assets. The primary asset
// is required by the text pipeline; the fallback alone is not enough.
func (r *Runner) checkAssets(ctx context.Context) []Check {
	lm := r.cfg.LanguageModel
	var checks []Check
	for _, asset := range []string{lm.Fallback, lm.Primary} {
		if asset == "" {
			continue
		}
		installed, err := r.python.HasPackage(ctx, asset)
		if err != nil {
			return append(checks, fail(CategoryModelAsset, "spacy", fmt.Sprintf("asset check failed: %v", err)))
		}
		switch {
		case installed:
			checks = append(checks, ok(CategoryModelAsset, asset, "installed"))
		case asset == lm.Primary:
			checks = append(checks, fail(CategoryModelAsset, asset, primaryMissingDetail(lm.Primary, lm.Selected)))
		default:
			checks = append(checks, warn(CategoryModelAsset, asset,
				fmt.Sprintf("not installed (not critical if %s is present)", lm.Primary)))
		}
	}
	return checks
}

func primaryMissingDetail(primary, selected string) string {
	if selected == primary {
		return fmt.Sprintf("NOT installed; required because language_model.selected maps English text to %s", primary)
	}
	return fmt.Sprintf("NOT installed; the text feature pipeline loads %s", primary)
}

// checkSelectedModel reports which asset the experiment will request.
func (r *Runner) checkSelectedModel(context.Context) []Check {
	lm := r.cfg.LanguageModel
	switch {
	case lm.Selected == "":
		return []Check{warn(CategoryConfig, "language_model.selected",
			"not set; cannot tell which asset the experiment requests")}
	case lm.Selected != lm.Primary && lm.Selected != lm.Fallback:
		return []Check{warn(CategoryConfig, "language_model.selected",
			fmt.Sprintf("experiment requests %s, which is neither %s nor %s", lm.Selected, lm.Primary, lm.Fallback))}
	default:
		return []Check{info(CategoryConfig, "language_model.selected",
			fmt.Sprintf("experiment requests %s for English", lm.Selected))}
	}
}

// checkEnvironment requires the dataset and output roots and advises on the
// cache and scratch variables.
func (r *Runner) checkEnvironment(context.Context) []Check {
	env := r.cfg.Environment
	mandatory := []string{env.DatasetVar, env.OutputVar}
	checks := make([]Check, 0, len(mandatory)+len(env.AdvisoryVars))
	for _, name := range mandatory {
		if value, set := r.env(name); set {
			checks = append(checks, ok(CategoryEnvironment, name, name+"="+value))
			continue
		}
		checks = append(checks, fail(CategoryEnvironment, name, name+" not set"))
	}
	for _, name := range env.AdvisoryVars {
		if name == env.DatasetVar || name == env.OutputVar {
			continue
		}
		if value, set := r.env(name); set {
			checks = append(checks, ok(CategoryEnvironment, name, name+"="+value))
			continue
		}
		checks = append(checks, warn(CategoryEnvironment, name, name+" not set"))
	}
	return checks
}

// checkModelCache lists cached Hugging Face models. An empty or missing cache
// is a warning.
func (r *Runner) checkModelCache(context.Context) []Check {
	hfHome, _ := r.env("HF_HOME")
	dir := r.cfg.ModelCacheDir(hfHome)
	prefix := r.cfg.ModelCache.Prefix

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Check{warn(CategoryModelCache, dir, fmt.Sprintf("cache dir not found: %s", dir))}
		}
		return []Check{warn(CategoryModelCache, dir, fmt.Sprintf("cannot read cache dir: %v", err))}
	}

	var models []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasPrefix(name, prefix) {
			models = append(models, modelName(name, prefix))
		}
	}
	if len(models) == 0 {
		return []Check{warn(CategoryModelCache, dir, fmt.Sprintf("no models found in %s", dir))}
	}
	sort.Strings(models)
	checks := make([]Check, 0, len(models))
	for _, model := range models {
		checks = append(checks, ok(CategoryModelCache, model, "cached"))
	}
	return checks
}

// modelName converts "models--org--name" into "org/name".
func modelName(entry, prefix string) string {
	return strings.ReplaceAll(strings.TrimPrefix(entry, prefix), "--", "/")
}

// checkDataPaths builds the dataset and cache paths from the environment.
func (r *Runner) checkDataPaths(context.Context) []Check {
	env := r.cfg.Environment
	targets := []struct {
		name string
		root string
		path func(string) string
		mode uint32
	}{
		{name: "dataset", root: env.DatasetVar, path: r.cfg.DatasetPath, mode: unix.R_OK | unix.X_OK},
		{name: "cache", root: env.OutputVar, path: r.cfg.CachePath, mode: unix.R_OK | unix.W_OK | unix.X_OK},
	}
	checks := make([]Check, 0, len(targets))
	for _, target := range targets {
		root, set := r.env(target.root)
		if !set {
			checks = append(checks, fail(CategoryPath, target.name,
				fmt.Sprintf("path not configured: %s is not set", target.root)))
			continue
		}
		checks = append(checks, checkPath(target.name, target.path(root), target.mode))
	}
	return checks
}

func checkPath(name, path string, mode uint32) Check {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return warn(CategoryPath, name, fmt.Sprintf("%s does not exist", path))
		}
		return warn(CategoryPath, name, fmt.Sprintf("%s (stat: %v)", path, err))
	}
	if err := unix.Access(path, mode); err != nil {
		return warn(CategoryPath, name, fmt.Sprintf("%s (insufficient permissions: %v)", path, err))
	}
	return ok(CategoryPath, name, path)
}

// checkAccelerator never fails; diagnostics also run on CPU-only login nodes.
// A device seen only on the PCI bus is a warning because the driver may be
// missing.
func (r *Runner) checkAccelerator(ctx context.Context) []Check {
	devices, err := r.accelerator.Devices(ctx)
	if len(devices) > 0 {
		detail := devices[0].Name
		if len(devices) > 1 {
			detail = fmt.Sprintf("%s (+%d more)", detail, len(devices)-1)
		}
		if !devices[0].DriverVerified() {
			return []Check{warn(CategoryHardware, "accelerator",
				fmt.Sprintf("NVIDIA device present (driver not verified): %s", detail))}
		}
		return []Check{ok(CategoryHardware, "accelerator", "CUDA available: "+detail)}
	}
	detail := "no CUDA accelerator available (OK on a login node)"
	if err != nil {
		detail = fmt.Sprintf("%s: %v", detail, err)
	}
	return []Check{warn(CategoryHardware, "accelerator", detail)}
}

func (r *Runner) checkBinaries(context.Context) []Check {
	status := deps.CheckFFmpeg(r.python.Binary(), r.cfg.Tools.FFmpeg)
	if status.Available {
		return []Check{ok(CategoryBinary, status.Name, fmt.Sprintf("%s (%s)", status.Command, status.Detail))}
	}
	return []Check{fail(CategoryBinary, status.Name,
		fmt.Sprintf("%s; %s", status.Detail, strings.ToLower(status.Description)))}
}

// checkMemory compares host memory with the experiment's memory budget.
func (r *Runner) checkMemory(context.Context) []Check {
	if r.memBudgetGB <= 0 {
		return []Check{info(CategoryHardware, "memory", "no memory budget configured")}
	}
	budget := uint64(r.memBudgetGB * float64(1<<30))
	total, err := r.memory()
	if err != nil {
		return []Check{warn(CategoryHardware, "memory", fmt.Sprintf("cannot read host memory: %v", err))}
	}
	detail := fmt.Sprintf("%s total, budget %s", humanize.IBytes(total), humanize.IBytes(budget))
	if total < budget {
		return []Check{warn(CategoryHardware, "memory", detail+" (job may be killed)")}
	}
	return []Check{ok(CategoryHardware, "memory", detail)}
}

// env treats an empty value as unset.
func (r *Runner) env(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	value, set := r.lookupEnv(name)
	value = strings.TrimSpace(value)
	return value, set && value != ""
}

func hostMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}
