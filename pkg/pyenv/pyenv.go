// Package pyenv discovers the Python interpreter environment: the module
// search path and the standard-library and site-packages roots. Discovery
// runs once per trace and the result is passed in explicitly, so the tracer
// stays testable with synthetic roots.
package pyenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultInterpreter is probed when no interpreter is configured.
const DefaultInterpreter = "python3"

// probeScript prints the interpreter environment as a single JSON object.
const probeScript = `import json, sys, sysconfig
print(json.dumps({
    "version": "%d.%d.%d" % sys.version_info[:3],
    "sysPath": [p for p in sys.path if p],
    "stdlibPaths": [p for p in (sysconfig.get_path("stdlib"), sysconfig.get_path("platstdlib")) if p],
    "sitePackagesPaths": [p for p in (sysconfig.get_path("purelib"), sysconfig.get_path("platlib")) if p],
}))`

// Environment describes one interpreter's module landscape. The zero value
// is usable and classifies nothing as stdlib or site-packages.
type Environment struct {
	Version           string   `json:"version"`
	SysPath           []string `json:"sysPath"`
	StdlibPaths       []string `json:"stdlibPaths"`
	SitePackagesPaths []string `json:"sitePackagesPaths"`
}

// Discover probes the given interpreter binary for its environment. On
// failure it returns an empty environment alongside the error, so callers
// can degrade to tracing without stdlib/site-packages classification.
func Discover(ctx context.Context, interpreter string) (*Environment, error) {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}

	out, err := exec.CommandContext(ctx, interpreter, "-c", probeScript).Output()
	if err != nil {
		return &Environment{}, fmt.Errorf("pyenv: probe %s: %w", interpreter, err)
	}

	var env Environment

	unmarshalErr := json.Unmarshal(out, &env)
	if unmarshalErr != nil {
		return &Environment{}, fmt.Errorf("pyenv: decode probe output: %w", unmarshalErr)
	}

	env.normalize()

	return &env, nil
}

func (e *Environment) normalize() {
	e.SysPath = absAll(e.SysPath)
	e.StdlibPaths = absAll(e.StdlibPaths)
	e.SitePackagesPaths = absAll(e.SitePackagesPaths)
}

func absAll(paths []string) []string {
	out := make([]string, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}

		out = append(out, abs)
	}

	return out
}

// IsStdlib reports whether path lies under a standard-library root.
func (e *Environment) IsStdlib(path string) bool {
	return e != nil && underAny(path, e.StdlibPaths)
}

// IsSitePackages reports whether path lies under a site-packages root.
func (e *Environment) IsSitePackages(path string) bool {
	return e != nil && underAny(path, e.SitePackagesPaths)
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}

		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}

	return false
}
