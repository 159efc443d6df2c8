// Package tracer computes the closure of files a Python program needs, by
// recursively extracting and resolving imports from a set of entry files.
// A single Tracer performs one run; it owns the visited set and the
// provenance map, and the returned Result is an immutable snapshot.
package tracer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Sumatoshi-tech/pytrace/pkg/pyast"
	"github.com/Sumatoshi-tech/pytrace/pkg/pyenv"
	"github.com/Sumatoshi-tech/pytrace/pkg/resolver"
)

type extractFunc func(source []byte) ([]pyast.ImportDeclaration, []pyast.DynamicImportTarget, error)

// Tracer drives one trace run. Not safe for concurrent use; all recursion
// into the visited set and the provenance map is sequential.
type Tracer struct {
	opts Options
	env  *pyenv.Environment

	files     map[string]struct{}
	reasons   map[string]*Reason
	warnings  []string
	processed map[string]struct{}

	searchPaths []string
	depth       int

	extract extractFunc
}

// New creates a Tracer for one run with the given options.
func New(opts Options) *Tracer {
	env := opts.Env
	if env == nil {
		env = &pyenv.Environment{}
	}

	return &Tracer{
		opts:      opts,
		env:       env,
		files:     make(map[string]struct{}),
		reasons:   make(map[string]*Reason),
		processed: make(map[string]struct{}),
		extract:   pyast.Extract,
	}
}

// Trace resolves the transitive import closure of the entry files. Entry
// paths that do not exist as files are skipped, not errors. The only hard
// failure is an invalid invocation.
func (t *Tracer) Trace(entryFiles []string) (*Result, error) {
	base := t.opts.Base
	if base == "" {
		base = "."
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("tracer: resolve base %s: %w", base, err)
	}

	t.searchPaths = t.buildSearchPaths(absBase)

	for _, entry := range entryFiles {
		abs, absErr := filepath.Abs(entry)
		if absErr != nil {
			continue
		}

		if isRegularFile(abs) {
			t.visit(abs, KindInitial, "", "")
		}
	}

	return t.snapshot(absBase), nil
}

func (t *Tracer) snapshot(base string) *Result {
	files := make(map[string]struct{}, len(t.files))
	for f := range t.files {
		files[f] = struct{}{}
	}

	reasons := make(map[string]*Reason, len(t.reasons))
	for path, reason := range t.reasons {
		reasons[path] = reason.clone()
	}

	warnings := make([]string, len(t.warnings))
	copy(warnings, t.warnings)

	return &Result{
		Files:    files,
		Reasons:  reasons,
		Warnings: warnings,
		Base:     base,
	}
}

// buildSearchPaths assembles the ordered module roots: the base directory,
// its src/ subdirectory when present, then the interpreter's sys.path
// entries that exist on disk. Order is significant and duplicates are
// dropped.
func (t *Tracer) buildSearchPaths(base string) []string {
	paths := []string{base}
	seen := map[string]struct{}{base: {}}

	if src := filepath.Join(base, "src"); isDir(src) {
		paths = append(paths, src)
		seen[src] = struct{}{}
	}

	for _, p := range t.env.SysPath {
		if _, dup := seen[p]; dup || !isDir(p) {
			continue
		}

		paths = append(paths, p)
		seen[p] = struct{}{}
	}

	return paths
}

// visit applies the core recursive rule to one absolute path.
func (t *Tracer) visit(path string, kind InclusionKind, parent, module string) {
	if t.opts.MaxDepth != nil && t.depth > *t.opts.MaxDepth {
		return
	}

	// A file already processed this run only collects the new parent.
	// This keeps extraction at most once per path and makes cycles safe.
	if _, done := t.processed[path]; done {
		if parent != "" {
			if reason, ok := t.reasons[path]; ok {
				reason.AddParent(parent)
			}
		}

		return
	}

	if !t.shouldInclude(path) {
		reason, ok := t.reasons[path]
		if !ok {
			reason = &Reason{Kind: kind, Ignored: true, Module: module}
			t.reasons[path] = reason
		}

		if parent != "" {
			reason.AddParent(parent)
		}

		return
	}

	t.files[path] = struct{}{}

	reason, ok := t.reasons[path]
	if !ok {
		reason = &Reason{Kind: kind, Module: module}
		t.reasons[path] = reason
	}

	if parent != "" {
		reason.AddParent(parent)
	}

	// Mark before recursing so self-imports and mutual imports terminate.
	t.processed[path] = struct{}{}

	if strings.HasSuffix(path, resolver.SourceExt) && isRegularFile(path) {
		t.depth++
		t.processImports(path)
		t.depth--
	}
}

func (t *Tracer) processImports(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		t.warnf("could not read %s: %v", path, err)

		return
	}

	decls, dynamics, err := t.extract(source)
	if err != nil {
		var syntaxErr *pyast.SyntaxError
		if errors.As(err, &syntaxErr) {
			t.warnf("syntax error in %s at line %d", path, syntaxErr.Line)
		} else {
			t.warnf("could not parse %s: %v", path, err)
		}
	}

	for _, decl := range decls {
		t.processImport(decl, path)
	}

	if !t.opts.FollowDynamicImports {
		return
	}

	for _, target := range dynamics {
		if !target.HasModule {
			t.warnf("could not statically resolve dynamic import in %s at line %d: dynamic expression %s",
				path, target.Line, target.Expression)

			continue
		}

		t.processImport(pyast.ImportDeclaration{
			Module: target.Module,
			Level:  target.Level,
			Line:   target.Line,
		}, path)
	}
}

// processImport resolves one declaration and recurses into the result.
func (t *Tracer) processImport(decl pyast.ImportDeclaration, fromFile string) {
	res := resolver.Resolve(decl, fromFile, t.searchPaths)

	switch res.Kind {
	case resolver.KindUnresolved:
		t.warnf("could not resolve import %q in %s", decl.Spelling(), fromFile)

		return
	case resolver.KindModule:
		t.visit(res.Path, KindImport, fromFile, decl.Module)
	case resolver.KindPackage:
		t.visit(res.Path, KindPackage, fromFile, decl.Module)
	case resolver.KindNamespaceDir:
		// A namespace directory carries no marker file of its own and no
		// direct imports; only named submodules below can pull files in.
	}

	if decl.IsFrom && len(decl.Names) > 0 {
		t.resolveFromImports(decl, res, fromFile)
	}
}

// resolveFromImports probes `from X import a, b` names as potential
// submodules or subpackages of X, the re-export pattern packages use.
func (t *Tracer) resolveFromImports(decl pyast.ImportDeclaration, res resolver.Resolution, fromFile string) {
	var packageDir string

	switch res.Kind {
	case resolver.KindPackage:
		packageDir = filepath.Dir(res.Path)
	case resolver.KindNamespaceDir:
		packageDir = res.Path
	default:
		// A plain module: the names are attributes, not files.
		return
	}

	for _, name := range decl.Names {
		if name == "*" {
			continue
		}

		qualified := name
		if decl.Module != "" {
			qualified = decl.Module + "." + name
		}

		if submodule := filepath.Join(packageDir, name+resolver.SourceExt); isRegularFile(submodule) {
			t.visit(submodule, KindImport, fromFile, qualified)
		}

		if marker := filepath.Join(packageDir, name, resolver.PackageMarker); isRegularFile(marker) {
			t.visit(marker, KindPackage, fromFile, qualified)
		}
	}
}

func (t *Tracer) shouldInclude(path string) bool {
	if t.shouldIgnore(path) {
		return false
	}

	if t.env.IsStdlib(path) {
		return t.opts.IncludeStdlib
	}

	if t.env.IsSitePackages(path) {
		return t.opts.IncludeSitePackages
	}

	return true
}

func (t *Tracer) shouldIgnore(path string) bool {
	name := filepath.Base(path)

	for _, pattern := range t.opts.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}

		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

func (t *Tracer) warnf(format string, args ...any) {
	t.warnings = append(t.warnings, fmt.Sprintf(format, args...))
}

// PackageFiles lists every Python source file under a package directory.
func PackageFiles(packageDir string) ([]string, error) {
	if !isDir(packageDir) {
		return nil, nil
	}

	var files []string

	err := filepath.WalkDir(packageDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() && strings.HasSuffix(path, resolver.SourceExt) {
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				return absErr
			}

			files = append(files, abs)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: walk package %s: %w", packageDir, err)
	}

	return files, nil
}

// Trace is the package-level convenience wrapper: one call, one run.
func Trace(entryFiles []string, opts Options) (*Result, error) {
	return New(opts).Trace(entryFiles)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
