package tracer

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/pytrace/pkg/pyenv"
)

// InclusionKind says how a file entered the trace.
type InclusionKind string

// Inclusion kinds.
const (
	KindInitial InclusionKind = "initial" // entry file
	KindImport  InclusionKind = "import"  // static import target
	KindPackage InclusionKind = "package" // package __init__.py
)

// Reason records why one file is in the result. The first write of Kind and
// Module wins; Parents accumulates across every visit, so a file reachable
// via N importers ends up with exactly N parents regardless of visit order.
type Reason struct {
	Kind    InclusionKind
	Parents map[string]struct{}

	// Ignored marks a file that policy excluded but that is still recorded
	// for diagnostics.
	Ignored bool

	// Module is the dotted name used to reach the file, when known.
	Module string
}

// AddParent records one more importer of this file.
func (r *Reason) AddParent(parent string) {
	if r.Parents == nil {
		r.Parents = make(map[string]struct{})
	}

	r.Parents[parent] = struct{}{}
}

// SortedParents returns the parents in lexical order.
func (r *Reason) SortedParents() []string {
	out := make([]string, 0, len(r.Parents))
	for p := range r.Parents {
		out = append(out, p)
	}

	sort.Strings(out)

	return out
}

func (r *Reason) clone() *Reason {
	cp := &Reason{
		Kind:    r.Kind,
		Ignored: r.Ignored,
		Module:  r.Module,
		Parents: make(map[string]struct{}, len(r.Parents)),
	}

	for p := range r.Parents {
		cp.Parents[p] = struct{}{}
	}

	return cp
}

// Result is the frozen outcome of one trace run. Reasons is a superset of
// Files: it also records reachable-but-ignored paths.
type Result struct {
	Files    map[string]struct{}
	Reasons  map[string]*Reason
	Warnings []string
	Base     string
}

// SortedFiles returns the included files in lexical order.
func (r *Result) SortedFiles() []string {
	out := make([]string, 0, len(r.Files))
	for f := range r.Files {
		out = append(out, f)
	}

	sort.Strings(out)

	return out
}

// RelativeFiles returns the included files relative to Base. Files outside
// Base keep their absolute paths.
func (r *Result) RelativeFiles() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Files))

	for f := range r.Files {
		out[r.Relative(f)] = struct{}{}
	}

	return out
}

// Relative rewrites one path relative to Base when it lies underneath it.
func (r *Result) Relative(path string) string {
	rel, err := filepath.Rel(r.Base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return rel
}

// Options configures a trace run.
type Options struct {
	// Base is the directory relative output is computed against. Defaults
	// to the current working directory.
	Base string

	// IgnorePatterns are glob patterns matched against both the full path
	// and the bare filename of every reachable file.
	IgnorePatterns []string

	// IncludeStdlib includes standard-library files in the result.
	IncludeStdlib bool

	// IncludeSitePackages includes third-party packages in the result.
	IncludeSitePackages bool

	// FollowDynamicImports follows dynamic-load calls with literal module
	// arguments.
	FollowDynamicImports bool

	// MaxDepth bounds recursion depth. Nil means unlimited.
	MaxDepth *int

	// Env supplies the interpreter environment used for search paths and
	// stdlib/site-packages classification. Nil means an empty environment.
	Env *pyenv.Environment
}

// DefaultOptions returns the option defaults: site-packages included,
// stdlib and dynamic imports excluded, unlimited depth.
func DefaultOptions() Options {
	return Options{IncludeSitePackages: true}
}
