// Package resolver maps import declarations to concrete files on disk.
// Absence of a matching file is a normal outcome, never an error.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/pytrace/pkg/pyast"
)

// Filesystem conventions for Python modules.
const (
	// SourceExt is the extension marking a file as a Python module.
	SourceExt = ".py"

	// PackageMarker is the file whose presence marks a directory as a
	// regular package.
	PackageMarker = "__init__.py"
)

// Kind tags the outcome of resolving one import declaration.
type Kind int

// Resolution outcomes.
const (
	KindUnresolved Kind = iota
	KindModule
	KindPackage
	KindNamespaceDir
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindPackage:
		return "package"
	case KindNamespaceDir:
		return "namespace"
	default:
		return "unresolved"
	}
}

// Resolution is the result of resolving a declaration: a module file, a
// package marker file, a namespace directory, or nothing.
type Resolution struct {
	Kind Kind
	Path string
}

// Resolved reports whether the declaration matched anything on disk.
func (r Resolution) Resolved() bool {
	return r.Kind != KindUnresolved
}

// Resolve maps decl to a path on disk. Relative declarations resolve against
// the directory containing fromFile; absolute declarations are searched
// across searchPaths in order, and the first matching root wins.
func Resolve(decl pyast.ImportDeclaration, fromFile string, searchPaths []string) Resolution {
	if decl.Level > 0 {
		return resolveRelative(decl, fromFile)
	}

	return ResolveAbsolute(decl.Module, searchPaths)
}

// resolveRelative ascends level-1 parents from the importing file's own
// directory, then descends through the module's dotted components. Level 1
// means "this package", so no extra ascent.
func resolveRelative(decl pyast.ImportDeclaration, fromFile string) Resolution {
	current := filepath.Dir(fromFile)

	for range decl.Level - 1 {
		current = filepath.Dir(current)
	}

	if decl.Module != "" {
		for part := range strings.SplitSeq(decl.Module, ".") {
			current = filepath.Join(current, part)
		}
	}

	return FindModuleFile(current)
}

// ResolveAbsolute searches the ordered roots for a dotted module name. Later
// roots are never consulted once a root matches. An empty search-path list
// yields no matches.
func ResolveAbsolute(module string, searchPaths []string) Resolution {
	if module == "" {
		return Resolution{}
	}

	parts := strings.Split(module, ".")

	for _, root := range searchPaths {
		if _, err := os.Stat(root); err != nil {
			continue
		}

		candidate := filepath.Join(append([]string{root}, parts...)...)

		if res := FindModuleFile(candidate); res.Resolved() {
			return res
		}
	}

	return Resolution{}
}

// FindModuleFile applies the module-file-finding rule to a candidate base
// path: a regular module first, then a package marker, then a bare directory
// as a namespace package.
func FindModuleFile(base string) Resolution {
	if moduleFile := base + SourceExt; isRegularFile(moduleFile) {
		return Resolution{Kind: KindModule, Path: moduleFile}
	}

	if marker := filepath.Join(base, PackageMarker); isRegularFile(marker) {
		return Resolution{Kind: KindPackage, Path: marker}
	}

	if info, err := os.Stat(base); err == nil && info.IsDir() {
		return Resolution{Kind: KindNamespaceDir, Path: base}
	}

	return Resolution{}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
