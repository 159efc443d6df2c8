package pyast

import "fmt"

// ImportDeclaration describes one static import statement found in a file.
// A comma-joined statement like `import a, b` produces one declaration per
// module, matching how the statement binds names.
type ImportDeclaration struct {
	// Module is the dotted module name. Empty for a bare relative import
	// such as `from . import x`.
	Module string

	// Names lists the names pulled from the module for from-style imports,
	// in source order. A wildcard import contributes "*".
	Names []string

	// IsFrom is true for `from X import ...` statements.
	IsFrom bool

	// Level is the count of leading dots in a relative import. Zero means
	// the import is absolute.
	Level int

	// Line is the 1-based source line of the statement.
	Line int
}

// Spelling returns the module reference as written in source, including
// leading dots for relative imports.
func (d ImportDeclaration) Spelling() string {
	if d.Level == 0 {
		return d.Module
	}

	dots := make([]byte, d.Level)
	for i := range dots {
		dots[i] = '.'
	}

	return string(dots) + d.Module
}

// DynamicKind identifies which dynamic-load function produced a target.
type DynamicKind string

// Dynamic-load call kinds.
const (
	DynamicBuiltin   DynamicKind = "builtin"   // __import__(...)
	DynamicImportlib DynamicKind = "importlib" // importlib.import_module(...)
)

// DynamicImportTarget is a best-effort record of a dynamic-load call.
type DynamicImportTarget struct {
	Kind DynamicKind

	// Module is the literal module argument. Only meaningful when HasModule
	// is true; a call whose module argument is not a string literal cannot
	// be followed.
	Module    string
	HasModule bool

	// Package is the anchor-package argument, when present and literal.
	Package string

	// Level is derived from leading dots in Module when an anchor package
	// accompanies the call. Zero otherwise.
	Level int

	// Line is the 1-based source line of the call.
	Line int

	// Expression holds a rendering of the module argument when it was not a
	// string literal, kept for diagnostics only.
	Expression string
}

// SyntaxError reports that a source file could not be parsed. Extraction
// returns empty results alongside it; the caller decides whether to warn.
type SyntaxError struct {
	Line int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d", e.Line)
}
