// Package pyast extracts import declarations and dynamic-load targets from
// Python source text. It parses with tree-sitter, so import-looking text
// inside string literals or comments is never misread as an import.
package pyast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for extraction.
var (
	errPoolType   = errors.New("pyast: unexpected parser pool type")
	errNoRootNode = errors.New("pyast: no root node")
)

// maxExpressionDepth bounds the rendering of non-literal dynamic-load
// arguments. Attribute chains deeper than this collapse to a placeholder.
const maxExpressionDepth = 4

const dynamicPlaceholder = "<dynamic>"

var (
	pyLang     *sitter.Language
	pyLangOnce sync.Once
)

func language() *sitter.Language {
	pyLangOnce.Do(func() {
		pyLang = sitter.NewLanguage(python.GetLanguage())
	})

	return pyLang
}

var parserPool = sync.Pool{
	New: func() any {
		tsParser := sitter.NewParser()
		tsParser.SetLanguage(language())

		return tsParser
	},
}

// Extract parses source and returns the static import declarations and the
// best-effort dynamic-import targets it contains. When the grammar reports a
// syntax error the declaration lists are empty and the error is a
// *SyntaxError carrying the first offending line. Extraction never panics
// past this boundary.
func Extract(source []byte) ([]ImportDeclaration, []DynamicImportTarget, error) {
	tsParser, ok := parserPool.Get().(*sitter.Parser)
	if !ok {
		return nil, nil, errPoolType
	}

	defer parserPool.Put(tsParser)

	tree, err := tsParser.ParseString(context.Background(), nil, source)
	if err != nil {
		return nil, nil, fmt.Errorf("pyast: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, nil, errNoRootNode
	}

	if errNode, found := findErrorNode(root); found {
		return nil, nil, &SyntaxError{Line: lineOf(errNode)}
	}

	w := &walker{
		source:     source,
		namespaces: map[string]bool{"importlib": true},
		loaders:    map[string]bool{},
	}

	// Statics first: the alias bindings they establish decide which calls
	// count as module-loader calls in the second pass.
	w.collectStatics(root)
	w.collectDynamics(root)

	return w.statics, w.dynamics, nil
}

// walker accumulates extraction state for one source file.
type walker struct {
	source   []byte
	statics  []ImportDeclaration
	dynamics []DynamicImportTarget

	// namespaces holds identifiers bound to the importlib module, so
	// `import importlib as il; il.import_module(...)` is recognized.
	namespaces map[string]bool

	// loaders holds identifiers bound to importlib.import_module itself,
	// covering `from importlib import import_module [as x]`.
	loaders map[string]bool
}

func (w *walker) collectStatics(n sitter.Node) {
	switch n.Type() {
	case "import_statement":
		w.addImportStatement(n)

		return
	case "import_from_statement":
		w.addFromStatement(n)

		return
	case "future_import_statement":
		w.addFutureStatement(n)

		return
	}

	for idx := range n.NamedChildCount() {
		w.collectStatics(n.NamedChild(idx))
	}
}

// addImportStatement handles `import a`, `import a.b as x`, and comma lists.
func (w *walker) addImportStatement(n sitter.Node) {
	line := lineOf(n)

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		var module string

		switch child.Type() {
		case "dotted_name":
			module = w.text(child)

			if module == "importlib" {
				w.namespaces[module] = true
			}
		case "aliased_import":
			module = w.text(child.ChildByFieldName("name"))
			alias := w.text(child.ChildByFieldName("alias"))

			if module == "importlib" && alias != "" {
				w.namespaces[alias] = true
			}
		default:
			continue
		}

		w.statics = append(w.statics, ImportDeclaration{
			Module: module,
			Line:   line,
		})
	}
}

// addFromStatement handles `from X import a, b as c, *` and relative forms.
func (w *walker) addFromStatement(n sitter.Node) {
	decl := ImportDeclaration{
		IsFrom: true,
		Line:   lineOf(n),
	}

	moduleNode := n.ChildByFieldName("module_name")
	if !moduleNode.IsNull() {
		switch moduleNode.Type() {
		case "relative_import":
			decl.Level, decl.Module = w.splitRelative(moduleNode)
		case "dotted_name":
			decl.Module = w.text(moduleNode)
		}
	}

	var moduleStart uint

	hasModuleNode := !moduleNode.IsNull()
	if hasModuleNode {
		moduleStart = moduleNode.StartByte()
	}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if hasModuleNode && child.StartByte() == moduleStart {
			continue
		}

		switch child.Type() {
		case "dotted_name":
			name := w.text(child)
			decl.Names = append(decl.Names, name)
			w.recordLoaderBinding(decl.Module, name, name)
		case "aliased_import":
			name := w.text(child.ChildByFieldName("name"))
			alias := w.text(child.ChildByFieldName("alias"))
			decl.Names = append(decl.Names, name)
			w.recordLoaderBinding(decl.Module, name, alias)
		case "wildcard_import":
			decl.Names = append(decl.Names, "*")
		}
	}

	w.statics = append(w.statics, decl)
}

// addFutureStatement handles `from __future__ import ...`, a distinct node
// type in the grammar whose module spelling is fixed.
func (w *walker) addFutureStatement(n sitter.Node) {
	decl := ImportDeclaration{
		Module: "__future__",
		IsFrom: true,
		Line:   lineOf(n),
	}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		switch child.Type() {
		case "dotted_name":
			decl.Names = append(decl.Names, w.text(child))
		case "aliased_import":
			decl.Names = append(decl.Names, w.text(child.ChildByFieldName("name")))
		}
	}

	w.statics = append(w.statics, decl)
}

// splitRelative splits a relative_import node into its dot count and the
// dotted remainder, which may be empty for `from . import x`.
func (w *walker) splitRelative(n sitter.Node) (level int, module string) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		switch child.Type() {
		case "import_prefix":
			level = strings.Count(w.text(child), ".")
		case "dotted_name":
			module = w.text(child)
		}
	}

	return level, module
}

func (w *walker) recordLoaderBinding(module, name, boundAs string) {
	if module == "importlib" && name == "import_module" && boundAs != "" {
		w.loaders[boundAs] = true
	}
}

func (w *walker) collectDynamics(n sitter.Node) {
	if n.Type() == "call" {
		w.addCall(n)
	}

	for idx := range n.NamedChildCount() {
		w.collectDynamics(n.NamedChild(idx))
	}
}

func (w *walker) addCall(n sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn.IsNull() {
		return
	}

	var kind DynamicKind

	switch fn.Type() {
	case "identifier":
		name := w.text(fn)

		switch {
		case name == "__import__":
			kind = DynamicBuiltin
		case w.loaders[name]:
			kind = DynamicImportlib
		default:
			return
		}
	case "attribute":
		attr := w.text(fn.ChildByFieldName("attribute"))
		obj := fn.ChildByFieldName("object")

		if attr != "import_module" || obj.IsNull() || obj.Type() != "identifier" || !w.namespaces[w.text(obj)] {
			return
		}

		kind = DynamicImportlib
	default:
		return
	}

	w.dynamics = append(w.dynamics, w.buildTarget(kind, n.ChildByFieldName("arguments"), lineOf(n)))
}

// buildTarget assembles a DynamicImportTarget from a recognized call's
// argument list. Both positional and keyword conventions are accepted for
// the module name and the anchor package.
func (w *walker) buildTarget(kind DynamicKind, args sitter.Node, line int) DynamicImportTarget {
	target := DynamicImportTarget{Kind: kind, Line: line}

	moduleArg, packageArg, haveModule, havePackage := w.splitArguments(args)
	if !haveModule {
		return target
	}

	value, literal := w.stringLiteral(moduleArg)
	if !literal {
		target.Expression = w.renderExpression(moduleArg, maxExpressionDepth)

		return target
	}

	target.Module = value
	target.HasModule = true

	if kind != DynamicImportlib || !havePackage {
		return target
	}

	if pkg, ok := w.stringLiteral(packageArg); ok {
		target.Package = pkg
	} else {
		target.Package = w.renderExpression(packageArg, maxExpressionDepth)
	}

	// Leading dots only mean something relative when an anchor accompanies
	// them. An anchor with an absolute module name is ignored.
	if strings.HasPrefix(target.Module, ".") {
		trimmed := strings.TrimLeft(target.Module, ".")
		target.Level = len(target.Module) - len(trimmed)
		target.Module = trimmed
	}

	return target
}

// splitArguments locates the module and anchor-package arguments in an
// argument_list, honoring the `name` and `package` keywords.
func (w *walker) splitArguments(args sitter.Node) (moduleArg, packageArg sitter.Node, haveModule, havePackage bool) {
	if args.IsNull() {
		return moduleArg, packageArg, false, false
	}

	positional := 0

	for idx := range args.NamedChildCount() {
		child := args.NamedChild(idx)

		switch child.Type() {
		case "comment":
			continue
		case "keyword_argument":
			key := w.text(child.ChildByFieldName("name"))
			value := child.ChildByFieldName("value")

			switch key {
			case "name":
				moduleArg, haveModule = value, true
			case "package":
				packageArg, havePackage = value, true
			}
		default:
			switch positional {
			case 0:
				moduleArg, haveModule = child, true
			case 1:
				packageArg, havePackage = child, true
			}

			positional++
		}
	}

	return moduleArg, packageArg, haveModule, havePackage
}

// stringLiteral returns the value of a plain string literal node. F-strings
// and anything containing interpolation are not literals.
func (w *walker) stringLiteral(n sitter.Node) (string, bool) {
	switch n.Type() {
	case "string":
		return w.plainString(n)
	case "concatenated_string":
		var sb strings.Builder

		for idx := range n.NamedChildCount() {
			part, ok := w.plainString(n.NamedChild(idx))
			if !ok {
				return "", false
			}

			sb.WriteString(part)
		}

		return sb.String(), true
	}

	return "", false
}

func (w *walker) plainString(n sitter.Node) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}

	for idx := range n.NamedChildCount() {
		if n.NamedChild(idx).Type() == "interpolation" {
			return "", false
		}
	}

	raw := w.text(n)

	// Strip prefix letters. An f-prefix makes the value non-literal even
	// without interpolations.
	i := 0
	for i < len(raw) && raw[i] != '"' && raw[i] != '\'' {
		if raw[i] == 'f' || raw[i] == 'F' {
			return "", false
		}

		i++
	}

	raw = raw[i:]

	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, quote) && strings.HasSuffix(raw, quote) && len(raw) >= 2*len(quote) {
			return raw[len(quote) : len(raw)-len(quote)], true
		}
	}

	return "", false
}

// renderExpression gives a diagnostic rendering of a non-literal argument.
// Recursion is capped; pathological nesting collapses to a placeholder.
func (w *walker) renderExpression(n sitter.Node, depth int) string {
	if n.IsNull() || depth <= 0 {
		return dynamicPlaceholder
	}

	switch n.Type() {
	case "identifier", "dotted_name":
		return w.text(n)
	case "attribute":
		obj := w.renderExpression(n.ChildByFieldName("object"), depth-1)

		return obj + "." + w.text(n.ChildByFieldName("attribute"))
	case "string", "concatenated_string":
		return w.text(n)
	case "call":
		return w.renderExpression(n.ChildByFieldName("function"), depth-1) + "(...)"
	}

	return dynamicPlaceholder
}

func (w *walker) text(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(w.source)) || start > end {
		return ""
	}

	return string(w.source[start:end])
}

func findErrorNode(n sitter.Node) (sitter.Node, bool) {
	if n.Type() == "ERROR" {
		return n, true
	}

	for idx := range n.NamedChildCount() {
		if errNode, found := findErrorNode(n.NamedChild(idx)); found {
			return errNode, true
		}
	}

	return sitter.Node{}, false
}

func lineOf(n sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
