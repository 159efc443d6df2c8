package pyast //nolint:testpackage // testing internal implementation.

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractStatics(t *testing.T, source string) []ImportDeclaration {
	t.Helper()

	decls, _, err := Extract([]byte(source))
	require.NoError(t, err)

	return decls
}

func extractDynamics(t *testing.T, source string) []DynamicImportTarget {
	t.Helper()

	_, dynamics, err := Extract([]byte(source))
	require.NoError(t, err)

	return dynamics
}

func TestExtract_StaticForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		want   []ImportDeclaration
	}{
		{
			name:   "bare import",
			source: "import os\n",
			want:   []ImportDeclaration{{Module: "os", Line: 1}},
		},
		{
			name:   "dotted import",
			source: "import os.path\n",
			want:   []ImportDeclaration{{Module: "os.path", Line: 1}},
		},
		{
			name:   "aliased import",
			source: "import numpy as np\n",
			want:   []ImportDeclaration{{Module: "numpy", Line: 1}},
		},
		{
			name:   "comma-joined import",
			source: "import json, sys\n",
			want: []ImportDeclaration{
				{Module: "json", Line: 1},
				{Module: "sys", Line: 1},
			},
		},
		{
			name:   "from import",
			source: "from collections import OrderedDict, defaultdict\n",
			want: []ImportDeclaration{{
				Module: "collections",
				Names:  []string{"OrderedDict", "defaultdict"},
				IsFrom: true,
				Line:   1,
			}},
		},
		{
			name:   "from import with alias",
			source: "from os import path as p\n",
			want: []ImportDeclaration{{
				Module: "os",
				Names:  []string{"path"},
				IsFrom: true,
				Line:   1,
			}},
		},
		{
			name:   "relative bare import",
			source: "from . import sibling\n",
			want: []ImportDeclaration{{
				Names:  []string{"sibling"},
				IsFrom: true,
				Level:  1,
				Line:   1,
			}},
		},
		{
			name:   "relative dotted import",
			source: "from ..pkg.sub import thing\n",
			want: []ImportDeclaration{{
				Module: "pkg.sub",
				Names:  []string{"thing"},
				IsFrom: true,
				Level:  2,
				Line:   1,
			}},
		},
		{
			name:   "wildcard import",
			source: "from helpers import *\n",
			want: []ImportDeclaration{{
				Module: "helpers",
				Names:  []string{"*"},
				IsFrom: true,
				Line:   1,
			}},
		},
		{
			name:   "future import",
			source: "from __future__ import annotations\n",
			want: []ImportDeclaration{{
				Module: "__future__",
				Names:  []string{"annotations"},
				IsFrom: true,
				Line:   1,
			}},
		},
		{
			name:   "import nested in function body",
			source: "def lazy():\n    import heavy\n    return heavy\n",
			want:   []ImportDeclaration{{Module: "heavy", Line: 2}},
		},
		{
			name:   "parenthesized multi-line import",
			source: "from pkg import (\n    alpha,\n    beta,\n)\n",
			want: []ImportDeclaration{{
				Module: "pkg",
				Names:  []string{"alpha", "beta"},
				IsFrom: true,
				Line:   1,
			}},
		},
		{
			name:   "backslash continuation",
			source: "import first, \\\n    second\n",
			want: []ImportDeclaration{
				{Module: "first", Line: 1},
				{Module: "second", Line: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := extractStatics(t, tt.source)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_IgnoresStringsAndComments(t *testing.T) {
	t.Parallel()

	source := `# import commented
text = "import os"
doc = """
from x import y
"""
`

	decls := extractStatics(t, source)
	assert.Empty(t, decls)
}

func TestExtract_LineNumbers(t *testing.T) {
	t.Parallel()

	source := "x = 1\n\nimport late\n"

	decls := extractStatics(t, source)
	require.Len(t, decls, 1)
	assert.Equal(t, 3, decls[0].Line)
}

func TestExtract_DynamicBuiltin(t *testing.T) {
	t.Parallel()

	dynamics := extractDynamics(t, `mod = __import__("json")`)
	require.Len(t, dynamics, 1)
	assert.Equal(t, DynamicBuiltin, dynamics[0].Kind)
	assert.True(t, dynamics[0].HasModule)
	assert.Equal(t, "json", dynamics[0].Module)
	assert.Equal(t, 1, dynamics[0].Line)
}

func TestExtract_DynamicImportlibForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		module string
	}{
		{
			name:   "plain attribute call",
			source: "import importlib\nimportlib.import_module(\"a.b\")\n",
			module: "a.b",
		},
		{
			name:   "aliased namespace",
			source: "import importlib as il\nil.import_module(\"plugins\")\n",
			module: "plugins",
		},
		{
			name:   "directly imported loader",
			source: "from importlib import import_module\nimport_module(\"direct\")\n",
			module: "direct",
		},
		{
			name:   "aliased loader",
			source: "from importlib import import_module as load\nload(\"renamed\")\n",
			module: "renamed",
		},
		{
			name:   "keyword module argument",
			source: "import importlib\nimportlib.import_module(name=\"kw\")\n",
			module: "kw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dynamics := extractDynamics(t, tt.source)
			require.Len(t, dynamics, 1)
			assert.Equal(t, DynamicImportlib, dynamics[0].Kind)
			assert.True(t, dynamics[0].HasModule)
			assert.Equal(t, tt.module, dynamics[0].Module)
		})
	}
}

func TestExtract_DynamicAnchorPackage(t *testing.T) {
	t.Parallel()

	t.Run("relative module with anchor", func(t *testing.T) {
		t.Parallel()

		dynamics := extractDynamics(t, "import importlib\nimportlib.import_module(\"..mod\", package=\"pkg.sub\")\n")
		require.Len(t, dynamics, 1)
		assert.Equal(t, 2, dynamics[0].Level)
		assert.Equal(t, "mod", dynamics[0].Module)
		assert.Equal(t, "pkg.sub", dynamics[0].Package)
	})

	t.Run("absolute module with anchor keeps level zero", func(t *testing.T) {
		t.Parallel()

		dynamics := extractDynamics(t, "import importlib\nimportlib.import_module(\"abs.mod\", \"anchor\")\n")
		require.Len(t, dynamics, 1)
		assert.Equal(t, 0, dynamics[0].Level)
		assert.Equal(t, "abs.mod", dynamics[0].Module)
	})
}

func TestExtract_DynamicNonLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		source     string
		expression string
	}{
		{
			name:       "identifier argument",
			source:     "__import__(module_name)\n",
			expression: "module_name",
		},
		{
			name:       "attribute chain",
			source:     "import importlib\nimportlib.import_module(cfg.plugin.name)\n",
			expression: "cfg.plugin.name",
		},
		{
			name:       "call argument",
			source:     "__import__(pick_module())\n",
			expression: "pick_module(...)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dynamics := extractDynamics(t, tt.source)
			require.Len(t, dynamics, 1)
			assert.False(t, dynamics[0].HasModule)
			assert.Equal(t, tt.expression, dynamics[0].Expression)
		})
	}
}

func TestExtract_DynamicFStringIsNotLiteral(t *testing.T) {
	t.Parallel()

	dynamics := extractDynamics(t, "import importlib\nimportlib.import_module(f\"plugins.{name}\")\n")
	require.Len(t, dynamics, 1)
	assert.False(t, dynamics[0].HasModule)
}

func TestExtract_DynamicDeepChainCollapses(t *testing.T) {
	t.Parallel()

	dynamics := extractDynamics(t, "__import__(a.b.c.d.e.f.g)\n")
	require.Len(t, dynamics, 1)
	assert.False(t, dynamics[0].HasModule)
	assert.Contains(t, dynamics[0].Expression, dynamicPlaceholder)
}

func TestExtract_UnrelatedCallsIgnored(t *testing.T) {
	t.Parallel()

	source := "other.import_module(\"x\")\nload_module(\"y\")\n"

	dynamics := extractDynamics(t, source)
	assert.Empty(t, dynamics)
}

func TestExtract_SyntaxError(t *testing.T) {
	t.Parallel()

	decls, dynamics, err := Extract([]byte("import os\ndef broken(:\n"))

	var syntaxErr *SyntaxError

	require.Error(t, err)
	require.True(t, errors.As(err, &syntaxErr))
	assert.Positive(t, syntaxErr.Line)
	assert.Empty(t, decls)
	assert.Empty(t, dynamics)
	assert.True(t, strings.Contains(err.Error(), "syntax error"))
}

func TestImportDeclaration_Spelling(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "os.path", ImportDeclaration{Module: "os.path"}.Spelling())
	assert.Equal(t, "..mod", ImportDeclaration{Module: "mod", Level: 2}.Spelling())
	assert.Equal(t, ".", ImportDeclaration{Level: 1}.Spelling())
}
