package pyenv //nolint:testpackage // testing internal implementation.

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_Classification(t *testing.T) {
	t.Parallel()

	stdlib := filepath.Join(t.TempDir(), "python3.12")
	site := filepath.Join(t.TempDir(), "site-packages")

	env := &Environment{
		StdlibPaths:       []string{stdlib},
		SitePackagesPaths: []string{site},
	}

	assert.True(t, env.IsStdlib(filepath.Join(stdlib, "os.py")))
	assert.True(t, env.IsStdlib(stdlib))
	assert.False(t, env.IsStdlib(filepath.Join(site, "requests", "api.py")))

	assert.True(t, env.IsSitePackages(filepath.Join(site, "requests", "api.py")))
	assert.False(t, env.IsSitePackages("/home/user/app/main.py"))

	// A sibling directory sharing the prefix string is not underneath.
	assert.False(t, env.IsStdlib(stdlib+"-extras/os.py"))
}

func TestEnvironment_ZeroValue(t *testing.T) {
	t.Parallel()

	var env Environment

	assert.False(t, env.IsStdlib("/usr/lib/python3.12/os.py"))
	assert.False(t, env.IsSitePackages("/usr/lib/python3.12/site-packages/x.py"))

	var nilEnv *Environment

	assert.False(t, nilEnv.IsStdlib("/anything"))
	assert.False(t, nilEnv.IsSitePackages("/anything"))
}

func TestDiscover_MissingInterpreter(t *testing.T) {
	t.Parallel()

	env, err := Discover(t.Context(), "definitely-not-a-python-binary")
	require.Error(t, err)
	require.NotNil(t, env)
	assert.Empty(t, env.SysPath)
}
