package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeed_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - name: Gentle Foam
    brand: Acme
    category: cleanser
    applicationTime: both
`), 0o600))

	out, err := execute(t, "--file", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "1 products")
}

func TestSeed_ExampleCatalogIsValid(t *testing.T) {
	out, err := execute(t, "--file", filepath.Join("..", "..", "database", "seed", "catalog.yaml"), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestSeed_Errors(t *testing.T) {
	_, err := execute(t)
	assert.Error(t, err)

	_, err = execute(t, "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to open catalog")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products: []\n"), 0o600))
	_, err = execute(t, "--file", path, "--dry-run")
	assert.ErrorContains(t, err, "no products")
}
