package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValidatorResolve(t *testing.T) {
	base := t.TempDir()
	pdfPath := filepath.Join(base, "form.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.7"), 0644))

	v, err := newPathValidator(base)
	require.NoError(t, err)

	t.Run("relative path resolves inside base", func(t *testing.T) {
		got, err := v.Resolve("form.pdf")
		require.NoError(t, err)
		assert.Equal(t, pdfPath, got)
	})

	t.Run("absolute path inside base", func(t *testing.T) {
		got, err := v.Resolve(pdfPath)
		require.NoError(t, err)
		assert.Equal(t, pdfPath, got)
	})

	t.Run("rejects path outside base", func(t *testing.T) {
		_, err := v.Resolve("/etc/passwd")
		assert.Error(t, err)
	})

	t.Run("rejects traversal out of base", func(t *testing.T) {
		_, err := v.Resolve("../" + filepath.Base(base) + "-other/form.pdf")
		assert.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, err := v.Resolve("absent.pdf")
		assert.Error(t, err)
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := v.Resolve("")
		assert.Error(t, err)
	})
}

func TestNewPathValidatorRequiresDirectory(t *testing.T) {
	_, err := newPathValidator("")
	assert.Error(t, err)
}
