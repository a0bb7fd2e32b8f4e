package kiln_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sjc5/kiln"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKilnBuild(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "source", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(page), 0755))
	require.NoError(t, os.WriteFile(page, []byte("<p>  hello  </p>"), 0644))

	k := kiln.New(root)
	assert.Equal(t, kiln.DefaultPort, k.Config.Port)
	require.NoError(t, k.Build(context.Background()))

	out, err := os.ReadFile(filepath.Join(root, "build", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello")
	assert.NotContains(t, string(out), "  ")

	require.NoError(t, k.Clean())
	_, err = os.Stat(filepath.Join(root, "build"))
	assert.True(t, os.IsNotExist(err))
}

func TestKilnErrors(t *testing.T) {
	root := t.TempDir()
	script := filepath.Join(root, "source", "js", "script.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(script), 0755))
	require.NoError(t, os.WriteFile(script, []byte("function ("), 0644))

	err := kiln.New(root).MinifyScript()
	require.Error(t, err)
	assert.ErrorIs(t, err, kiln.ErrScript)
	assert.True(t, kiln.IsTransformError(err))

	var se *kiln.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "minifyJs", se.Stage)
}
