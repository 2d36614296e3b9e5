package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, Logs(&buf, path, true, ModeFull))
	assert.Equal(t, "first\nsecond\n", buf.String())

	buf.Reset()
	require.NoError(t, Logs(&buf, path, false, ""))
	assert.Equal(t, "first\nsecond\n", buf.String())
}

func TestLogsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	err := Logs(&bytes.Buffer{}, path, false, ModeFull)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")

	err = Logs(&bytes.Buffer{}, path, true, ModeFull)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log file")

	err = Logs(&bytes.Buffer{}, path, true, ModeLive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLogsLiveRequiresLogging(t *testing.T) {
	err := Logs(&bytes.Buffer{}, filepath.Join(t.TempDir(), "x"), false, ModeLive)
	assert.Error(t, err)
}

func TestLogsUnknownMode(t *testing.T) {
	err := Logs(&bytes.Buffer{}, "unused", true, Mode("verbose"))
	assert.Error(t, err)
}
