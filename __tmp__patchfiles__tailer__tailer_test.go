package tailer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sshwatch/sshwatch/tailer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestReadAvailableBasic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0644))

	tf := tailer.New(afero.NewOsFs(), path, false)
	lines, err := tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Equal(t, []string{"line one", "line two"}, lines)
}

func TestReadAvailablePathMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.log")

	tf := tailer.New(afero.NewOsFs(), path, false)
	lines, err := tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestReadAvailablePartialLineHeldBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("complete line\nno newline yet"), 0644))

	tf := tailer.New(afero.NewOsFs(), path, false)
	lines, err := tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Equal(t, []string{"complete line"}, lines)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(" now finished\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lines, err = tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Equal(t, []string{"no newline yet now finished"}, lines)
}

// TestRotation covers S6: a file is replaced with a new inode containing
// fresh content; the next ReadAvailable must return only the new content.
func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("old line one\nold line two\n"), 0644))

	tf := tailer.New(afero.NewOsFs(), path, false)
	lines, err := tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Equal(t, []string{"old line one", "old line two"}, lines)

	// simulate logrotate: rename away, write a fresh file at the same path
	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, os.WriteFile(path, []byte("new line\n"), 0644))

	lines, err = tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Equal(t, []string{"new line"}, lines)
}

func TestStartAtEndOnlySkipsFirstOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("preexisting\n"), 0644))

	tf := tailer.New(afero.NewOsFs(), path, true)
	lines, err := tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Empty(t, lines, "start_at_end should skip content written before the first open")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("appended\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lines, err = tf.ReadAvailable(0)
	require.NoError(t, err)
	require.Equal(t, []string{"appended"}, lines)
}


