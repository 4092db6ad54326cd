package atomicfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

func TestWriteCreatesNewFileAndReversalRemovesIt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.conf")

	rev, err := Write(NewRequest(path, []byte("server {}\n"), 0o644))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "server {}\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	require.NoError(t, rev.Undo(context.Background()))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "the file did not exist before, so the reversal deletes it")

	// Undoing again must not fail; the effect is already absent.
	require.NoError(t, rev.Undo(context.Background()))
}

func TestWriteOverwriteAndRestoreExact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "php.ini")
	require.NoError(t, os.WriteFile(path, []byte("memory_limit = 128M\n"), 0o600))

	rev, err := Write(NewRequest(path, []byte("memory_limit = 256M\n"), 0o644))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "memory_limit = 256M\n", string(got))

	require.NoError(t, rev.Undo(context.Background()))

	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "memory_limit = 128M\n", string(got), "previous content restored byte for byte")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "previous permissions restored")
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wp-config.php")

	_, err := Write(NewRequest(path, []byte("<?php\n"), 0o640))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "wp-config.php", entries[0].Name())
}

func TestWriteRefusesNonRegularTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "conf.d")
	require.NoError(t, os.Mkdir(target, 0o755))

	_, err := Write(NewRequest(target, []byte("x"), 0o644))
	require.Error(t, err)

	var awErr *swerrors.AtomicWriteError
	require.ErrorAs(t, err, &awErr)
	require.Equal(t, swerrors.PhasePrepare, awErr.Phase, "target was never touched")

	// The directory is still there, untouched.
	info, statErr := os.Stat(target)
	require.NoError(t, statErr)
	require.True(t, info.IsDir())
}

func TestWritePrepareFailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "site.conf")

	_, err := Write(NewRequest(path, []byte("x"), 0o644))
	require.Error(t, err)

	var awErr *swerrors.AtomicWriteError
	require.ErrorAs(t, err, &awErr)
	require.Equal(t, swerrors.PhasePrepare, awErr.Phase)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestWriteRestoresSymlinkFreePath(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.conf")
	link := filepath.Join(dir, "link.conf")
	require.NoError(t, os.WriteFile(real, []byte("real"), 0o644))
	require.NoError(t, os.Symlink(real, link))

	_, err := Write(NewRequest(link, []byte("x"), 0o644))
	require.Error(t, err, "symlinked targets are rejected rather than silently replaced")
}
