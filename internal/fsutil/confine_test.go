// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	got, err := ConfineRelPath(root, "sub/lote.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "sub", "lote.zip"), got)

	got, err = ConfineRelPath(root, "a/../b.xml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "b.xml"), got)

	// ".." inside a file name is not traversal.
	_, err = ConfineRelPath(root, "nota..xml")
	assert.NoError(t, err)
}

func TestConfineRelPath_Rejects(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"../x.zip", "a/../../x.zip", "/etc/passwd", `a\b.zip`} {
		_, err := ConfineRelPath(root, rel)
		assert.Error(t, err, rel)
	}
	_, err := ConfineRelPath(root, "../x.zip")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestConfineRelPath_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := ConfineRelPath(root, "link/x.zip")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestConfineRelPath_MissingRoot(t *testing.T) {
	_, err := ConfineRelPath(filepath.Join(t.TempDir(), "absent"), "x.zip")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.xml")
	require.NoError(t, os.WriteFile(f, []byte("<a/>"), 0o600))

	assert.NoError(t, IsRegularFile(f))
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "missing")))
}
