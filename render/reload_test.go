package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeShaderPair(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	vert := filepath.Join(dir, "tri.vert.spv")
	frag := filepath.Join(dir, "tri.frag.spv")
	require.NoError(t, os.WriteFile(vert, []byte("vert-v1"), 0o644))
	require.NoError(t, os.WriteFile(frag, []byte("frag-v1"), 0o644))
	return vert, frag
}

func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	when := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, when, when))
}

func TestFileTriggerQuietAtStartup(t *testing.T) {
	vert, frag := writeShaderPair(t)
	trigger := NewFileTrigger(vert, frag)

	_, _, ok := trigger.Poll()
	require.False(t, ok)
}

func TestFileTriggerFiresOnChange(t *testing.T) {
	vert, frag := writeShaderPair(t)
	trigger := NewFileTrigger(vert, frag)

	require.NoError(t, os.WriteFile(vert, []byte("vert-v2"), 0o644))
	touch(t, vert, time.Second)

	gotVert, gotFrag, ok := trigger.Poll()
	require.True(t, ok)
	require.Equal(t, []byte("vert-v2"), gotVert)
	require.Equal(t, []byte("frag-v1"), gotFrag)

	// Consumed: no further change, no further fire.
	_, _, ok = trigger.Poll()
	require.False(t, ok)
}

func TestFileTriggerQuietWhileFileMissing(t *testing.T) {
	vert, frag := writeShaderPair(t)
	trigger := NewFileTrigger(vert, frag)

	require.NoError(t, os.Remove(frag))
	touch(t, vert, time.Second)

	_, _, ok := trigger.Poll()
	require.False(t, ok)
}

func TestFileTriggerPicksUpLateFiles(t *testing.T) {
	dir := t.TempDir()
	vert := filepath.Join(dir, "tri.vert.spv")
	frag := filepath.Join(dir, "tri.frag.spv")
	trigger := NewFileTrigger(vert, frag)

	require.NoError(t, os.WriteFile(vert, []byte("vert-v1"), 0o644))
	require.NoError(t, os.WriteFile(frag, []byte("frag-v1"), 0o644))

	gotVert, gotFrag, ok := trigger.Poll()
	require.True(t, ok)
	require.Equal(t, []byte("vert-v1"), gotVert)
	require.Equal(t, []byte("frag-v1"), gotFrag)
}
