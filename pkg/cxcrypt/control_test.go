package cxcrypt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindControlBlock(t *testing.T) {
	cb := SeededControlBlock(3)

	got, err := FindControlBlock(cb.Module())
	require.NoError(t, err)
	assert.Equal(t, cb, got)

	// 4バイト境界にない識別子は無視する
	shifted := append([]byte{0}, cb.Module()...)
	_, err = FindControlBlock(shifted)
	assert.ErrorIs(t, err, ErrControlBlockNotFound)

	truncated := cb.Module()[:100]
	_, err = FindControlBlock(truncated)
	assert.ErrorIs(t, err, ErrControlBlockNotFound)
}

func TestFindPlugins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "plugin"), 0755))
	for _, name := range []string{"b.tpm", "a.tpm", "plugin/c.tpm", "other.dll"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	got := FindPlugins(filepath.Join(dir, "data.xp3"))
	assert.Equal(t, []string{
		filepath.Join(dir, "a.tpm"),
		filepath.Join(dir, "b.tpm"),
		filepath.Join(dir, "plugin", "c.tpm"),
	}, got)
	assert.Nil(t, FindPlugins(""))
}

func TestLoadControlBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.tpm")
	require.NoError(t, os.WriteFile(path, SeededControlBlock(5).Module(), 0644))
	cb, err := LoadControlBlock(path)
	require.NoError(t, err)
	assert.Equal(t, SeededControlBlock(5), cb)

	_, err = LoadControlBlock(path + ".missing")
	assert.Error(t, err)
}
