package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estately", "session.json")
	store := NewFileSessionStore(path)

	s, err := store.Load()
	require.NoError(t, err)
	assert.True(t, s.Empty(), "missing file reads as empty session")

	want := &Session{Email: "a@b.c", AccessToken: "at", RefreshToken: "rt"}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clear is idempotent")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSessionStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFileSessionStore(path).Load()
	assert.Error(t, err)
}
