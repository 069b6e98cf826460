package session

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := Open(path)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())

	id := Identity{UserID: "u1", Role: "admin", DisplayName: "Root", QuotaUsed: 3, QuotaLimit: 100}
	require.NoError(t, s.Save("tok-abc", id))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-abc", s.Credential())
	require.NoError(t, s.Close())

	// Reopen: the session survives a process restart.
	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	assert.True(t, s2.IsAuthenticated())
	assert.Equal(t, "tok-abc", s2.Credential())
	got := s2.Current()
	require.NotNil(t, got)
	assert.Equal(t, id, *got)
}

func TestClearIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Save("tok", Identity{UserID: "u1", Role: "viewer"}))

	assert.True(t, s.Clear(), "first clear tears down the session")
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.Current())

	assert.False(t, s.Clear(), "second clear is a no-op")
	assert.False(t, s.Clear())
}

func TestLoadCorruptIdentityClearsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("tok", Identity{UserID: "u1", Role: "viewer"}))
	require.NoError(t, s.Close())

	// Corrupt the identity blob on disk.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE session SET value = 'not json{' WHERE key = 'identity'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Load is fail-safe: empty session, storage wiped, no error.
	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
	assert.False(t, s2.IsAuthenticated())
	assert.Empty(t, s2.Credential())

	// And the wipe is durable.
	require.NoError(t, s2.Close())
	s3, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s3.Close() }()
	assert.False(t, s3.IsAuthenticated())
}

func TestLoadPartialSessionClearsBothKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("tok", Identity{UserID: "u1", Role: "viewer"}))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM session WHERE key = 'identity'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
	assert.False(t, s2.IsAuthenticated())
	assert.Empty(t, s2.Credential(), "credential without identity is wiped, not trusted")
}

func TestIsPrivileged(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.False(t, s.IsPrivileged("admin"))

	require.NoError(t, s.Save("tok", Identity{UserID: "u1", Role: "admin"}))
	assert.True(t, s.IsPrivileged("admin"))
	assert.False(t, s.IsPrivileged("owner"))

	s.Clear()
	assert.False(t, s.IsPrivileged("admin"))
}

func TestSaveReplacesIdentity(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Save("tok", Identity{UserID: "u1", Role: "viewer", QuotaUsed: 1}))
	require.NoError(t, s.Save("tok", Identity{UserID: "u1", Role: "viewer", QuotaUsed: 2}))

	got := s.Current()
	require.NotNil(t, got)
	assert.Equal(t, 2, got.QuotaUsed)
}
