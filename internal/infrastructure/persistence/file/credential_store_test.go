package file

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

func TestLoadMissingFile(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "missing.json"))
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domerrors.ErrNoSession)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewCredentialStore(path)

	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	session := domain.Session{
		Token:     "sesid=abc; sesid.sig=def",
		ExpiresAt: expiry,
		Organizations: []domain.OrgRef{
			{ID: "T3JnOjEyMw==", Slug: "blokka", DisplayName: "Blokka Borettslag"},
			{Slug: "hagen", DisplayName: "Nye Hagen"},
		},
		ActiveOrg: domain.OrgRef{ID: "T3JnOjEyMw==", Slug: "blokka", DisplayName: "Blokka Borettslag"},
	}
	require.NoError(t, store.Save(context.Background(), session))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Token, loaded.Token)
	assert.True(t, loaded.ExpiresAt.Equal(expiry))
	assert.Equal(t, session.Organizations, loaded.Organizations)
	assert.Equal(t, session.ActiveOrg, loaded.ActiveOrg)
}

func TestSaveUnknownExpiryOmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewCredentialStore(path)

	require.NoError(t, store.Save(context.Background(), domain.Session{Token: "sesid=abc"}))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded.HasKnownExpiry())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "expires_at")
}

func TestSaveFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewCredentialStore(path)
	require.NoError(t, store.Save(context.Background(), domain.Session{Token: "sesid=secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewCredentialStore(path)

	require.NoError(t, store.Save(context.Background(), domain.Session{Token: "sesid=first"}))
	require.NoError(t, store.Save(context.Background(), domain.Session{Token: "sesid=second"}))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sesid=second", loaded.Token)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewCredentialStore(path)
	require.NoError(t, store.Save(context.Background(), domain.Session{Token: "sesid=abc"}))

	require.NoError(t, store.Clear(context.Background()))
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domerrors.ErrNoSession)

	// Clearing an already-absent file is fine.
	require.NoError(t, store.Clear(context.Background()))
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewCredentialStore(path)
	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domerrors.ErrNoSession)
}
