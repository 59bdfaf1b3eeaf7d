package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	saved, err := store.Save(Record{
		App:        "chat-app",
		Region:     "us-west-2",
		ServiceURL: "https://chat-app-lb-abc.us-west-2.elb.example.com",
		ImageURI:   "repo@sha256:deadbeef",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "chat-app", records[0].App)
	assert.Equal(t, saved.ServiceURL, records[0].ServiceURL)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	older := time.Now().UTC().Add(-time.Hour)
	_, err = store.Save(Record{App: "chat-app", ID: "old", CreatedAt: older})
	require.NoError(t, err)
	_, err = store.Save(Record{App: "chat-app", ID: "new"})
	require.NoError(t, err)

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "old", records[1].ID)
}

func TestStore_ListApp(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(Record{App: "chat-app"})
	require.NoError(t, err)
	_, err = store.Save(Record{App: "other-app"})
	require.NoError(t, err)

	records, err := store.ListApp("chat-app")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "chat-app", records[0].App)
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	saved, err := store.Save(Record{App: "chat-app"})
	require.NoError(t, err)

	require.NoError(t, store.Delete("chat-app", saved.ID))
	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	// Idempotent
	require.NoError(t, store.Delete("chat-app", saved.ID))
}

func TestStore_SaveRequiresApp(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(Record{})
	require.Error(t, err)
}
