package infrastructure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

func newTestManifest(t *testing.T) *SQLiteManifestStore {
	t.Helper()
	store, err := NewSQLiteManifestStore(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteManifestStore_CreateAndFindRun(t *testing.T) {
	store := newTestManifest(t)

	run := &domain.BatchRun{
		ID:        "run-1",
		URL:       "https://share.icloud.com/photos/abc",
		Platform:  domain.PlatformICloud,
		ItemCount: 5,
	}
	require.NoError(t, store.CreateRun(run))

	found, err := store.FindLatestRunByURL("https://share.icloud.com/photos/abc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "run-1", found.ID)
	assert.Equal(t, 5, found.ItemCount)
	assert.Equal(t, domain.PlatformICloud, found.Platform)
}

func TestSQLiteManifestStore_FindLatestRunByURL_NoMatch(t *testing.T) {
	store := newTestManifest(t)

	found, err := store.FindLatestRunByURL("https://share.icloud.com/photos/nothing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteManifestStore_SaveItemUpserts(t *testing.T) {
	store := newTestManifest(t)
	require.NoError(t, store.CreateRun(&domain.BatchRun{
		ID: "run-1", URL: "https://example-album", Platform: domain.PlatformGPhotos, ItemCount: 2,
	}))

	require.NoError(t, store.SaveItem(&domain.BatchItem{
		RunID: "run-1", ItemIndex: 0, Status: domain.ItemFailed, RecordJSON: `{"ok":false}`,
	}))
	// Same (run, index) transitions failed -> completed on retry.
	require.NoError(t, store.SaveItem(&domain.BatchItem{
		RunID: "run-1", ItemIndex: 0, Status: domain.ItemCompleted, RecordJSON: `{"ok":true}`,
	}))
	require.NoError(t, store.SaveItem(&domain.BatchItem{
		RunID: "run-1", ItemIndex: 1, Status: domain.ItemFailed, RecordJSON: `{"ok":false}`,
	}))

	completed, err := store.CompletedItems("run-1")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, `{"ok":true}`, completed[0].RecordJSON)
}

func TestSQLiteManifestStore_CompletedItemsScopedToRun(t *testing.T) {
	store := newTestManifest(t)
	require.NoError(t, store.CreateRun(&domain.BatchRun{
		ID: "run-1", URL: "https://a", Platform: domain.PlatformGDrive, ItemCount: 1,
	}))
	require.NoError(t, store.CreateRun(&domain.BatchRun{
		ID: "run-2", URL: "https://b", Platform: domain.PlatformGDrive, ItemCount: 1,
	}))

	require.NoError(t, store.SaveItem(&domain.BatchItem{
		RunID: "run-1", ItemIndex: 0, Status: domain.ItemCompleted, RecordJSON: `{}`,
	}))

	completed, err := store.CompletedItems("run-2")
	require.NoError(t, err)
	assert.Empty(t, completed)
}
