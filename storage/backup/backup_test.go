package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core/training"
	"github.com/purelifecenter/portal/storage/backup"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := backup.NewFileStore(dir)
	require.NoError(t, err)

	_, ok, err := store.Load("u1", "l1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Store(training.Progress{UserID: "u1", LessonID: "l1", WatchedSeconds: 90, PositionSeconds: 90, UpdatedAt: at}))
	require.NoError(t, store.Store(training.Progress{UserID: "u1", LessonID: "l1", WatchedSeconds: 30, PositionSeconds: 30, UpdatedAt: at.Add(time.Minute)}))
	require.NoError(t, store.Store(training.Progress{UserID: "u1", LessonID: "l2", WatchedSeconds: 5, UpdatedAt: at}))

	t.Run("entries survive a new store", func(t *testing.T) {
		reopened, err := backup.NewFileStore(dir)
		require.NoError(t, err)
		p, ok, err := reopened.Load("u1", "l1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 90, p.WatchedSeconds, "watched time never decreases")
		assert.Equal(t, 30, p.PositionSeconds, "newest position wins")
	})

	require.NoError(t, store.Clear("u1", "l1"))
	_, ok, err = store.Load("u1", "l1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear("u1", "l2"))
	_, err = os.Stat(filepath.Join(dir, "u1.json"))
	assert.True(t, os.IsNotExist(err), "empty backups are removed")

	require.NoError(t, store.Clear("u1", "missing"))
}

func TestFileStore_UserIDsStayInDir(t *testing.T) {
	dir := t.TempDir()
	store, err := backup.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Store(training.Progress{UserID: "../../escape", LessonID: "l1"}))
	_, err = os.Stat(filepath.Join(dir, "escape.json"))
	assert.NoError(t, err)
}
