package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-scraper/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir(), "urls.txt", false, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewBadgerStore(t *testing.T) {
	t.Run("fresh start has zero count", func(t *testing.T) {
		store := newTestStore(t)
		count, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("directory named after run", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewBadgerStore(dir, "dentists in austin", false, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Name(), seedDBDir)
	})

	t.Run("resume preserves data", func(t *testing.T) {
		dir := t.TempDir()
		store1, err := NewBadgerStore(dir, "urls.txt", false, testLogger())
		require.NoError(t, err)
		_, err = store1.MarkSeedPending("https://acme.com")
		require.NoError(t, err)
		require.NoError(t, store1.Close())

		store2, err := NewBadgerStore(dir, "urls.txt", true, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store2.Close() })

		count, err := store2.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("fresh start wipes data", func(t *testing.T) {
		dir := t.TempDir()
		store1, err := NewBadgerStore(dir, "urls.txt", false, testLogger())
		require.NoError(t, err)
		_, err = store1.MarkSeedPending("https://acme.com")
		require.NoError(t, err)
		require.NoError(t, store1.Close())

		store2, err := NewBadgerStore(dir, "urls.txt", false, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store2.Close() })

		status, _, err := store2.CheckSeedStatus("https://acme.com")
		require.NoError(t, err)
		assert.Equal(t, models.SeedStatusNotFound, status)
	})

	t.Run("state dir is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		_, err := NewBadgerStore(file, "urls.txt", true, testLogger())
		assert.Error(t, err)
	})
}

func TestMarkSeedPending(t *testing.T) {
	store := newTestStore(t)

	added, err := store.MarkSeedPending("https://acme.com")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.MarkSeedPending("https://acme.com")
	require.NoError(t, err)
	assert.False(t, added)

	status, entry, err := store.CheckSeedStatus("https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, models.SeedStatusPending, status)
	require.NotNil(t, entry)
	assert.False(t, entry.LastAttempt.IsZero())

	count, _ := store.Count()
	assert.Equal(t, 1, count)
}

func TestMarkSeedPending_KeepsTerminalEntry(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpdateSeedStatus("https://acme.com", &models.SeedDBEntry{
		Status: models.SeedStatusSuccess, LastAttempt: time.Now(),
	}))

	added, err := store.MarkSeedPending("https://acme.com")
	require.NoError(t, err)
	assert.False(t, added)

	status, _, err := store.CheckSeedStatus("https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, models.SeedStatusSuccess, status)
}

func TestCheckSeedStatus(t *testing.T) {
	store := newTestStore(t)

	t.Run("not found", func(t *testing.T) {
		status, entry, err := store.CheckSeedStatus("https://missing.example")
		require.NoError(t, err)
		assert.Equal(t, models.SeedStatusNotFound, status)
		assert.Nil(t, entry)
	})

	t.Run("failure entry", func(t *testing.T) {
		require.NoError(t, store.UpdateSeedStatus("https://gone.example", &models.SeedDBEntry{
			Status:      models.SeedStatusFailure,
			Reason:      "404",
			LastAttempt: time.Now(),
		}))

		status, entry, err := store.CheckSeedStatus("https://gone.example")
		require.NoError(t, err)
		assert.Equal(t, models.SeedStatusFailure, status)
		require.NotNil(t, entry)
		assert.Equal(t, "404", entry.Reason)
	})

	t.Run("corrupted JSON falls back to pending", func(t *testing.T) {
		key := []byte(seedKeyPrefix + "https://corrupt.example")
		require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
			return txn.SetEntry(badger.NewEntry(key, []byte("{invalid json")))
		}))

		status, entry, err := store.CheckSeedStatus("https://corrupt.example")
		require.NoError(t, err)
		assert.Equal(t, models.SeedStatusPending, status)
		assert.Nil(t, entry)
	})
}

func TestUpdateSeedStatus(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpdateSeedStatus("https://acme.com", &models.SeedDBEntry{Status: models.SeedStatusPending}))
	require.NoError(t, store.UpdateSeedStatus("https://acme.com", &models.SeedDBEntry{Status: models.SeedStatusSuccess}))

	status, _, err := store.CheckSeedStatus("https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, models.SeedStatusSuccess, status)

	count, _ := store.Count()
	assert.Equal(t, 1, count)

	assert.Error(t, store.UpdateSeedStatus("https://acme.com", nil))
}

func TestIncompleteSeeds(t *testing.T) {
	store := newTestStore(t)

	_, err := store.MarkSeedPending("https://pending.example")
	require.NoError(t, err)
	require.NoError(t, store.UpdateSeedStatus("https://done.example", &models.SeedDBEntry{Status: models.SeedStatusSuccess}))
	require.NoError(t, store.UpdateSeedStatus("https://failed.example", &models.SeedDBEntry{Status: models.SeedStatusFailure, Reason: "500"}))

	seeds, err := store.IncompleteSeeds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pending.example"}, seeds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.IncompleteSeeds(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentUpdates(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.MarkSeedPending("https://acme.com")
			assert.NoError(t, err)
			assert.NoError(t, store.UpdateSeedStatus("https://acme.com", &models.SeedDBEntry{Status: models.SeedStatusSuccess}))
		}()
	}
	wg.Wait()

	count, _ := store.Count()
	assert.Equal(t, 1, count)
}

func TestRunGC_StopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after cancel")
	}
}

func TestClose_Idempotent(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), "urls.txt", false, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
