package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/paybridge/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "paybridge.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return newTestSQLiteStore(t)
	})
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", time.Second)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, pendingTx(t, "tx-mem")))
	got, err := store.Get(ctx, "tx-mem")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, got.State)
}

func TestSQLiteStore_RejectsClaimWithoutSuccess(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, pendingTx(t, "tx-001")))

	_, err := store.Update(ctx, "tx-001", func(tx *domain.Transaction) error {
		tx.State = domain.StateFailed
		tx.ClaimUnlocked = true
		return nil
	})
	require.Error(t, err)

	got, err := store.Get(ctx, "tx-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, got.State)
	assert.False(t, got.ClaimUnlocked)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("", time.Second)
	assert.Error(t, err)
}
