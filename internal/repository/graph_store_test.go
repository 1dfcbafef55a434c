package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/graph"
)

func storedNode(state domain.State, count int64, unlocked bool) map[string]any {
	return map[string]any{
		"transactionId":      "tx-001",
		"state":              string(state),
		"amount":             "150000.50",
		"currency":           "IDR",
		"createdAt":          "2025-02-01T09:30:00Z",
		"updatedAt":          "2025-02-01T09:30:00Z",
		"lastNotificationAt": "",
		"notificationCount":  count,
		"lastReportedStatus": "",
		"claimUnlocked":      unlocked,
	}
}

func TestGraphStore_EnsureSchema(t *testing.T) {
	mem := graph.NewMemoryClient()
	require.NoError(t, NewGraphStore(mem).EnsureSchema(context.Background()))

	calls := mem.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, constraintCypher, calls[0].Query)
}

func TestGraphStore_Create(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := NewGraphStore(mem)
	mem.PushWriteResult(graph.Result{Records: []graph.Record{{"transactionId": "tx-001"}}})

	require.NoError(t, store.Create(context.Background(), pendingTx(t, "tx-001")))

	calls := mem.WriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, createTransactionCypher, calls[0].Query)
	assert.Equal(t, "tx-001", calls[0].Params["transactionId"])

	props, ok := calls[0].Params["props"].(map[string]any)
	require.True(t, ok, "expected props map, got %T", calls[0].Params["props"])
	assert.Equal(t, "150000.5", props["amount"])
	assert.Equal(t, "IDR", props["currency"])
	assert.Equal(t, "PENDING", props["state"])
	assert.Equal(t, false, props["claimUnlocked"])
}

func TestGraphStore_CreateExisting(t *testing.T) {
	mem := graph.NewMemoryClient()
	err := NewGraphStore(mem).Create(context.Background(), pendingTx(t, "tx-001"))
	assert.ErrorIs(t, err, domain.ErrTransactionExists)
}

func TestGraphStore_CreateRacingDuplicate(t *testing.T) {
	constraintErr := fmt.Errorf("neo4j rejected write: %w", graph.ErrConstraintViolation)
	mem := graph.NewMemoryClient().WithError(constraintErr)

	err := NewGraphStore(mem).Create(context.Background(), pendingTx(t, "tx-001"))
	assert.ErrorIs(t, err, domain.ErrTransactionExists)
}

func TestGraphStore_CreateFailure(t *testing.T) {
	boom := errors.New("bolt connection reset")
	mem := graph.NewMemoryClient().WithError(boom)

	err := NewGraphStore(mem).Create(context.Background(), pendingTx(t, "tx-001"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrTransactionExists)
}

func TestGraphStore_Get(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := NewGraphStore(mem)
	mem.PushReadResult(graph.Result{Records: []graph.Record{{"tx": storedNode(domain.StateSucceeded, 2, true)}}})

	got, err := store.Get(context.Background(), "tx-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, got.State)
	assert.Equal(t, int64(2), got.NotificationCount)
	assert.True(t, got.ClaimUnlocked)
	assert.Equal(t, "150000.5", got.Amount.String())
	assert.Nil(t, got.LastNotificationAt)

	_, err = store.Get(context.Background(), "tx-404")
	assert.ErrorIs(t, err, domain.ErrUnknownTransaction)
}

func TestGraphStore_GetInvalidState(t *testing.T) {
	mem := graph.NewMemoryClient()
	node := storedNode("SETTLING", 0, false)
	mem.PushReadResult(graph.Result{Records: []graph.Record{{"tx": node}}})

	_, err := NewGraphStore(mem).Get(context.Background(), "tx-001")
	assert.Error(t, err)
}

func TestGraphStore_UpdateLocksThenWrites(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := NewGraphStore(mem)
	mem.PushWriteResult(graph.Result{Records: []graph.Record{{"tx": storedNode(domain.StatePending, 0, false)}}})

	updated, err := store.Update(context.Background(), "tx-001", func(tx *domain.Transaction) error {
		tx.State = domain.StateSucceeded
		tx.ClaimUnlocked = true
		tx.NotificationCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, updated.State)

	calls := mem.WriteCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, lockTransactionCypher, calls[0].Query)
	assert.NotEmpty(t, calls[0].Params["lockToken"])
	assert.Equal(t, updateTransactionCypher, calls[1].Query)

	props := calls[1].Params["props"].(map[string]any)
	assert.Equal(t, "SUCCEEDED", props["state"])
	assert.Equal(t, true, props["claimUnlocked"])
	assert.Equal(t, int64(1), props["notificationCount"])
	assert.NotContains(t, props, "amount")

	committed, rolledBack := mem.TxOutcomes()
	assert.Equal(t, 1, committed)
	assert.Zero(t, rolledBack)
}

func TestGraphStore_UpdateAbortRollsBack(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := NewGraphStore(mem)
	mem.PushWriteResult(graph.Result{Records: []graph.Record{{"tx": storedNode(domain.StatePending, 0, false)}}})

	boom := errors.New("boom")
	_, err := store.Update(context.Background(), "tx-001", func(tx *domain.Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mem.WriteCalls(), 1)

	committed, rolledBack := mem.TxOutcomes()
	assert.Zero(t, committed)
	assert.Equal(t, 1, rolledBack)
}

func TestGraphStore_UpdateUnknown(t *testing.T) {
	mem := graph.NewMemoryClient()
	_, err := NewGraphStore(mem).Update(context.Background(), "tx-404", func(tx *domain.Transaction) error {
		t.Fatal("update func must not run for unknown transactions")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrUnknownTransaction)
}

func TestGraphStore_Ping(t *testing.T) {
	mem := graph.NewMemoryClient().WithConnectivityError(errors.New("down"))
	assert.Error(t, NewGraphStore(mem).Ping(context.Background()))
}
