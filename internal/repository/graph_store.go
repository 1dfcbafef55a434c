package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/graph"
)

// GraphStore persists transactions as PaymentTransaction nodes. Update takes
// the node's write lock with a throwaway property write before reading it, so
// the read-modify-write is serialized per transaction id.
type GraphStore struct {
	client graph.Client
}

// NewGraphStore instantiates a GraphStore backed by the supplied graph client.
func NewGraphStore(client graph.Client) *GraphStore {
	return &GraphStore{client: client}
}

// EnsureSchema creates the uniqueness constraint on transactionId.
func (s *GraphStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.ExecuteWrite(ctx, constraintCypher, nil); err != nil {
		return fmt.Errorf("ensure transaction constraint: %w", err)
	}
	return nil
}

func (s *GraphStore) Create(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return errors.New("transaction id is required")
	}

	params := map[string]any{
		"transactionId": tx.ID,
		"props":         transactionProperties(tx),
	}
	res, err := s.client.ExecuteWrite(ctx, createTransactionCypher, params)
	if err != nil {
		// a concurrent create of the same id passes the OPTIONAL MATCH and is
		// then rejected by the uniqueness constraint
		if errors.Is(err, graph.ErrConstraintViolation) {
			return fmt.Errorf("create transaction %s: %w", tx.ID, domain.ErrTransactionExists)
		}
		return fmt.Errorf("create transaction %s: %w", tx.ID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("create transaction %s: %w", tx.ID, domain.ErrTransactionExists)
	}
	return nil
}

func (s *GraphStore) Get(ctx context.Context, id string) (domain.Transaction, error) {
	res, err := s.client.ExecuteRead(ctx, getTransactionCypher, map[string]any{"transactionId": id})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("load transaction %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return domain.Transaction{}, domain.ErrUnknownTransaction
	}
	return decodeTransaction(res.Records[0]["tx"])
}

func (s *GraphStore) Update(ctx context.Context, id string, fn UpdateFunc) (domain.Transaction, error) {
	var updated domain.Transaction
	err := s.client.ExecuteWriteTx(ctx, func(ctx context.Context, tx graph.Tx) error {
		res, err := tx.Run(ctx, lockTransactionCypher, map[string]any{
			"transactionId": id,
			"lockToken":     uuid.NewString(),
		})
		if err != nil {
			return fmt.Errorf("lock transaction %s: %w", id, err)
		}
		if len(res.Records) == 0 {
			return domain.ErrUnknownTransaction
		}

		current, err := decodeTransaction(res.Records[0]["tx"])
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := fn(&next); err != nil {
			return err
		}
		preserveImmutable(&next, current)

		if _, err := tx.Run(ctx, updateTransactionCypher, map[string]any{
			"transactionId": id,
			"props":         mutableProperties(next),
		}); err != nil {
			return fmt.Errorf("update transaction %s: %w", id, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return updated, nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

func (s *GraphStore) Close() error {
	return s.client.Close(context.Background())
}

func transactionProperties(tx domain.Transaction) map[string]any {
	props := mutableProperties(tx)
	props["amount"] = tx.Amount.String()
	props["currency"] = tx.Currency
	props["createdAt"] = formatTime(tx.CreatedAt)
	return props
}

func mutableProperties(tx domain.Transaction) map[string]any {
	return map[string]any{
		"state":              string(tx.State),
		"updatedAt":          formatTime(tx.UpdatedAt),
		"lastNotificationAt": formatTimePtr(tx.LastNotificationAt),
		"notificationCount":  tx.NotificationCount,
		"lastReportedStatus": string(tx.LastReportedStatus),
		"claimUnlocked":      tx.ClaimUnlocked,
	}
}

func decodeTransaction(val any) (domain.Transaction, error) {
	props, ok := val.(map[string]any)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("decode transaction: unexpected %T", val)
	}

	amount, err := decimal.NewFromString(toString(props["amount"]))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decode transaction amount: %w", err)
	}

	tx := domain.Transaction{
		ID:                 toString(props["transactionId"]),
		State:              domain.State(toString(props["state"])),
		Amount:             amount,
		Currency:           toString(props["currency"]),
		LastNotificationAt: toTimePtr(props["lastNotificationAt"]),
		NotificationCount:  toInt64(props["notificationCount"]),
		LastReportedStatus: domain.ReportedStatus(toString(props["lastReportedStatus"])),
		ClaimUnlocked:      toBool(props["claimUnlocked"]),
	}
	if ts := toTimePtr(props["createdAt"]); ts != nil {
		tx.CreatedAt = *ts
	}
	if ts := toTimePtr(props["updatedAt"]); ts != nil {
		tx.UpdatedAt = *ts
	}
	if !tx.State.Valid() {
		return domain.Transaction{}, fmt.Errorf("decode transaction %s: invalid state %q", tx.ID, tx.State)
	}
	return tx, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return formatTime(*t)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func toBool(val any) bool {
	b, _ := val.(bool)
	return b
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}

const constraintCypher = `
CREATE CONSTRAINT payment_transaction_id IF NOT EXISTS
FOR (t:PaymentTransaction) REQUIRE t.transactionId IS UNIQUE
`

const createTransactionCypher = `
OPTIONAL MATCH (existing:PaymentTransaction {transactionId: $transactionId})
WITH existing
WHERE existing IS NULL
CREATE (t:PaymentTransaction {transactionId: $transactionId})
SET t += $props
RETURN t.transactionId AS transactionId
`

const getTransactionCypher = `
MATCH (t:PaymentTransaction {transactionId: $transactionId})
RETURN t {.*} AS tx
`

const lockTransactionCypher = `
MATCH (t:PaymentTransaction {transactionId: $transactionId})
SET t.lockToken = $lockToken
RETURN t {.*} AS tx
`

const updateTransactionCypher = `
MATCH (t:PaymentTransaction {transactionId: $transactionId})
SET t += $props
REMOVE t.lockToken
RETURN t.transactionId AS transactionId
`
