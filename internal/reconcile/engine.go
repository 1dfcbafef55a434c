// Package reconcile applies canonical payment notifications to stored
// transactions. A transaction leaves PENDING at most once; the first terminal
// verdict to acquire the transaction's lock wins and later verdicts are only
// counted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/repository"
)

//go:generate mockgen -destination=mocks/mock_reconcile.go -package=mocks -source=engine.go

// Store is the persistence contract required by the engine.
type Store interface {
	Update(ctx context.Context, id string, fn repository.UpdateFunc) (domain.Transaction, error)
}

// TransferTrigger unlocks the downstream claim flow.
type TransferTrigger interface {
	ClaimUnlocked(ctx context.Context, tx domain.Transaction) error
}

// Outcome describes the effect of one notification.
type Outcome struct {
	Transaction domain.Transaction
	// StateChanged is true only for the notification that moved the
	// transaction out of PENDING.
	StateChanged bool
	// Contradicted is true when a terminal transaction received the opposite verdict.
	Contradicted bool
	// TriggerErr holds a failed claim-unlock delivery. The state change is
	// committed regardless.
	TriggerErr error
}

// Engine is the reconciliation state machine.
type Engine struct {
	store   Store
	trigger TransferTrigger
	logger  *slog.Logger
}

// NewEngine constructs an Engine. A nil trigger disables claim announcements.
func NewEngine(store Store, trigger TransferTrigger, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		trigger: trigger,
		logger:  logger.With("component", "reconcile"),
	}
}

// Apply reconciles n against the stored transaction. The returned error wraps
// domain.ErrUnknownTransaction, domain.ErrMalformedNotification, or a store failure.
func (e *Engine) Apply(ctx context.Context, n domain.Notification) (Outcome, error) {
	if n.TransactionID == "" {
		return Outcome{}, &domain.MalformedError{Field: "transactionId", Reason: "is required"}
	}
	if !n.Status.Valid() {
		return Outcome{}, &domain.MalformedError{Field: "status", Reason: "is not recognised"}
	}

	log := e.logger.With(
		"transactionId", n.TransactionID,
		"notificationId", n.ID,
		"reportedStatus", string(n.Status),
		"transport", string(n.Source),
	)

	var changed, contradicted bool
	tx, err := e.store.Update(ctx, n.TransactionID, func(tx *domain.Transaction) error {
		changed, contradicted = Transition(tx, n)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTransaction) {
			log.Warn("notification for unknown transaction")
			return Outcome{}, fmt.Errorf("reconcile %s: %w", n.TransactionID, domain.ErrUnknownTransaction)
		}
		log.Error("reconciliation failed", "error", err)
		return Outcome{}, fmt.Errorf("reconcile %s: %w", n.TransactionID, err)
	}

	out := Outcome{
		Transaction:  tx,
		StateChanged: changed,
		Contradicted: contradicted,
	}

	switch {
	case changed:
		log.Info("transaction reconciled", "state", string(tx.State), "notificationCount", tx.NotificationCount)
	case contradicted:
		log.Warn("contradictory verdict ignored", "state", string(tx.State), "notificationCount", tx.NotificationCount)
	default:
		log.Debug("duplicate notification", "state", string(tx.State), "notificationCount", tx.NotificationCount)
	}

	if changed && tx.State == domain.StateSucceeded && e.trigger != nil {
		// The state is committed; a client disconnect must not abort the announcement.
		if err := e.trigger.ClaimUnlocked(context.WithoutCancel(ctx), tx); err != nil {
			log.Error("claim unlock delivery failed", "error", err)
			out.TriggerErr = err
		}
	}
	return out, nil
}

// Transition applies n to tx in place and reports whether the state moved
// out of PENDING, or whether n contradicts an existing terminal verdict.
// Every notification is counted; LastNotificationAt never moves backwards.
func Transition(tx *domain.Transaction, n domain.Notification) (changed, contradicted bool) {
	tx.NotificationCount++
	tx.LastReportedStatus = n.Status

	at := n.ReceivedAt.UTC()
	if tx.LastNotificationAt == nil || at.After(*tx.LastNotificationAt) {
		tx.LastNotificationAt = &at
	}
	if at.After(tx.UpdatedAt) {
		tx.UpdatedAt = at
	}

	target := n.Status.TargetState()
	if tx.State.Terminal() {
		return false, tx.State != target
	}

	tx.State = target
	tx.ClaimUnlocked = target == domain.StateSucceeded
	return true, false
}
