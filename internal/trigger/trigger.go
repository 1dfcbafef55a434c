// Package trigger announces transactions whose claim has been unlocked to the
// downstream asset-transfer flow.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/domain"
)

// EventClaimUnlocked is the event type published for unlocked claims.
const EventClaimUnlocked = "claim.unlocked"

// Trigger delivers claim-unlock announcements.
type Trigger interface {
	ClaimUnlocked(ctx context.Context, tx domain.Transaction) error
	Close() error
}

// ClaimEvent is the payload delivered to the transfer flow.
type ClaimEvent struct {
	EventID       string          `json:"eventId"`
	Type          string          `json:"type"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	UnlockedAt    time.Time       `json:"unlockedAt"`
}

// NewClaimEvent builds the announcement for tx.
func NewClaimEvent(tx domain.Transaction, eventID string, unlockedAt time.Time) ClaimEvent {
	return ClaimEvent{
		EventID:       eventID,
		Type:          EventClaimUnlocked,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		UnlockedAt:    unlockedAt.UTC(),
	}
}

// Open returns an AMQP trigger when a broker URL is configured and a logging
// trigger otherwise.
func Open(cfg config.BrokerConfig, logger *slog.Logger) (Trigger, error) {
	if cfg.URL == "" {
		logger.Warn("no broker configured; claim unlocks will only be logged")
		return NewLogTrigger(logger), nil
	}
	t, err := NewAMQPTrigger(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing claim unlocks", "exchange", cfg.Exchange, "routingKey", cfg.RoutingKey)
	return t, nil
}

// LogTrigger records claim unlocks in the log only.
type LogTrigger struct {
	logger *slog.Logger
}

// NewLogTrigger constructs a LogTrigger.
func NewLogTrigger(logger *slog.Logger) *LogTrigger {
	return &LogTrigger{logger: logger.With("component", "trigger")}
}

func (t *LogTrigger) ClaimUnlocked(_ context.Context, tx domain.Transaction) error {
	t.logger.Info("claim unlocked",
		"transactionId", tx.ID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
	)
	return nil
}

func (t *LogTrigger) Close() error { return nil }
