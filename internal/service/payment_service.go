package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vanshika/paybridge/internal/domain"
)

// TransactionStore is the storage contract required by the payment service.
type TransactionStore interface {
	Create(ctx context.Context, tx domain.Transaction) error
	Get(ctx context.Context, id string) (domain.Transaction, error)
}

// InitiateInput is the inbound payload for registering a payment attempt.
type InitiateInput struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
}

// PaymentService registers payment attempts and answers status queries.
type PaymentService struct {
	store  TransactionStore
	logger *slog.Logger
	nowFn  func() time.Time
	idFn   func() string
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(store TransactionStore, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		store:  store,
		logger: logger.With("component", "payments"),
		nowFn:  time.Now,
		idFn:   uuid.NewString,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *PaymentService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Initiate stores a new PENDING transaction. A transaction id is generated
// when the input carries none.
func (s *PaymentService) Initiate(ctx context.Context, in InitiateInput) (domain.Transaction, error) {
	id := strings.TrimSpace(in.TransactionID)
	if id == "" {
		id = s.idFn()
	}

	tx, err := domain.NewTransaction(id, in.Amount, in.Currency, s.nowFn())
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := s.store.Create(ctx, tx); err != nil {
		if !errors.Is(err, domain.ErrTransactionExists) {
			s.logger.Error("failed to create transaction", "error", err, "transactionId", id)
		}
		return domain.Transaction{}, err
	}

	s.logger.Info("transaction initiated",
		"transactionId", tx.ID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
	)
	return tx, nil
}

// Status returns the current record for id. It never mutates state and
// reports domain.ErrUnknownTransaction for ids that were never initiated.
func (s *PaymentService) Status(ctx context.Context, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, domain.ErrUnknownTransaction
	}
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTransaction) {
			return domain.Transaction{}, err
		}
		return domain.Transaction{}, fmt.Errorf("status %s: %w", id, err)
	}
	return tx, nil
}
