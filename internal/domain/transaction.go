package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// State is the reconciliation state of a payment attempt.
type State string

const (
	StatePending   State = "PENDING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition may leave the state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// Transaction models a single payment attempt tracked by the bridge.
//
// ID, Amount, Currency and CreatedAt are fixed at initiation. The remaining
// fields are only mutated by the reconciliation engine.
type Transaction struct {
	ID                 string
	State              State
	Amount             decimal.Decimal
	Currency           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastNotificationAt *time.Time
	NotificationCount  int64
	LastReportedStatus ReportedStatus
	ClaimUnlocked      bool
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NewTransaction builds a PENDING transaction after validating initiation input.
func NewTransaction(id string, amount decimal.Decimal, currency string, createdAt time.Time) (Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Transaction{}, fmt.Errorf("%w: transaction id is required", ErrInvalidTransaction)
	}
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyPattern.MatchString(currency) {
		return Transaction{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidTransaction)
	}
	createdAt = createdAt.UTC()
	return Transaction{
		ID:        id,
		State:     StatePending,
		Amount:    amount,
		Currency:  currency,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored values.
func (t Transaction) Clone() Transaction {
	out := t
	if t.LastNotificationAt != nil {
		ts := *t.LastNotificationAt
		out.LastNotificationAt = &ts
	}
	return out
}
