package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/paybridge/internal/domain"
)

// Transaction is one payment attempt to initiate.
type Transaction struct {
	TransactionID string `yaml:"transactionId"`
	Amount        string `yaml:"amount"`
	Currency      string `yaml:"currency"`
}

// Callback is one simulated network notification.
type Callback struct {
	TransactionID string `yaml:"transactionId"`
	Status        string `yaml:"status"`
	Transport     string `yaml:"transport"`
}

// Dataset contains generated payment attempts and the callbacks the payment
// network would deliver for them, in delivery order.
type Dataset struct {
	Transactions []Transaction `yaml:"transactions"`
	Callbacks    []Callback    `yaml:"callbacks"`
}

// Generator produces synthetic reconciliation traffic.
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumTransactions <= 0 {
		cfg.NumTransactions = def.NumTransactions
	}
	if len(cfg.Currencies) == 0 {
		cfg.Currencies = def.Currencies
	}
	cfg.FailureChance = clampProbability(cfg.FailureChance)
	cfg.DuplicateChance = clampProbability(cfg.DuplicateChance)
	cfg.ContradictionChance = clampProbability(cfg.ContradictionChance)
	cfg.SilentChance = clampProbability(cfg.SilentChance)
	if cfg.UnknownCallbacks < 0 {
		cfg.UnknownCallbacks = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate synthesises transactions and callbacks. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	transactions := make([]Transaction, g.cfg.NumTransactions)
	callbacks := make([]Callback, 0, g.cfg.NumTransactions*2)

	for i := 0; i < g.cfg.NumTransactions; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		txID := fmt.Sprintf("TX-%07d", i+1)
		transactions[i] = Transaction{
			TransactionID: txID,
			Amount:        g.randomAmount().String(),
			Currency:      g.cfg.Currencies[g.rand.Intn(len(g.cfg.Currencies))],
		}

		if g.rand.Float64() < g.cfg.SilentChance {
			continue
		}

		verdict := domain.ReportedSuccess
		if g.rand.Float64() < g.cfg.FailureChance {
			verdict = domain.ReportedFailed
		}
		callbacks = append(callbacks, g.callback(txID, verdict))
		if g.rand.Float64() < g.cfg.DuplicateChance {
			callbacks = append(callbacks, g.callback(txID, verdict))
		}
		if g.rand.Float64() < g.cfg.ContradictionChance {
			callbacks = append(callbacks, g.callback(txID, opposite(verdict)))
		}
	}

	for i := 0; i < g.cfg.UnknownCallbacks; i++ {
		callbacks = append(callbacks, g.callback(fmt.Sprintf("UNKNOWN-%05d", i+1), domain.ReportedSuccess))
	}

	g.rand.Shuffle(len(callbacks), func(i, j int) {
		callbacks[i], callbacks[j] = callbacks[j], callbacks[i]
	})

	return Dataset{Transactions: transactions, Callbacks: callbacks}, nil
}

func (g *Generator) callback(txID string, status domain.ReportedStatus) Callback {
	transport := domain.TransportPost
	if g.rand.Intn(2) == 0 {
		transport = domain.TransportGet
	}
	return Callback{
		TransactionID: txID,
		Status:        string(status),
		Transport:     string(transport),
	}
}

// randomAmount returns a two-decimal amount in [1.00, 50000.00].
func (g *Generator) randomAmount() decimal.Decimal {
	paise := int64(100 + g.rand.Intn(4_999_901))
	return decimal.New(paise, -2)
}

func opposite(s domain.ReportedStatus) domain.ReportedStatus {
	if s == domain.ReportedSuccess {
		return domain.ReportedFailed
	}
	return domain.ReportedSuccess
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
