package generator

// Config drives the synthetic payment dataset generator.
type Config struct {
	NumTransactions int
	Currencies      []string
	// FailureChance is the probability that a payment's first verdict is failed.
	FailureChance float64
	// DuplicateChance is the probability a verdict is redelivered.
	DuplicateChance float64
	// ContradictionChance is the probability a late opposite verdict follows.
	ContradictionChance float64
	// SilentChance is the probability a payment never receives a callback.
	SilentChance float64
	// UnknownCallbacks adds callbacks for ids that were never initiated.
	UnknownCallbacks int
	Seed             int64
}

// DefaultConfig returns baseline settings for a local soak run.
func DefaultConfig() Config {
	return Config{
		NumTransactions:     1000,
		Currencies:          []string{"INR"},
		FailureChance:       0.2,
		DuplicateChance:     0.3,
		ContradictionChance: 0.05,
		SilentChance:        0.1,
		UnknownCallbacks:    10,
		Seed:                42,
	}
}
