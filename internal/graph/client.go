package graph

import (
	"context"
	"errors"
)

// Client defines the minimal contract required by the transaction store to
// interact with the underlying graph database.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	// ExecuteWriteTx runs work inside a single write transaction. Work may be
	// retried on transient failures, so it must not have external side effects.
	ExecuteWriteTx(ctx context.Context, work TxWork) error
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx executes statements within an open write transaction.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// TxWork is the unit of work executed by ExecuteWriteTx. Returning an error
// rolls the transaction back.
type TxWork func(ctx context.Context, tx Tx) error

// Result is a simplified representation of a query response.
type Result struct {
	Records []Record
}

// Record groups key-value pairs returned from the graph engine.
type Record map[string]any

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")

// ErrConstraintViolation marks a write rejected by a schema constraint, such
// as a duplicate value under a uniqueness constraint.
var ErrConstraintViolation = errors.New("graph constraint violated")
