package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/reconcile"
)

// TaskError accumulates multiple errors produced during bulk import.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ImportReport summarises a bulk import.
type ImportReport struct {
	Created int
	Skipped int
}

// BulkImporter initiates large batches of transactions using a worker pool.
type BulkImporter struct {
	service *PaymentService
	workers int
}

// NewBulkImporter creates a BulkImporter with the provided concurrency.
func NewBulkImporter(service *PaymentService, workers int) *BulkImporter {
	if workers <= 0 {
		workers = 4
	}
	return &BulkImporter{
		service: service,
		workers: workers,
	}
}

// Import initiates every input concurrently. Ids that already exist are
// counted as skipped, so re-running an import is harmless.
func (bi *BulkImporter) Import(ctx context.Context, inputs []InitiateInput) (ImportReport, error) {
	var created, skipped atomic.Int64
	err := bi.run(ctx, len(inputs), func(idx int) error {
		_, err := bi.service.Initiate(ctx, inputs[idx])
		switch {
		case err == nil:
			created.Add(1)
			return nil
		case errors.Is(err, domain.ErrTransactionExists):
			skipped.Add(1)
			return nil
		default:
			return err
		}
	})
	return ImportReport{Created: int(created.Load()), Skipped: int(skipped.Load())}, err
}

// Applier reconciles one canonical notification.
type Applier interface {
	Apply(ctx context.Context, n domain.Notification) (reconcile.Outcome, error)
}

// ReplayReport counts how a batch of notifications was absorbed.
type ReplayReport struct {
	Applied      int
	Duplicate    int
	Contradicted int
	Unknown      int
}

// Replay applies notifications concurrently. Unknown transactions are
// counted rather than failing the batch.
func (bi *BulkImporter) Replay(ctx context.Context, applier Applier, notifications []domain.Notification) (ReplayReport, error) {
	var applied, duplicate, contradicted, unknown atomic.Int64
	err := bi.run(ctx, len(notifications), func(idx int) error {
		out, err := applier.Apply(ctx, notifications[idx])
		switch {
		case errors.Is(err, domain.ErrUnknownTransaction):
			unknown.Add(1)
			return nil
		case err != nil:
			return err
		case out.StateChanged:
			applied.Add(1)
		case out.Contradicted:
			contradicted.Add(1)
		default:
			duplicate.Add(1)
		}
		return nil
	})
	return ReplayReport{
		Applied:      int(applied.Load()),
		Duplicate:    int(duplicate.Load()),
		Contradicted: int(contradicted.Load()),
		Unknown:      int(unknown.Load()),
	}, err
}

func (bi *BulkImporter) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < bi.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
