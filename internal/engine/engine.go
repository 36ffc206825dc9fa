// Package engine folds the payment event stream into per-account
// aggregates. Each Engine runs one sequential consume loop; partitions
// assigned to it are processed strictly in arrival order, which is what
// makes the per-account append order and the replay tracking hold.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"ebank/internal/core"
	applog "ebank/internal/log"
	"ebank/internal/store"
	"ebank/internal/stream"
)

type Engine struct {
	consumer stream.Consumer
	store    *store.Store
	logger   *applog.Logger
	topic    string

	// last folded offset per partition, loaded from the store at
	// startup. Only the loop goroutine touches it.
	positions map[int]int64

	today func() core.Date
}

func New(consumer stream.Consumer, st *store.Store, logger *applog.Logger, topic string) *Engine {
	return &Engine{
		consumer:  consumer,
		store:     st,
		logger:    logger.WithComponent(applog.ComponentEngine),
		topic:     topic,
		positions: make(map[int]int64),
		today:     core.Today,
	}
}

// Run consumes records until ctx is cancelled or the store becomes
// unrecoverable. Malformed events are dropped and never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	positions, err := e.store.Positions(ctx, e.topic)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	e.positions = positions
	e.logger.Info("engine started", applog.FieldTopic, e.topic, "partitions_resumed", len(positions))

	for {
		rec, err := e.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch record: %w", err)
		}

		if err := e.Ingest(ctx, rec); err != nil {
			// Only unrecoverable store failures land here; the
			// uncommitted record will be redelivered after restart.
			return err
		}

		if err := e.consumer.Commit(ctx, rec); err != nil && ctx.Err() == nil {
			// Broker commit is advisory: the store's position table
			// already has the fold, so a redelivery will be skipped.
			e.logger.Warn("offset commit failed",
				applog.FieldPartition, rec.Position.Partition,
				applog.FieldOffset, rec.Position.Offset,
				applog.FieldError, err)
		}
	}
}

// Ingest folds one record into its account aggregate. Processing any
// distinct log position more than once is a no-op: positions at or
// before the last folded offset of their partition are skipped here, and
// the store's own position guard covers folds raced by a crash between
// store commit and broker commit.
func (e *Engine) Ingest(ctx context.Context, rec stream.Record) error {
	pos := rec.Position
	if last, ok := e.positions[pos.Partition]; ok && pos.Offset <= last {
		e.logger.Debug("skipping replayed record",
			applog.FieldPartition, pos.Partition,
			applog.FieldOffset, pos.Offset)
		return nil
	}

	event, err := core.DecodeEvent(rec.Value)
	if err != nil {
		e.logger.Warn("dropping malformed event",
			applog.FieldPartition, pos.Partition,
			applog.FieldOffset, pos.Offset,
			applog.FieldError, err)
		e.positions[pos.Partition] = pos.Offset
		return nil
	}
	event.PaymentID = StampPaymentID(pos)

	folded, err := e.applyWithRetry(ctx, event, pos)
	if err != nil {
		return fmt.Errorf("store unrecoverable at %d/%d: %w", pos.Partition, pos.Offset, err)
	}
	e.positions[pos.Partition] = pos.Offset

	if folded {
		e.logger.Debug("event folded",
			applog.FieldIBAN, event.IBAN,
			applog.FieldPaymentID, event.PaymentID)
	}
	return nil
}

// applyWithRetry writes the fold, retrying transient store failures with
// exponential backoff. The store is the only source of truth, so giving
// up means halting the engine.
func (e *Engine) applyWithRetry(ctx context.Context, event core.PaymentEvent, pos stream.Position) (bool, error) {
	var folded bool
	operation := func() error {
		var err error
		folded, err = e.store.ApplyFold(ctx, event, pos, e.today())
		if err != nil {
			e.logger.Warn("store write failed, retrying",
				applog.FieldPaymentID, event.PaymentID,
				applog.FieldError, err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	return folded, nil
}

// StampPaymentID derives the payment id from the record's log position.
// Offsets are unique per partition, so the pair is unique per topic.
func StampPaymentID(pos stream.Position) string {
	return fmt.Sprintf("%d-%d", pos.Partition, pos.Offset)
}
