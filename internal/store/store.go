// Package store is the durable per-account state store. It maps IBAN to
// the folded AccountAggregate and records, in the same transaction as
// each fold, how far every partition of the event log has been consumed.
// The database is therefore the single recovery checkpoint: after a
// restart the position table says exactly which offsets are already
// folded.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ebank/internal/core"
	"ebank/internal/stream"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by GetAggregate for an IBAN that never
// received an event.
var ErrNotFound = errors.New("account not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dbPath and runs
// pending migrations. WAL mode keeps query reads from blocking engine
// writes.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ApplyFold appends one payment event to its account aggregate and
// advances the position marker for the event's partition, atomically.
// The position row only advances when pos.Offset is greater than the
// stored offset; when it is not, the event is a redelivery of an already
// folded position and ApplyFold reports folded=false without touching
// the aggregate.
func (s *Store) ApplyFold(ctx context.Context, e core.PaymentEvent, pos stream.Position, on core.Date) (folded bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin fold tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO stream_positions (topic, partition_id, last_offset)
		VALUES (?, ?, ?)
		ON CONFLICT (topic, partition_id) DO UPDATE
		SET last_offset = excluded.last_offset
		WHERE excluded.last_offset > stream_positions.last_offset`,
		pos.Topic, pos.Partition, pos.Offset)
	if err != nil {
		return false, fmt.Errorf("advance position: %w", err)
	}
	advanced, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance position: %w", err)
	}
	if advanced == 0 {
		// Replay of a folded position.
		return false, tx.Rollback()
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (iban, last_update) VALUES (?, ?)
		ON CONFLICT (iban) DO UPDATE SET last_update = excluded.last_update`,
		e.IBAN, on.String()); err != nil {
		return false, fmt.Errorf("upsert account %s: %w", e.IBAN, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO payments (payment_id, iban, amount, transaction_date, description)
		VALUES (?, ?, ?, ?, ?)`,
		e.PaymentID, e.IBAN, e.Amount.String(), e.TransactionDate.String(), e.Description); err != nil {
		return false, fmt.Errorf("append payment %s: %w", e.PaymentID, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit fold: %w", err)
	}
	return true, nil
}

// GetAggregate reads the full aggregate for one IBAN. Events come back
// in arrival order. Returns ErrNotFound when the account has never been
// folded.
func (s *Store) GetAggregate(ctx context.Context, iban string) (core.AccountAggregate, error) {
	var lastUpdate string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_update FROM accounts WHERE iban = ?`, iban).Scan(&lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AccountAggregate{}, ErrNotFound
	}
	if err != nil {
		return core.AccountAggregate{}, fmt.Errorf("read account %s: %w", iban, err)
	}

	on, err := core.ParseDate(lastUpdate)
	if err != nil {
		return core.AccountAggregate{}, fmt.Errorf("account %s: %w", iban, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, amount, transaction_date, description
		FROM payments WHERE iban = ? ORDER BY id`, iban)
	if err != nil {
		return core.AccountAggregate{}, fmt.Errorf("read payments for %s: %w", iban, err)
	}
	defer rows.Close()

	var agg core.AccountAggregate
	for rows.Next() {
		var paymentID, amount, txDate, description string
		if err := rows.Scan(&paymentID, &amount, &txDate, &description); err != nil {
			return core.AccountAggregate{}, fmt.Errorf("scan payment: %w", err)
		}
		e := core.PaymentEvent{PaymentID: paymentID, IBAN: iban, Description: description}
		if e.Amount, err = core.ParseAmount(amount); err != nil {
			return core.AccountAggregate{}, fmt.Errorf("payment %s: %w", paymentID, err)
		}
		if e.TransactionDate, err = core.ParseDate(txDate); err != nil {
			return core.AccountAggregate{}, fmt.Errorf("payment %s: %w", paymentID, err)
		}
		agg = agg.Fold(e, on)
	}
	if err := rows.Err(); err != nil {
		return core.AccountAggregate{}, fmt.Errorf("read payments for %s: %w", iban, err)
	}
	return agg, nil
}

// Positions returns the last folded offset per partition for a topic.
// The engine loads this at startup to skip redelivered records without a
// round trip per event.
func (s *Store) Positions(ctx context.Context, topic string) (map[int]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT partition_id, last_offset FROM stream_positions WHERE topic = ?`, topic)
	if err != nil {
		return nil, fmt.Errorf("read positions for %s: %w", topic, err)
	}
	defer rows.Close()

	positions := make(map[int]int64)
	for rows.Next() {
		var partition int
		var offset int64
		if err := rows.Scan(&partition, &offset); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions[partition] = offset
	}
	return positions, rows.Err()
}
