// Package stream abstracts the partitioned, replayable payment event log
// the aggregation engine consumes from. Records carry their log position
// (partition and offset) so consumption can resume after a restart and
// redeliveries can be detected.
package stream

import "context"

// Position is a durable marker inside one partition of the event log.
// Offsets are strictly increasing within a partition.
type Position struct {
	Topic     string
	Partition int
	Offset    int64
}

// Record is one raw event as delivered by the log, together with its
// position. Delivery is at-least-once: after a crash the same position
// may be delivered again.
type Record struct {
	Position Position
	Key      []byte
	Value    []byte
}

// Consumer delivers records in per-partition order.
//
// Fetch blocks until a record is available or ctx is done. Commit marks a
// record as processed with the broker; it is advisory — the engine's own
// position table in the state store is the source of truth for replay
// skipping, so committing after the fold is durable is safe even though
// the two steps are not atomic with each other.
type Consumer interface {
	Fetch(ctx context.Context) (Record, error)
	Commit(ctx context.Context, rec Record) error
	Close() error
}

// Producer publishes payment events keyed by account identifier, so all
// events of one account land in one partition.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}
