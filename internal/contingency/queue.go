package contingency

import "context"

// Queue persists contingency entries in per-taxpayer FIFO order. Peek and Ack
// are split so an entry survives a crash between replay and acknowledgement;
// replay is idempotent on the authority side (same codigoGeneracion), so
// at-least-once delivery is safe.
type Queue interface {
	// Enqueue appends an entry to its taxpayer's queue.
	Enqueue(ctx context.Context, entry Entry) error

	// Taxpayers lists NITs that currently have queued entries, oldest first.
	Taxpayers(ctx context.Context) ([]string, error)

	// Peek returns the head entry for a taxpayer without removing it.
	// sentinel.ErrNotFound when the taxpayer's queue is empty.
	Peek(ctx context.Context, nit string) (Entry, error)

	// Ack removes the head entry for a taxpayer.
	Ack(ctx context.Context, nit string) error

	// Entries returns a snapshot of a taxpayer's queue in replay order.
	Entries(ctx context.Context, nit string) ([]Entry, error)

	// Depth counts queued entries across all taxpayers.
	Depth(ctx context.Context) (int, error)
}
