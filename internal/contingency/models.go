// Package contingency queues documents issued while the authority is
// unreachable and replays them, in per-taxpayer order, once connectivity
// returns. The MH requires a signed event report describing the outage window
// before it accepts the queued documents themselves.
package contingency

import (
	"time"

	"facturasv/pkg/domain"
)

// Entry is one queued document awaiting replay. Entries are replayed in
// enqueue order per taxpayer NIT; order across taxpayers is not guaranteed.
type Entry struct {
	DocumentID  domain.GenerationCode `json:"documentId"`
	TaxpayerNIT string                `json:"taxpayerNit"`
	Type        domain.DocumentType   `json:"tipoDte"`
	Reason      string                `json:"reason"`
	EnqueuedAt  time.Time             `json:"enqueuedAt"`
}

// Window is an outage period for one taxpayer: opened when the first entry is
// queued with no window standing, closed when the queue for that taxpayer
// drains. The closed window becomes the signed contingency event the MH
// demands before accepting the replayed documents.
type Window struct {
	TaxpayerNIT string                  `json:"taxpayerNit"`
	Reason      string                  `json:"reason"`
	OpenedAt    time.Time               `json:"openedAt"`
	ClosedAt    time.Time               `json:"closedAt,omitzero"`
	Documents   []domain.GenerationCode `json:"documents"`
}

// Open reports whether the window is still accumulating documents.
func (w *Window) Open() bool { return w.ClosedAt.IsZero() }
