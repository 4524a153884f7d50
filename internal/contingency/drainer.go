package contingency

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"facturasv/internal/mh"
	"facturasv/internal/platform/metrics"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
)

// Replayer re-submits one queued document through the lifecycle machine. The
// pipeline service implements it; the drainer never talks to the lifecycle
// store directly, so state progression stays single-owner.
type Replayer interface {
	Replay(ctx context.Context, id domain.GenerationCode) (mh.Outcome, error)
}

// Authority is the slice of the MH client the drainer needs.
type Authority interface {
	Probe(ctx context.Context) bool
	NotifyContingency(ctx context.Context, eventJWS string) mh.Outcome
}

// EventSigner signs the contingency event report.
type EventSigner interface {
	SignEvent(v any) (string, error)
}

// Drainer owns the contingency side of the pipeline: it accepts entries while
// the authority is down, tracks outage windows per taxpayer, and replays the
// queue in order once a reachability probe succeeds. The MH will not accept
// replayed documents until it has the signed event report for their window, so
// each taxpayer's report goes out before that taxpayer's documents.
type Drainer struct {
	queue     Queue
	replay    Replayer
	authority Authority
	signer    EventSigner
	env       domain.Environment
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu       sync.Mutex
	windows  map[string]*Window
	reported map[string]bool
}

func NewDrainer(queue Queue, replay Replayer, authority Authority, signer EventSigner, env domain.Environment, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Drainer {
	return &Drainer{
		queue:     queue,
		replay:    replay,
		authority: authority,
		signer:    signer,
		env:       env,
		interval:  interval,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		windows:   make(map[string]*Window),
		reported:  make(map[string]bool),
	}
}

// Enqueue queues a document for later replay and opens an outage window for
// its taxpayer if none is standing.
func (d *Drainer) Enqueue(ctx context.Context, entry Entry) error {
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = d.now()
	}
	if err := d.queue.Enqueue(ctx, entry); err != nil {
		return err
	}

	d.mu.Lock()
	w, ok := d.windows[entry.TaxpayerNIT]
	// A failure after the previous window was already reported starts a new
	// outage, not an amendment of the reported one.
	if !ok || d.reported[entry.TaxpayerNIT] {
		w = &Window{
			TaxpayerNIT: entry.TaxpayerNIT,
			Reason:      entry.Reason,
			OpenedAt:    entry.EnqueuedAt,
		}
		d.windows[entry.TaxpayerNIT] = w
		delete(d.reported, entry.TaxpayerNIT)
	}
	w.Documents = append(w.Documents, entry.DocumentID)
	d.mu.Unlock()

	d.metrics.ContingencyQueued.Inc()
	d.updateDepth(ctx)
	d.logger.Warn("document queued for contingency replay",
		"codigo_generacion", entry.DocumentID,
		"taxpayer_nit", entry.TaxpayerNIT,
		"reason", entry.Reason,
	)
	return nil
}

// Windows returns a snapshot of the outage windows currently standing.
func (d *Drainer) Windows() []Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Window, 0, len(d.windows))
	for _, w := range d.windows {
		copied := *w
		copied.Documents = append([]domain.GenerationCode(nil), w.Documents...)
		out = append(out, copied)
	}
	return out
}

// Queue exposes the underlying queue for the operator surface.
func (d *Drainer) Queue() Queue { return d.queue }

// Run probes and drains until ctx is canceled.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

// cycle attempts one full drain pass. It stops at the first sign the
// authority dropped away again; the next tick starts over.
func (d *Drainer) cycle(ctx context.Context) {
	depth, err := d.queue.Depth(ctx)
	if err != nil {
		d.logger.Error("contingency depth check failed", "error", err)
		return
	}
	d.metrics.ContingencyDepth.Set(float64(depth))
	if depth == 0 {
		return
	}

	if !d.authority.Probe(ctx) {
		d.logger.Info("authority still unreachable, contingency replay deferred", "depth", depth)
		return
	}

	nits, err := d.queue.Taxpayers(ctx)
	if err != nil {
		d.logger.Error("contingency taxpayer listing failed", "error", err)
		return
	}

	for _, nit := range nits {
		if halt := d.drainTaxpayer(ctx, nit); halt {
			return
		}
	}
	d.updateDepth(ctx)
}

// drainTaxpayer reports the taxpayer's window and replays its queue in order.
// Returns true when the whole cycle must halt because the authority became
// unreachable mid-drain.
func (d *Drainer) drainTaxpayer(ctx context.Context, nit string) bool {
	halt, ok := d.reportWindow(ctx, nit)
	if halt {
		return true
	}
	if !ok {
		return false
	}

	for {
		entry, err := d.queue.Peek(ctx, nit)
		if errors.Is(err, sentinel.ErrNotFound) {
			d.closeWindow(nit)
			return false
		}
		if err != nil {
			d.logger.Error("contingency peek failed", "taxpayer_nit", nit, "error", err)
			return false
		}

		out, err := d.replay.Replay(ctx, entry.DocumentID)
		if err != nil {
			// A replay error is a pipeline-side fact (record missing, illegal
			// state); leaving the entry at the head would wedge the queue.
			d.logger.Error("contingency replay failed, dropping entry",
				"codigo_generacion", entry.DocumentID, "error", err)
			_ = d.queue.Ack(ctx, nit)
			continue
		}

		switch out.Kind {
		case mh.OutcomeAccepted, mh.OutcomeRejected:
			if err := d.queue.Ack(ctx, nit); err != nil {
				d.logger.Error("contingency ack failed", "taxpayer_nit", nit, "error", err)
				return false
			}
			d.metrics.ContingencyDrained.Inc()
			d.updateDepth(ctx)
		case mh.OutcomeUnreachable:
			d.logger.Warn("authority dropped away mid-drain, halting cycle",
				"taxpayer_nit", nit, "cause", out.Cause)
			return true
		default:
			// Transient even after the client's own retries: leave the entry
			// at the head and let the next cycle try again.
			d.logger.Warn("contingency replay still failing",
				"codigo_generacion", entry.DocumentID, "outcome", out.Kind)
			return false
		}
	}
}

// reportWindow submits the signed outage report for a taxpayer, once per
// window. Returns (halt, proceed): halt stops the whole cycle, proceed gates
// this taxpayer's replay on the report having been accepted.
func (d *Drainer) reportWindow(ctx context.Context, nit string) (bool, bool) {
	d.mu.Lock()
	if d.reported[nit] {
		d.mu.Unlock()
		return false, true
	}
	w, ok := d.windows[nit]
	if !ok {
		// Process restarted with a persisted queue: rebuild the window from
		// what survived.
		w = d.rebuildWindowLocked(ctx, nit)
		if w == nil {
			d.mu.Unlock()
			return false, true
		}
	}
	if w.ClosedAt.IsZero() {
		w.ClosedAt = d.now()
	}
	snapshot := *w
	d.mu.Unlock()

	entries, err := d.queue.Entries(ctx, nit)
	if err != nil {
		d.logger.Error("contingency entries listing failed", "taxpayer_nit", nit, "error", err)
		return false, false
	}

	report := buildEventReport(&snapshot, entries, d.env, d.now())
	jws, err := d.signer.SignEvent(report)
	if err != nil {
		d.logger.Error("contingency report signing failed", "taxpayer_nit", nit, "error", err)
		return false, false
	}

	out := d.authority.NotifyContingency(ctx, jws)
	switch out.Kind {
	case mh.OutcomeAccepted:
		d.mu.Lock()
		d.reported[nit] = true
		d.mu.Unlock()
		d.logger.Info("contingency window reported",
			"taxpayer_nit", nit, "documents", len(snapshot.Documents), "sello", out.Sello)
		return false, true
	case mh.OutcomeUnreachable:
		return true, false
	default:
		d.logger.Warn("contingency report not accepted",
			"taxpayer_nit", nit, "outcome", out.Kind, "detail", out.Detail)
		return false, false
	}
}

// rebuildWindowLocked reconstructs a window from persisted queue entries.
// Caller holds d.mu.
func (d *Drainer) rebuildWindowLocked(ctx context.Context, nit string) *Window {
	entries, err := d.queue.Entries(ctx, nit)
	if err != nil || len(entries) == 0 {
		return nil
	}
	w := &Window{
		TaxpayerNIT: nit,
		Reason:      entries[0].Reason,
		OpenedAt:    entries[0].EnqueuedAt,
	}
	for _, e := range entries {
		w.Documents = append(w.Documents, e.DocumentID)
	}
	d.windows[nit] = w
	return w
}

func (d *Drainer) closeWindow(nit string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.windows, nit)
	delete(d.reported, nit)
}

func (d *Drainer) updateDepth(ctx context.Context) {
	if depth, err := d.queue.Depth(ctx); err == nil {
		d.metrics.ContingencyDepth.Set(float64(depth))
	}
}
