// Package lifecycle is the authoritative record of each document's progress.
// Every other component consults the machine before acting and never
// re-derives state from its own memory.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"facturasv/internal/dte/models"
	"facturasv/internal/platform/metrics"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
)

// EventSink receives serialized transition events. Publishing is best-effort;
// the sink must never block or fail the transition itself.
type EventSink interface {
	Publish(ctx context.Context, key string, value []byte)
}

// Event is the audit record emitted for every persisted transition.
type Event struct {
	DocumentID         string    `json:"documentId"`
	TaxpayerNIT        string    `json:"taxpayerNit"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	At                 time.Time `json:"at"`
	AttemptCount       int       `json:"attemptCount"`
	AuthorityReference string    `json:"authorityReference,omitempty"`
	LastError          string    `json:"lastError,omitempty"`
}

// Machine applies lifecycle transitions through the store's compare-and-set.
type Machine struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  EventSink
	now     func() time.Time
}

// NewMachine creates a lifecycle machine. events may be nil.
func NewMachine(store Store, logger *slog.Logger, m *metrics.Metrics, events EventSink) *Machine {
	return &Machine{store: store, logger: logger, metrics: m, events: events, now: time.Now}
}

// Register creates the single lifecycle record for a new document in
// StateCreated. Exactly one record ever exists per document identifier.
func (m *Machine) Register(ctx context.Context, doc *models.Document) (*models.LifecycleRecord, error) {
	rec := &models.LifecycleRecord{
		DocumentID:     doc.ID(),
		TaxpayerNIT:    doc.TaxpayerNIT(),
		Type:           doc.Type(),
		State:          models.StateCreated,
		StateEnteredAt: m.now(),
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("register %s: %w", doc.ID(), err)
	}
	m.emit(ctx, rec, "")
	return rec, nil
}

// Transition atomically moves a document from expected to next. A state
// mismatch surfaces as sentinel.ErrConflict and is never silently
// overwritten: that is the defense against a delayed retry racing a newer
// attempt. An illegal pair is rejected before touching the store.
func (m *Machine) Transition(ctx context.Context, id domain.GenerationCode, expected, next models.State, meta models.TransitionMeta) (*models.LifecycleRecord, error) {
	if !expected.CanTransitionTo(next) {
		return nil, fmt.Errorf("transition %s -> %s for %s: %w", expected, next, id, sentinel.ErrInvalidState)
	}

	rec, err := m.store.CompareAndSwap(ctx, id, expected, next, m.now(), meta)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			m.metrics.TransitionConflicts.Inc()
			m.logger.WarnContext(ctx, "lifecycle transition conflict",
				"document_id", id.String(),
				"expected", expected.String(),
				"next", next.String(),
			)
		}
		return nil, err
	}

	m.emit(ctx, rec, expected.String())
	return rec, nil
}

// Get returns the current record for a document.
func (m *Machine) Get(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	return m.store.Get(ctx, id)
}

func (m *Machine) emit(ctx context.Context, rec *models.LifecycleRecord, from string) {
	if m.events == nil {
		return
	}

	payload, err := json.Marshal(Event{
		DocumentID:         rec.DocumentID.String(),
		TaxpayerNIT:        rec.TaxpayerNIT,
		From:               from,
		To:                 rec.State.String(),
		At:                 rec.StateEnteredAt,
		AttemptCount:       rec.AttemptCount,
		AuthorityReference: rec.AuthorityReference,
		LastError:          rec.LastError,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "marshal lifecycle event", "error", err.Error())
		return
	}
	m.events.Publish(ctx, rec.DocumentID.String(), payload)
}
