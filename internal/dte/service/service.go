// Package service orchestrates the issuance pipeline: validate, register,
// sign, submit, and absorb authority failures into lifecycle state. It is the
// single writer for any document's progression.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Transmitter,Enqueuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"facturasv/internal/contingency"
	"facturasv/internal/dte/lifecycle"
	"facturasv/internal/dte/models"
	"facturasv/internal/dte/validator"
	"facturasv/internal/mh"
	"facturasv/internal/platform/metrics"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
	"facturasv/pkg/platform/sentinel"
)

// Transmitter is the slice of the MH client the service drives.
type Transmitter interface {
	SubmitDocument(ctx context.Context, art *models.SignedArtifact) mh.Outcome
	InvalidateDocument(ctx context.Context, jws string, target domain.GenerationCode) mh.Outcome
}

// Enqueuer routes documents to the contingency queue when the authority is
// out of reach.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry contingency.Entry) error
}

// DocumentSigner produces and recalls signed artifacts.
type DocumentSigner interface {
	Sign(doc *models.Document) (*models.SignedArtifact, error)
	Artifact(id domain.GenerationCode) (*models.SignedArtifact, bool)
	SignEvent(v any) (string, error)
}

// ValidationError carries the full violation list back to the caller. No
// lifecycle record exists for a document that failed validation.
type ValidationError struct {
	Result validator.Result
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		paths = append(paths, v.Path)
	}
	return fmt.Sprintf("document failed validation: %s", strings.Join(paths, ", "))
}

// Service runs documents through the issuance pipeline.
type Service struct {
	validator   *validator.Validator
	signer      DocumentSigner
	machine     *lifecycle.Machine
	transmitter Transmitter
	queue       Enqueuer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	// documents retains payloads for manual re-sign and invalidation. In
	// process memory, which holds under the single-instance deployment the
	// signer's idempotency guard already requires.
	mu        sync.RWMutex
	documents map[domain.GenerationCode]*models.Document
}

func New(v *validator.Validator, signer DocumentSigner, machine *lifecycle.Machine, transmitter Transmitter, queue Enqueuer, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		validator:   v,
		signer:      signer,
		machine:     machine,
		transmitter: transmitter,
		queue:       queue,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
		documents:   make(map[domain.GenerationCode]*models.Document),
	}
}

// Issue runs a document through the full pipeline. The returned record shows
// where the document ended up; submission-layer failures are absorbed into
// state rather than surfaced as errors. Only validation failures and a
// duplicate identifier reject the document outright.
func (s *Service) Issue(ctx context.Context, doc *models.Document) (*models.LifecycleRecord, error) {
	if res := s.validator.Validate(doc); !res.Valid {
		return nil, &ValidationError{Result: res}
	}

	if _, err := s.machine.Register(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(dErrors.CodeConflict,
				fmt.Sprintf("document %s already registered", doc.ID()), err)
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "register document", err)
	}

	s.mu.Lock()
	s.documents[doc.ID()] = doc
	s.mu.Unlock()

	rec, err := s.machine.Transition(ctx, doc.ID(), models.StateCreated, models.StateValidated, models.TransitionMeta{})
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentsIssued.WithLabelValues(doc.Type().String()).Inc()

	return s.sign(ctx, doc, rec)
}

// sign moves a validated document through signing and on to submission.
func (s *Service) sign(ctx context.Context, doc *models.Document, rec *models.LifecycleRecord) (*models.LifecycleRecord, error) {
	art, err := s.signer.Sign(doc)
	if err != nil {
		s.logger.Error("signing failed",
			"codigo_generacion", doc.ID(), "error", err)
		return s.machine.Transition(ctx, doc.ID(), models.StateValidated, models.StateSigningFailed,
			models.TransitionMeta{LastError: err.Error()})
	}

	rec, err = s.machine.Transition(ctx, doc.ID(), models.StateValidated, models.StateSigned, models.TransitionMeta{})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, art, rec)
}

// submit performs one submission episode from Signed or Queued and folds the
// outcome into lifecycle state.
func (s *Service) submit(ctx context.Context, art *models.SignedArtifact, rec *models.LifecycleRecord) (*models.LifecycleRecord, error) {
	rec, err := s.machine.Transition(ctx, art.DocumentID, rec.State, models.StateSubmitting, models.TransitionMeta{})
	if err != nil {
		return nil, err
	}

	out := s.transmitter.SubmitDocument(ctx, art)
	// The exchange already happened; a caller deadline that died during the
	// episode must not keep its outcome from being recorded, or the record
	// wedges in Submitting.
	ctx = context.WithoutCancel(ctx)
	meta := models.TransitionMeta{AttemptDelta: out.Attempts, LastError: out.Detail}

	switch out.Kind {
	case mh.OutcomeAccepted:
		meta.LastError = ""
		meta.AuthorityReference = out.Sello
		return s.machine.Transition(ctx, art.DocumentID, models.StateSubmitting, models.StateAccepted, meta)

	case mh.OutcomeRejected:
		meta.LastError = rejectionDetail(out)
		return s.machine.Transition(ctx, art.DocumentID, models.StateSubmitting, models.StateRejected, meta)

	case mh.OutcomeUnreachable:
		rec, err = s.machine.Transition(ctx, art.DocumentID, models.StateSubmitting, models.StateSubmissionFailed, meta)
		if err != nil {
			return nil, err
		}
		return s.enqueueForReplay(ctx, art, rec, string(out.Cause))

	default:
		// Transient or auth-rejected with the retry budget spent.
		rec, err = s.machine.Transition(ctx, art.DocumentID, models.StateSubmitting, models.StateSubmissionFailed, meta)
		if err != nil {
			return nil, err
		}
		return s.enqueueForReplay(ctx, art, rec, "retry_exhausted")
	}
}

func rejectionDetail(out mh.Outcome) string {
	parts := []string{}
	if out.ReasonCode != "" {
		parts = append(parts, "codigo "+out.ReasonCode)
	}
	if out.Detail != "" {
		parts = append(parts, out.Detail)
	}
	parts = append(parts, out.Observaciones...)
	return strings.Join(parts, "; ")
}

// enqueueForReplay parks a failed submission in the contingency queue and
// only then marks the record Queued. The drainer replays queue entries, not
// lifecycle records, so a Queued record with no queue entry would never be
// picked up again; when the enqueue itself fails the record stays in
// SubmissionFailed, where the transition to Queued remains open for a later
// attempt.
func (s *Service) enqueueForReplay(ctx context.Context, art *models.SignedArtifact, rec *models.LifecycleRecord, reason string) (*models.LifecycleRecord, error) {
	if err := s.queue.Enqueue(ctx, contingency.Entry{
		DocumentID:  art.DocumentID,
		TaxpayerNIT: art.TaxpayerNIT,
		Type:        art.Type,
		Reason:      reason,
		EnqueuedAt:  s.now(),
	}); err != nil {
		s.logger.Error("contingency enqueue failed, record left in submission_failed",
			"codigo_generacion", art.DocumentID, "error", err)
		return rec, nil
	}
	return s.machine.Transition(ctx, art.DocumentID, models.StateSubmissionFailed, models.StateQueued, models.TransitionMeta{LastError: rec.LastError})
}

// Replay re-submits a queued document. The contingency drainer calls this
// once the authority answers probes again.
func (s *Service) Replay(ctx context.Context, id domain.GenerationCode) (mh.Outcome, error) {
	art, ok := s.signer.Artifact(id)
	if !ok {
		return mh.Outcome{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("no signed artifact for %s", id))
	}

	if _, err := s.machine.Transition(ctx, id, models.StateQueued, models.StateSubmitting, models.TransitionMeta{}); err != nil {
		return mh.Outcome{}, err
	}

	out := s.transmitter.SubmitDocument(ctx, art)
	ctx = context.WithoutCancel(ctx)
	meta := models.TransitionMeta{AttemptDelta: out.Attempts, LastError: out.Detail}

	switch out.Kind {
	case mh.OutcomeAccepted:
		meta.LastError = ""
		meta.AuthorityReference = out.Sello
		_, err := s.machine.Transition(ctx, id, models.StateSubmitting, models.StateAccepted, meta)
		return out, err
	case mh.OutcomeRejected:
		meta.LastError = rejectionDetail(out)
		_, err := s.machine.Transition(ctx, id, models.StateSubmitting, models.StateRejected, meta)
		return out, err
	default:
		// Still failing: back to Queued so the entry keeps its place.
		if _, err := s.machine.Transition(ctx, id, models.StateSubmitting, models.StateSubmissionFailed, meta); err != nil {
			return out, err
		}
		_, err := s.machine.Transition(ctx, id, models.StateSubmissionFailed, models.StateQueued,
			models.TransitionMeta{LastError: meta.LastError})
		return out, err
	}
}

// Get returns the lifecycle record for a document.
func (s *Service) Get(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	rec, err := s.machine.Get(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeNotFound,
			fmt.Sprintf("document %s", id), err)
	}
	return rec, nil
}

// RetrySigning re-enters the signing path for a document parked in
// SigningFailed, after an operator resolved the key material problem.
func (s *Service) RetrySigning(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("document payload for %s no longer held", id))
	}

	rec, err := s.machine.Transition(ctx, id, models.StateSigningFailed, models.StateValidated, models.TransitionMeta{})
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, doc, rec)
}
