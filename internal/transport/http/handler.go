// Package httptransport is the thin operator surface over the pipeline. It
// delegates to the service layer and translates coded errors; no business
// logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facturasv/internal/contingency"
	"facturasv/internal/dte/models"
	"facturasv/internal/dte/service"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
)

// PipelineService is the slice of the service layer the handlers call.
type PipelineService interface {
	Issue(ctx context.Context, doc *models.Document) (*models.LifecycleRecord, error)
	Get(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error)
	RetrySigning(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error)
	Invalidate(ctx context.Context, env domain.Environment, id domain.GenerationCode, req service.InvalidationRequest) (*models.LifecycleRecord, error)
}

// ContingencyView exposes the read side of the contingency subsystem.
type ContingencyView interface {
	Windows() []contingency.Window
	Queue() contingency.Queue
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler serves the operator routes.
type Handler struct {
	svc    PipelineService
	cont   ContingencyView
	env    domain.Environment
	logger *slog.Logger
	checks map[string]HealthCheck
}

func New(svc PipelineService, cont ContingencyView, env domain.Environment, logger *slog.Logger, checks map[string]HealthCheck) *Handler {
	return &Handler{svc: svc, cont: cont, env: env, logger: logger, checks: checks}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	r.Post("/dte/emit", h.handleEmit)
	r.Get("/dte/{id}", h.handleGet)
	r.Post("/dte/{id}/retry-sign", h.handleRetrySign)
	r.Post("/dte/{id}/invalidate", h.handleInvalidate)
	r.Get("/contingency", h.handleContingency)
	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
}

// recordResponse is the wire form of a lifecycle record.
type recordResponse struct {
	DocumentID         string    `json:"documentId"`
	TipoDte            string    `json:"tipoDte"`
	TaxpayerNIT        string    `json:"taxpayerNit"`
	State              string    `json:"state"`
	StateEnteredAt     time.Time `json:"stateEnteredAt"`
	AttemptCount       int       `json:"attemptCount"`
	AuthorityReference string    `json:"authorityReference,omitempty"`
	LastError          string    `json:"lastError,omitempty"`
}

func toRecordResponse(rec *models.LifecycleRecord) recordResponse {
	return recordResponse{
		DocumentID:         rec.DocumentID.String(),
		TipoDte:            rec.Type.String(),
		TaxpayerNIT:        rec.TaxpayerNIT,
		State:              rec.State.String(),
		StateEnteredAt:     rec.StateEnteredAt,
		AttemptCount:       rec.AttemptCount,
		AuthorityReference: rec.AuthorityReference,
		LastError:          rec.LastError,
	}
}

func (h *Handler) handleEmit(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	rec, err := h.svc.Issue(r.Context(), &doc)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":         string(dErrors.CodeValidation),
				"schemaVersion": verr.Result.SchemaVersion,
				"violations":    verr.Result.Violations,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleRetrySign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.RetrySigning(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

type invalidateRequest struct {
	Reason             string `json:"reason"`
	ResponsibleName    string `json:"responsibleName"`
	ResponsibleDocType string `json:"responsibleDocType"`
	ResponsibleDocNum  string `json:"responsibleDocNum"`
	TipoAnulacion      int    `json:"tipoAnulacion"`
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.TipoAnulacion == 0 || req.ResponsibleName == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "tipoAnulacion and responsibleName are required"))
		return
	}

	rec, err := h.svc.Invalidate(r.Context(), h.env, id, service.InvalidationRequest{
		Reason:             req.Reason,
		ResponsibleName:    req.ResponsibleName,
		ResponsibleDocType: req.ResponsibleDocType,
		ResponsibleDocNum:  req.ResponsibleDocNum,
		TipoAnulacion:      req.TipoAnulacion,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

type contingencyResponse struct {
	Depth   int                            `json:"depth"`
	Windows []contingency.Window           `json:"windows"`
	Queued  map[string][]contingency.Entry `json:"queued"`
}

func (h *Handler) handleContingency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	queue := h.cont.Queue()

	depth, err := queue.Depth(ctx)
	if err != nil {
		writeError(w, dErrors.Wrap(dErrors.CodeUnavailable, "contingency queue unavailable", err))
		return
	}

	resp := contingencyResponse{
		Depth:   depth,
		Windows: h.cont.Windows(),
		Queued:  make(map[string][]contingency.Entry),
	}

	nits, err := queue.Taxpayers(ctx)
	if err != nil {
		writeError(w, dErrors.Wrap(dErrors.CodeUnavailable, "contingency queue unavailable", err))
		return
	}
	for _, nit := range nits {
		entries, err := queue.Entries(ctx, nit)
		if err != nil {
			writeError(w, dErrors.Wrap(dErrors.CodeUnavailable, "contingency queue unavailable", err))
			return
		}
		resp.Queued[nit] = entries
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "dependencies": deps})
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (domain.GenerationCode, bool) {
	id, err := domain.ParseGenerationCode(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "malformed document identifier"))
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation so every handler returns
// the same JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	msg := "internal error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": msg,
	})
}
