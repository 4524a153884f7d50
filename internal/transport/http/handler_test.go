package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"facturasv/internal/contingency"
	"facturasv/internal/dte/models"
	"facturasv/internal/dte/service"
	"facturasv/internal/dte/validator"
	"facturasv/internal/platform/logger"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
	"facturasv/pkg/testutil"
)

// fakePipeline scripts service-layer behavior per test.
type fakePipeline struct {
	issue      func(doc *models.Document) (*models.LifecycleRecord, error)
	get        func(id domain.GenerationCode) (*models.LifecycleRecord, error)
	retrySign  func(id domain.GenerationCode) (*models.LifecycleRecord, error)
	invalidate func(id domain.GenerationCode, req service.InvalidationRequest) (*models.LifecycleRecord, error)
}

func (f *fakePipeline) Issue(_ context.Context, doc *models.Document) (*models.LifecycleRecord, error) {
	return f.issue(doc)
}

func (f *fakePipeline) Get(_ context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	return f.get(id)
}

func (f *fakePipeline) RetrySigning(_ context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	return f.retrySign(id)
}

func (f *fakePipeline) Invalidate(_ context.Context, _ domain.Environment, id domain.GenerationCode, req service.InvalidationRequest) (*models.LifecycleRecord, error) {
	return f.invalidate(id, req)
}

type fakeContingency struct {
	queue   *contingency.InMemoryQueue
	windows []contingency.Window
}

func (f *fakeContingency) Windows() []contingency.Window { return f.windows }
func (f *fakeContingency) Queue() contingency.Queue      { return f.queue }

func acceptedRecord(doc *models.Document) *models.LifecycleRecord {
	return &models.LifecycleRecord{
		DocumentID:         doc.ID(),
		TaxpayerNIT:        doc.TaxpayerNIT(),
		Type:               doc.Type(),
		State:              models.StateAccepted,
		StateEnteredAt:     time.Now(),
		AttemptCount:       1,
		AuthorityReference: "SELLO-HTTP-1",
	}
}

type HandlerSuite struct {
	suite.Suite
	pipeline *fakePipeline
	cont     *fakeContingency
	router   *chi.Mux
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.pipeline = &fakePipeline{}
	s.cont = &fakeContingency{queue: contingency.NewInMemoryQueue()}

	checks := map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}
	s.router = chi.NewRouter()
	New(s.pipeline, s.cont, domain.EnvTest, logger.New(), checks).Register(s.router)
}

func (s *HandlerSuite) request(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) TestEmitAccepted() {
	doc := testutil.NewFactura(1)
	s.pipeline.issue = func(got *models.Document) (*models.LifecycleRecord, error) {
		s.Equal(doc.ID(), got.ID())
		return acceptedRecord(got), nil
	}

	rr := s.request(http.MethodPost, "/dte/emit", doc)
	s.Equal(http.StatusCreated, rr.Code)

	var resp recordResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(doc.ID().String(), resp.DocumentID)
	s.Equal("accepted", resp.State)
	s.Equal("SELLO-HTTP-1", resp.AuthorityReference)
}

func (s *HandlerSuite) TestEmitValidationFailure() {
	s.pipeline.issue = func(*models.Document) (*models.LifecycleRecord, error) {
		return nil, &service.ValidationError{Result: validator.Result{
			SchemaVersion: "2025.1",
			Violations: []validator.Violation{
				{Path: "resumen.totalGravada", Reason: validator.ReasonInconsistent, Message: "totals do not reconcile"},
			},
		}}
	}

	rr := s.request(http.MethodPost, "/dte/emit", testutil.NewFactura(1))
	s.Equal(http.StatusUnprocessableEntity, rr.Code)

	var resp struct {
		Error      string                `json:"error"`
		Violations []validator.Violation `json:"violations"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(string(dErrors.CodeValidation), resp.Error)
	s.Require().Len(resp.Violations, 1)
	s.Equal("resumen.totalGravada", resp.Violations[0].Path)
}

func (s *HandlerSuite) TestEmitMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/dte/emit", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestGetDocument() {
	id := domain.NewGenerationCode()
	s.pipeline.get = func(got domain.GenerationCode) (*models.LifecycleRecord, error) {
		s.Equal(id, got)
		return &models.LifecycleRecord{DocumentID: got, State: models.StateQueued}, nil
	}

	rr := s.request(http.MethodGet, "/dte/"+id.String(), nil)
	s.Equal(http.StatusOK, rr.Code)

	var resp recordResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal("queued", resp.State)
}

func (s *HandlerSuite) TestGetUnknownDocument() {
	s.pipeline.get = func(domain.GenerationCode) (*models.LifecycleRecord, error) {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}

	rr := s.request(http.MethodGet, "/dte/"+domain.NewGenerationCode().String(), nil)
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestGetMalformedIdentifier() {
	rr := s.request(http.MethodGet, "/dte/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestRetrySign() {
	id := domain.NewGenerationCode()
	s.pipeline.retrySign = func(got domain.GenerationCode) (*models.LifecycleRecord, error) {
		return &models.LifecycleRecord{DocumentID: got, State: models.StateAccepted}, nil
	}

	rr := s.request(http.MethodPost, "/dte/"+id.String()+"/retry-sign", nil)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestInvalidate() {
	id := domain.NewGenerationCode()
	s.pipeline.invalidate = func(got domain.GenerationCode, req service.InvalidationRequest) (*models.LifecycleRecord, error) {
		s.Equal(2, req.TipoAnulacion)
		s.Equal("Ana Martinez", req.ResponsibleName)
		return &models.LifecycleRecord{DocumentID: got, State: models.StateInvalidated}, nil
	}

	rr := s.request(http.MethodPost, "/dte/"+id.String()+"/invalidate", invalidateRequest{
		Reason:          "monto incorrecto",
		ResponsibleName: "Ana Martinez",
		TipoAnulacion:   2,
	})
	s.Equal(http.StatusOK, rr.Code)

	var resp recordResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal("invalidated", resp.State)
}

func (s *HandlerSuite) TestInvalidateMissingFields() {
	rr := s.request(http.MethodPost, "/dte/"+domain.NewGenerationCode().String()+"/invalidate",
		invalidateRequest{Reason: "sin responsable"})
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestInvalidateConflict() {
	s.pipeline.invalidate = func(domain.GenerationCode, service.InvalidationRequest) (*models.LifecycleRecord, error) {
		return nil, dErrors.New(dErrors.CodeConflict, "document is rejected; only accepted documents can be invalidated")
	}

	rr := s.request(http.MethodPost, "/dte/"+domain.NewGenerationCode().String()+"/invalidate",
		invalidateRequest{ResponsibleName: "Ana", TipoAnulacion: 1})
	s.Equal(http.StatusConflict, rr.Code)
}

func (s *HandlerSuite) TestContingencyView() {
	entry := contingency.Entry{
		DocumentID:  domain.NewGenerationCode(),
		TaxpayerNIT: "0614-000001-001-1",
		Type:        domain.TypeFactura,
		Reason:      "connection_failed",
		EnqueuedAt:  time.Now(),
	}
	s.Require().NoError(s.cont.queue.Enqueue(context.Background(), entry))
	s.cont.windows = []contingency.Window{{
		TaxpayerNIT: entry.TaxpayerNIT,
		Reason:      entry.Reason,
		OpenedAt:    entry.EnqueuedAt,
		Documents:   []domain.GenerationCode{entry.DocumentID},
	}}

	rr := s.request(http.MethodGet, "/contingency", nil)
	s.Equal(http.StatusOK, rr.Code)

	var resp contingencyResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(1, resp.Depth)
	s.Require().Len(resp.Windows, 1)
	s.Require().Len(resp.Queued[entry.TaxpayerNIT], 1)
	s.Equal(entry.DocumentID, resp.Queued[entry.TaxpayerNIT][0].DocumentID)
}

func (s *HandlerSuite) TestHealthzDegraded() {
	router := chi.NewRouter()
	checks := map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	New(s.pipeline, s.cont, domain.EnvTest, logger.New(), checks).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	s.Equal(http.StatusServiceUnavailable, rr.Code)
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	rr := s.request(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "go_goroutines")
}
