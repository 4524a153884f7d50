package mh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"facturasv/internal/platform/config"
	"facturasv/internal/platform/metrics"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
)

const tracerName = "facturasv/internal/mh"

// Client talks to the MH reception API. It owns token handling, retry policy
// and outcome classification; callers hand it a signed artifact and receive a
// classified Outcome, never a raw HTTP response.
type Client struct {
	cfg     config.MHConfig
	env     domain.Environment
	http    *http.Client
	tokens  *TokenCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewClient builds a Client. A nil httpClient gets a default one bound to the
// configured request timeout.
func NewClient(cfg config.MHConfig, env domain.Environment, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		cfg:     cfg,
		env:     env,
		http:    httpClient,
		tokens:  NewTokenCache(cfg, env, httpClient, logger, m),
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
	}
}

// Tokens exposes the cache so main can prime it at startup.
func (c *Client) Tokens() *TokenCache { return c.tokens }

// receptionRequest is the reception envelope. Documento carries the JWS; the
// identification fields travel in clear so the MH can route before verifying.
type receptionRequest struct {
	Ambiente         string `json:"ambiente"`
	IDEnvio          int    `json:"idEnvio"`
	Version          int    `json:"version"`
	TipoDte          string `json:"tipoDte"`
	Documento        string `json:"documento"`
	CodigoGeneracion string `json:"codigoGeneracion"`
}

// receptionResponse covers reception, invalidation and contingency replies;
// the three endpoints share the shape.
type receptionResponse struct {
	Estado           string   `json:"estado"`
	SelloRecibido    string   `json:"selloRecibido"`
	CodigoGeneracion string   `json:"codigoGeneracion"`
	CodigoMsg        string   `json:"codigoMsg"`
	DescripcionMsg   string   `json:"descripcionMsg"`
	Observaciones    []string `json:"observaciones"`
}

// estadoProcesado is the authority's acceptance marker.
const estadoProcesado = "PROCESADO"

// exchange performs one authenticated POST and classifies the reply. It never
// retries; SubmitDocument owns the retry loop.
func (c *Client) exchange(ctx context.Context, url string, payload any) Outcome {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeUnauthorized {
			return Outcome{Kind: OutcomeAuthRejected, Detail: "auth: " + err.Error()}
		}
		// Auth endpoint down is the same operational fact as reception down.
		return Outcome{Kind: OutcomeUnreachable, Cause: CauseConnectionFailed, Detail: "auth: " + err.Error()}
	}

	// Local failures before the request leaves the process are never an
	// authority verdict; Rejected is terminal and reserved for the MH.
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Kind: OutcomeTransient, Detail: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: OutcomeTransient, Detail: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{Kind: OutcomeTransient, Detail: "read response: " + err.Error()}
	}
	return c.classifyResponse(resp.StatusCode, raw)
}

// classifyTransportError maps connection-level failures. A refused or
// unresolvable connection means the request never arrived, so the attempt is
// side-effect free and the authority is unreachable. A timeout is ambiguous:
// the request may have landed, so it classifies transient and the caller must
// resolve via a status query before resubmitting.
func classifyTransportError(err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Kind: OutcomeTransient, Detail: "timeout: " + err.Error(), ambiguous: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTransient, Detail: "timeout: " + err.Error(), ambiguous: true}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) {
		return Outcome{Kind: OutcomeUnreachable, Cause: CauseConnectionFailed, Detail: err.Error()}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Outcome{Kind: OutcomeUnreachable, Cause: CauseConnectionFailed, Detail: err.Error()}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Outcome{Kind: OutcomeUnreachable, Cause: CauseConnectionFailed, Detail: err.Error()}
	}
	return Outcome{Kind: OutcomeTransient, Detail: err.Error()}
}

func (c *Client) classifyResponse(status int, raw []byte) Outcome {
	switch {
	case status == http.StatusOK:
		var parsed receptionResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Outcome{Kind: OutcomeTransient, Detail: "malformed 200 body"}
		}
		if strings.EqualFold(parsed.Estado, estadoProcesado) && parsed.SelloRecibido != "" {
			return Outcome{Kind: OutcomeAccepted, Sello: parsed.SelloRecibido}
		}
		return Outcome{
			Kind:          OutcomeRejected,
			ReasonCode:    parsed.CodigoMsg,
			Observaciones: parsed.Observaciones,
			Detail:        parsed.DescripcionMsg,
		}

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Token refused; a fresh authentication happens on the next attempt.
		c.tokens.Invalidate()
		return Outcome{Kind: OutcomeAuthRejected, Detail: fmt.Sprintf("authority returned %d", status)}

	case status >= 400 && status < 500:
		var parsed receptionResponse
		_ = json.Unmarshal(raw, &parsed)
		return Outcome{
			Kind:          OutcomeRejected,
			ReasonCode:    parsed.CodigoMsg,
			Observaciones: parsed.Observaciones,
			Detail:        fmt.Sprintf("authority returned %d: %s", status, parsed.DescripcionMsg),
		}

	case status == http.StatusServiceUnavailable && maintenanceBody(raw):
		return Outcome{Kind: OutcomeUnreachable, Cause: CauseMaintenance, Detail: "authority in maintenance"}

	default:
		return Outcome{Kind: OutcomeTransient, Detail: fmt.Sprintf("authority returned %d", status)}
	}
}

// maintenanceBody detects the MH maintenance page. The platform serves it as
// HTML with a fixed marker rather than a structured reply.
func maintenanceBody(raw []byte) bool {
	return bytes.Contains(bytes.ToLower(raw), []byte("mantenimiento"))
}

func (c *Client) spanAttrs(span trace.Span, kind OutcomeKind, attempts int) {
	span.SetAttributes(
		attribute.String("mh.outcome", string(kind)),
		attribute.Int("mh.attempts", attempts),
	)
}
