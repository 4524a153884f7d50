package mh

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"facturasv/internal/dte/models"
)

// SubmitDocument transmits a signed artifact and retries transient failures
// with exponential backoff until an attempt resolves or the budget runs out.
//
// Classification drives the loop:
//   - accepted / rejected end it immediately;
//   - unreachable ends it immediately, because hammering a dead endpoint only
//     delays the contingency hand-off;
//   - auth_rejected and transient burn an attempt and back off.
//
// A timeout is ambiguous: the document may already sit accepted on the MH
// side, and resubmitting an accepted document draws a duplicate rejection. So
// every timeout is resolved with a status query before the next transmit.
func (c *Client) SubmitDocument(ctx context.Context, art *models.SignedArtifact) Outcome {
	ctx, span := c.tracer.Start(ctx, "mh.SubmitDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("dte.codigo_generacion", string(art.DocumentID)),
		attribute.String("dte.tipo", art.Type.String()),
	)

	envelope := receptionRequest{
		Ambiente:         c.env.AmbienteCode(),
		IDEnvio:          1,
		Version:          art.Type.SchemaVersion(),
		TipoDte:          art.Type.String(),
		Documento:        art.JWS,
		CodigoGeneracion: string(art.DocumentID),
	}

	var out Outcome
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		out = c.exchange(ctx, c.cfg.ReceptionURL, envelope)
		out.Attempts = attempt
		c.metrics.SubmissionLatency.Observe(time.Since(start).Seconds())
		c.metrics.SubmissionAttempts.WithLabelValues(string(out.Kind)).Inc()

		c.logger.Info("MH submission attempt",
			"codigo_generacion", art.DocumentID,
			"attempt", attempt,
			"outcome", out.Kind,
			"detail", out.Detail,
		)

		switch out.Kind {
		case OutcomeAccepted, OutcomeRejected, OutcomeUnreachable:
			c.spanAttrs(span, out.Kind, attempt)
			return out
		}

		// Timeout: the attempt may have landed. Ask before transmitting again.
		if out.ambiguous {
			if resolved, ok := c.resolveAmbiguous(ctx, art); ok {
				resolved.Attempts = attempt
				c.spanAttrs(span, resolved.Kind, attempt)
				return resolved
			}
		}

		if attempt < c.cfg.MaxAttempts {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				out.Detail = "canceled during backoff: " + ctx.Err().Error()
				c.spanAttrs(span, out.Kind, attempt)
				return out
			}
		}
	}

	c.spanAttrs(span, out.Kind, out.Attempts)
	return out
}

// resolveAmbiguous queries the document's status after a timeout. Only a
// definitive accepted answer short-circuits the retry loop; any query failure
// leaves the ambiguity standing and the loop continues.
func (c *Client) resolveAmbiguous(ctx context.Context, art *models.SignedArtifact) (Outcome, bool) {
	status, err := c.QueryStatus(ctx, art)
	if err != nil {
		c.logger.Warn("status query after timeout failed",
			"codigo_generacion", art.DocumentID, "error", err)
		return Outcome{}, false
	}
	if status.Processed && status.Sello != "" {
		c.logger.Info("timed-out submission had been accepted",
			"codigo_generacion", art.DocumentID, "sello", status.Sello)
		return Outcome{Kind: OutcomeAccepted, Sello: status.Sello}, true
	}
	return Outcome{}, false
}

// backoff is 2^(n-1) * base with jitter, capped. Full jitter keeps a burst of
// parallel submissions from re-synchronizing on the authority.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase << (attempt - 1)
	if d > c.cfg.BackoffCap || d <= 0 {
		d = c.cfg.BackoffCap
	}
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/2)
}

// Probe checks whether the authority answers at all. Any HTTP response,
// whatever the status, proves connectivity; only transport-level failure or a
// maintenance page counts as unreachable. The contingency drainer polls this
// before attempting a replay cycle.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ReceptionURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusServiceUnavailable {
		raw := make([]byte, 4096)
		n, _ := resp.Body.Read(raw)
		return !maintenanceBody(raw[:n])
	}
	return true
}
