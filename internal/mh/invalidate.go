package mh

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"facturasv/pkg/domain"
)

// invalidationVersion is the anulación envelope version.
const invalidationVersion = 2

// contingencyVersion is the contingency event report envelope version.
const contingencyVersion = 3

type eventRequest struct {
	Ambiente  string `json:"ambiente"`
	IDEnvio   int    `json:"idEnvio"`
	Version   int    `json:"version"`
	Documento string `json:"documento"`
}

// InvalidateDocument submits a signed invalidation event for an accepted
// document. No retry loop: invalidation is operator-driven and the operator
// sees the outcome immediately.
func (c *Client) InvalidateDocument(ctx context.Context, invalidationJWS string, target domain.GenerationCode) Outcome {
	ctx, span := c.tracer.Start(ctx, "mh.InvalidateDocument")
	defer span.End()
	span.SetAttributes(attribute.String("dte.codigo_generacion", string(target)))

	out := c.exchange(ctx, c.cfg.InvalidateURL, eventRequest{
		Ambiente:  c.env.AmbienteCode(),
		IDEnvio:   1,
		Version:   invalidationVersion,
		Documento: invalidationJWS,
	})
	out.Attempts = 1
	c.metrics.SubmissionAttempts.WithLabelValues(string(out.Kind)).Inc()
	c.spanAttrs(span, out.Kind, 1)

	c.logger.Info("MH invalidation submitted",
		"codigo_generacion", target, "outcome", out.Kind, "detail", out.Detail)
	return out
}

// NotifyContingency submits a signed contingency event report describing an
// outage window and the documents issued during it. The MH requires the
// report before it accepts the queued documents themselves.
func (c *Client) NotifyContingency(ctx context.Context, eventJWS string) Outcome {
	ctx, span := c.tracer.Start(ctx, "mh.NotifyContingency")
	defer span.End()

	out := c.exchange(ctx, c.cfg.ContingencyURL, eventRequest{
		Ambiente:  c.env.AmbienteCode(),
		IDEnvio:   1,
		Version:   contingencyVersion,
		Documento: eventJWS,
	})
	out.Attempts = 1
	c.spanAttrs(span, out.Kind, 1)

	c.logger.Info("MH contingency report submitted", "outcome", out.Kind, "detail", out.Detail)
	return out
}
