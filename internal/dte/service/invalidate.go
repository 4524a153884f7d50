package service

import (
	"context"
	"fmt"
	"time"

	"facturasv/internal/dte/models"
	"facturasv/internal/mh"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
)

// invalidationVersion is the MH anulación schema version.
const invalidationVersion = 2

type invalidationIdentification struct {
	Version          int    `json:"version"`
	Ambiente         string `json:"ambiente"`
	CodigoGeneracion string `json:"codigoGeneracion"`
	FecAnula         string `json:"fecAnula"`
	HorAnula         string `json:"horAnula"`
}

type invalidationTarget struct {
	TipoDte          string `json:"tipoDte"`
	CodigoGeneracion string `json:"codigoGeneracion"`
	SelloRecibido    string `json:"selloRecibido"`
	NumeroControl    string `json:"numeroControl"`
	FecEmi           string `json:"fecEmi"`
}

type invalidationMotivo struct {
	TipoAnulacion     int    `json:"tipoAnulacion"`
	MotivoAnulacion   string `json:"motivoAnulacion"`
	NombreResponsable string `json:"nombreResponsable"`
	TipDocResponsable string `json:"tipDocResponsable"`
	NumDocResponsable string `json:"numDocResponsable"`
}

type invalidationDocument struct {
	Identificacion invalidationIdentification `json:"identificacion"`
	Emisor         models.Party               `json:"emisor"`
	Documento      invalidationTarget         `json:"documento"`
	Motivo         invalidationMotivo         `json:"motivo"`
}

// InvalidationRequest is the operator's input for an anulación.
type InvalidationRequest struct {
	Reason             string
	ResponsibleName    string
	ResponsibleDocType string
	ResponsibleDocNum  string
	// TipoAnulacion per the MH catalog: 1 operation error, 2 information
	// error, 3 other (requires Reason).
	TipoAnulacion int
}

// Invalidate submits a signed invalidation event for an accepted document and
// records the terminal Invalidated state once the authority takes it.
func (s *Service) Invalidate(ctx context.Context, env domain.Environment, id domain.GenerationCode, req InvalidationRequest) (*models.LifecycleRecord, error) {
	rec, err := s.machine.Get(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeNotFound, fmt.Sprintf("document %s", id), err)
	}
	if rec.State != models.StateAccepted {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("document %s is %s; only accepted documents can be invalidated", id, rec.State))
	}

	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("document payload for %s no longer held", id))
	}

	now := s.now()
	event := invalidationDocument{
		Identificacion: invalidationIdentification{
			Version:          invalidationVersion,
			Ambiente:         env.AmbienteCode(),
			CodigoGeneracion: string(domain.NewGenerationCode()),
			FecAnula:         now.Format(time.DateOnly),
			HorAnula:         now.Format(time.TimeOnly),
		},
		Emisor: doc.Emisor,
		Documento: invalidationTarget{
			TipoDte:          doc.Identificacion.TipoDte.String(),
			CodigoGeneracion: string(id),
			SelloRecibido:    rec.AuthorityReference,
			NumeroControl:    doc.Identificacion.NumeroControl.String(),
			FecEmi:           doc.Identificacion.FecEmi,
		},
		Motivo: invalidationMotivo{
			TipoAnulacion:     req.TipoAnulacion,
			MotivoAnulacion:   req.Reason,
			NombreResponsable: req.ResponsibleName,
			TipDocResponsable: req.ResponsibleDocType,
			NumDocResponsable: req.ResponsibleDocNum,
		},
	}

	jws, err := s.signer.SignEvent(event)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "sign invalidation event", err)
	}

	out := s.transmitter.InvalidateDocument(ctx, jws, id)
	ctx = context.WithoutCancel(ctx)
	switch out.Kind {
	case mh.OutcomeAccepted:
		return s.machine.Transition(ctx, id, models.StateAccepted, models.StateInvalidated,
			models.TransitionMeta{AuthorityReference: out.Sello})
	case mh.OutcomeRejected:
		return nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("authority rejected invalidation: %s", rejectionDetail(out)))
	default:
		return nil, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("authority unavailable for invalidation: %s", out.Detail))
	}
}
