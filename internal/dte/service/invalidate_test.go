package service

import (
	"go.uber.org/mock/gomock"

	"facturasv/internal/dte/models"
	"facturasv/internal/mh"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
	"facturasv/pkg/testutil"
)

func (s *ServiceSuite) issueAccepted() *models.Document {
	doc := testutil.NewFactura(1)
	s.transmitter.EXPECT().SubmitDocument(gomock.Any(), gomock.Any()).
		Return(s.accepted("SELLO-ORIGINAL", 1))
	rec, err := s.service.Issue(s.ctx, doc)
	s.Require().NoError(err)
	s.Require().Equal(models.StateAccepted, rec.State)
	return doc
}

func (s *ServiceSuite) TestInvalidateAcceptedDocument() {
	doc := s.issueAccepted()

	s.transmitter.EXPECT().InvalidateDocument(gomock.Any(), gomock.Any(), doc.ID()).
		DoAndReturn(func(_ any, jws string, _ domain.GenerationCode) mh.Outcome {
			s.NotEmpty(jws)
			return mh.Outcome{Kind: mh.OutcomeAccepted, Sello: "SELLO-ANULACION"}
		})

	rec, err := s.service.Invalidate(s.ctx, domain.EnvTest, doc.ID(), InvalidationRequest{
		Reason:             "monto facturado incorrecto",
		ResponsibleName:    "Ana Martinez",
		ResponsibleDocType: "13",
		ResponsibleDocNum:  "02345678-9",
		TipoAnulacion:      2,
	})
	s.Require().NoError(err)
	s.Equal(models.StateInvalidated, rec.State)
	s.Equal("SELLO-ANULACION", rec.AuthorityReference)
}

func (s *ServiceSuite) TestInvalidateRequiresAcceptedState() {
	doc := testutil.NewFactura(1)
	s.transmitter.EXPECT().SubmitDocument(gomock.Any(), gomock.Any()).
		Return(mh.Outcome{Kind: mh.OutcomeRejected, ReasonCode: "01", Attempts: 1})
	rec, err := s.service.Issue(s.ctx, doc)
	s.Require().NoError(err)
	s.Require().Equal(models.StateRejected, rec.State)

	_, err = s.service.Invalidate(s.ctx, domain.EnvTest, doc.ID(), InvalidationRequest{TipoAnulacion: 1})
	s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestInvalidateUnknownDocument() {
	_, err := s.service.Invalidate(s.ctx, domain.EnvTest, domain.NewGenerationCode(), InvalidationRequest{TipoAnulacion: 1})
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestInvalidateAuthorityRejection() {
	doc := s.issueAccepted()

	s.transmitter.EXPECT().InvalidateDocument(gomock.Any(), gomock.Any(), doc.ID()).
		Return(mh.Outcome{Kind: mh.OutcomeRejected, ReasonCode: "10", Detail: "sello no corresponde"})

	_, err := s.service.Invalidate(s.ctx, domain.EnvTest, doc.ID(), InvalidationRequest{TipoAnulacion: 1})
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))

	rec, err := s.service.Get(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.Equal(models.StateAccepted, rec.State, "a rejected invalidation leaves the document accepted")
}
