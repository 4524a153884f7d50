package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"facturasv/pkg/domain"
	"facturasv/pkg/testutil"
)

type ValidatorSuite struct {
	suite.Suite
	schemas   *SchemaSource
	validator *Validator
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	schemas, err := NewSchemaSource(DefaultSchemaSet())
	require.NoError(s.T(), err)
	s.schemas = schemas
	s.validator = New(schemas, domain.EnvTest)
}

func (s *ValidatorSuite) TestValidDocuments() {
	s.Run("factura", func() {
		res := s.validator.Validate(testutil.NewFactura(3))
		s.True(res.Valid, "violations: %v", res.Violations)
	})

	s.Run("ccf", func() {
		res := s.validator.Validate(testutil.NewCCF(2))
		s.True(res.Valid, "violations: %v", res.Violations)
	})
}

func (s *ValidatorSuite) TestUnknownType() {
	doc := testutil.NewFactura(1)
	doc.Identificacion.TipoDte = domain.DocumentType("99")

	res := s.validator.Validate(doc)
	s.False(res.Valid)
	s.Require().Len(res.Violations, 1)
	s.Equal("identificacion.tipoDte", res.Violations[0].Path)
	s.Equal(ReasonUnknownType, res.Violations[0].Reason)
}

func (s *ValidatorSuite) TestStructural() {
	s.Run("missing total letras", func() {
		doc := testutil.NewFactura(1)
		doc.Resumen.TotalLetras = ""

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "resumen.totalLetras", ReasonMissing)
	})

	s.Run("empty body", func() {
		doc := testutil.NewFactura(1)
		doc.Cuerpo = nil
		doc.Resumen.TotalGravada = 0
		doc.Resumen.TotalIVA = 0
		doc.Resumen.MontoTotalOperacion = 0
		doc.Resumen.TotalPagar = 0

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "cuerpoDocumento", ReasonMissing)
	})

	s.Run("version mismatch for type", func() {
		doc := testutil.NewCCF(1)
		doc.Identificacion.Version = 1 // CCF schema is version 3

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "identificacion.version", ReasonInconsistent)
	})

	s.Run("wrong ambiente", func() {
		doc := testutil.NewFactura(1)
		doc.Identificacion.Ambiente = domain.EnvProduction.AmbienteCode()

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "identificacion.ambiente", ReasonInconsistent)
	})
}

func (s *ValidatorSuite) TestFieldRules() {
	s.Run("bad NIT format", func() {
		doc := testutil.NewFactura(1)
		doc.Emisor.NIT = "06142902921023"

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "emisor.nit", ReasonMalformed)
	})

	s.Run("ccf requires receptor NRC", func() {
		doc := testutil.NewCCF(1)
		doc.Receptor.NRC = ""

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "receptor.nrc", ReasonMissing)
	})

	s.Run("non-positive quantity", func() {
		doc := testutil.NewFactura(1)
		doc.Cuerpo[0].Cantidad = 0

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "cuerpoDocumento[0].cantidad", ReasonOutOfRange)
	})

	s.Run("line numbering must be sequential", func() {
		doc := testutil.NewFactura(2)
		doc.Cuerpo[1].NumItem = 5

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "cuerpoDocumento[1].numItem", ReasonInconsistent)
	})
}

func (s *ValidatorSuite) TestCrossField() {
	s.Run("missing declared total points at the field", func() {
		doc := testutil.NewFactura(2)
		doc.Resumen.TotalGravada = 0

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "resumen.totalGravada", ReasonInconsistent)
	})

	s.Run("line iva must match type rule", func() {
		doc := testutil.NewFactura(1)
		doc.Cuerpo[0].IVAItem = 99.99
		doc.Resumen.TotalIVA = 99.99

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "cuerpoDocumento[0].ivaItem", ReasonInconsistent)
	})

	s.Run("totalPagar must match montoTotalOperacion", func() {
		doc := testutil.NewCCF(1)
		doc.Resumen.TotalPagar = doc.Resumen.MontoTotalOperacion + 1

		res := s.validator.Validate(doc)
		s.False(res.Valid)
		s.violationAt(res, "resumen.totalPagar", ReasonInconsistent)
	})
}

func (s *ValidatorSuite) TestHotSwap() {
	doc := testutil.NewFactura(1)
	s.True(s.validator.Validate(doc).Valid)

	// A new catalogue that no longer covers facturas.
	next := DefaultSchemaSet()
	next.Version = "2026.1"
	delete(next.Rules, domain.TypeFactura)
	s.Require().NoError(s.schemas.Swap(next))

	res := s.validator.Validate(doc)
	s.False(res.Valid)
	s.Equal("2026.1", res.SchemaVersion)
	s.violationAt(res, "identificacion.tipoDte", ReasonUnknownType)
}

func (s *ValidatorSuite) violationAt(res Result, path, reason string) {
	s.T().Helper()
	for _, v := range res.Violations {
		if v.Path == path && v.Reason == reason {
			return
		}
	}
	s.Failf("violation not found", "want %s/%s in %v", path, reason, res.Violations)
}
