// Package validator checks a candidate DTE against structural and business
// rules before anything irreversible happens. It is side-effect free and
// never touches lifecycle state.
package validator

import (
	"fmt"
	"math"
	"time"

	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
)

// Reason codes carried by violations. Machine readable; messages are for humans.
const (
	ReasonMissing      = "missing"
	ReasonMalformed    = "malformed"
	ReasonOutOfRange   = "out_of_range"
	ReasonUnknownType  = "unknown_type"
	ReasonInconsistent = "inconsistent"
)

// Violation pinpoints one failed check.
type Violation struct {
	Path    string `json:"path"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Result is the outcome of a validation pass.
type Result struct {
	Valid         bool        `json:"valid"`
	SchemaVersion string      `json:"schemaVersion"`
	Violations    []Violation `json:"violations,omitempty"`
}

// Validator validates documents against the active schema set.
type Validator struct {
	schemas *SchemaSource
	env     domain.Environment
}

// New creates a Validator bound to a schema source and environment.
func New(schemas *SchemaSource, env domain.Environment) *Validator {
	return &Validator{schemas: schemas, env: env}
}

// Validate runs the three check layers in order: structural completeness,
// field-level rules, cross-field consistency. Later layers still run when
// earlier ones fail so the caller sees every violation at once, except when
// the type itself is unrecognized (no rules to check against).
func (v *Validator) Validate(doc *models.Document) Result {
	set := v.schemas.Current()
	res := Result{SchemaVersion: set.Version}

	rules, known := set.RulesFor(doc.Identificacion.TipoDte)
	if !known {
		res.Violations = append(res.Violations, Violation{
			Path:    "identificacion.tipoDte",
			Reason:  ReasonUnknownType,
			Message: fmt.Sprintf("unrecognized DTE type %q in schema set %s", doc.Identificacion.TipoDte, set.Version),
		})
		return res
	}

	res.Violations = append(res.Violations, v.structural(doc)...)
	res.Violations = append(res.Violations, v.fields(doc, rules)...)
	res.Violations = append(res.Violations, v.crossField(doc, rules)...)

	res.Valid = len(res.Violations) == 0
	return res
}

func (v *Validator) structural(doc *models.Document) []Violation {
	var out []Violation

	id := doc.Identificacion
	if id.CodigoGeneracion.IsNil() {
		out = append(out, Violation{"identificacion.codigoGeneracion", ReasonMissing, "generation code is required"})
	} else if _, err := domain.ParseGenerationCode(id.CodigoGeneracion.String()); err != nil {
		out = append(out, Violation{"identificacion.codigoGeneracion", ReasonMalformed, err.Error()})
	}

	if id.NumeroControl == "" {
		out = append(out, Violation{"identificacion.numeroControl", ReasonMissing, "control number is required"})
	} else if _, err := domain.ParseControlNumber(id.NumeroControl.String()); err != nil {
		out = append(out, Violation{"identificacion.numeroControl", ReasonMalformed, err.Error()})
	}

	if want := id.TipoDte.SchemaVersion(); id.Version != want {
		out = append(out, Violation{
			"identificacion.version", ReasonInconsistent,
			fmt.Sprintf("version %d does not match schema version %d for type %s", id.Version, want, id.TipoDte),
		})
	}

	if id.Ambiente != v.env.AmbienteCode() {
		out = append(out, Violation{
			"identificacion.ambiente", ReasonInconsistent,
			fmt.Sprintf("ambiente %q does not match configured environment %q", id.Ambiente, v.env.AmbienteCode()),
		})
	}

	if doc.Emisor.Nombre == "" {
		out = append(out, Violation{"emisor.nombre", ReasonMissing, "issuer name is required"})
	}
	if doc.Emisor.NIT == "" {
		out = append(out, Violation{"emisor.nit", ReasonMissing, "issuer NIT is required"})
	}
	if len(doc.Cuerpo) == 0 {
		out = append(out, Violation{"cuerpoDocumento", ReasonMissing, "at least one line item is required"})
	}
	if doc.Resumen.TotalLetras == "" {
		out = append(out, Violation{"resumen.totalLetras", ReasonMissing, "spelled-out total is required"})
	}

	return out
}

func (v *Validator) fields(doc *models.Document, rules TypeRules) []Violation {
	var out []Violation

	if doc.Emisor.NIT != "" && !domain.ValidNIT(doc.Emisor.NIT) {
		out = append(out, Violation{"emisor.nit", ReasonMalformed, "NIT must match XXXX-XXXXXX-XXX-X"})
	}
	if doc.Emisor.NRC != "" && !domain.ValidNRC(doc.Emisor.NRC) {
		out = append(out, Violation{"emisor.nrc", ReasonMalformed, "NRC must match NNNNNN-N"})
	}
	if rules.RequiresReceptorNRC && doc.Receptor.NRC == "" {
		out = append(out, Violation{"receptor.nrc", ReasonMissing,
			fmt.Sprintf("type %s may only be issued to registered taxpayers", doc.Identificacion.TipoDte)})
	}
	if doc.Receptor.NRC != "" && !domain.ValidNRC(doc.Receptor.NRC) {
		out = append(out, Violation{"receptor.nrc", ReasonMalformed, "NRC must match NNNNNN-N"})
	}

	if rules.MaxLineItems > 0 && len(doc.Cuerpo) > rules.MaxLineItems {
		out = append(out, Violation{"cuerpoDocumento", ReasonOutOfRange,
			fmt.Sprintf("%d line items exceed the maximum of %d", len(doc.Cuerpo), rules.MaxLineItems)})
	}

	for i, item := range doc.Cuerpo {
		prefix := fmt.Sprintf("cuerpoDocumento[%d]", i)
		if item.NumItem != i+1 {
			out = append(out, Violation{prefix + ".numItem", ReasonInconsistent,
				fmt.Sprintf("numItem %d, expected %d", item.NumItem, i+1)})
		}
		if item.Descripcion == "" {
			out = append(out, Violation{prefix + ".descripcion", ReasonMissing, "description is required"})
		}
		if item.Cantidad <= 0 {
			out = append(out, Violation{prefix + ".cantidad", ReasonOutOfRange, "quantity must be positive"})
		}
		if item.PrecioUnitario < 0 {
			out = append(out, Violation{prefix + ".precioUni", ReasonOutOfRange, "unit price cannot be negative"})
		}
		if item.MontoDescu < 0 {
			out = append(out, Violation{prefix + ".montoDescu", ReasonOutOfRange, "discount cannot be negative"})
		}
	}

	if _, err := time.Parse("2006-01-02", doc.Identificacion.FecEmi); err != nil {
		out = append(out, Violation{"identificacion.fecEmi", ReasonMalformed, "emission date must be YYYY-MM-DD"})
	}
	if _, err := time.Parse("15:04:05", doc.Identificacion.HorEmi); err != nil {
		out = append(out, Violation{"identificacion.horEmi", ReasonMalformed, "emission time must be HH:MM:SS"})
	}

	return out
}

func (v *Validator) crossField(doc *models.Document, rules TypeRules) []Violation {
	var out []Violation

	var sumGravada, sumIVA float64
	for i, item := range doc.Cuerpo {
		prefix := fmt.Sprintf("cuerpoDocumento[%d]", i)

		expectedVenta := round2(round2(item.PrecioUnitario)*item.Cantidad - item.MontoDescu)
		if !near(item.VentaGravada, expectedVenta) {
			out = append(out, Violation{prefix + ".ventaGravada", ReasonInconsistent,
				fmt.Sprintf("declared %.2f, computed %.2f", item.VentaGravada, expectedVenta)})
		}

		var expectedIVA float64
		if rules.PriceIncludesIVA {
			// Tax-inclusive prices: extract the IVA share from the gravada amount.
			expectedIVA = round2(item.VentaGravada - item.VentaGravada/(1+rules.IVARate))
		} else {
			expectedIVA = round2(item.VentaGravada * rules.IVARate)
		}
		if !near(item.IVAItem, expectedIVA) {
			out = append(out, Violation{prefix + ".ivaItem", ReasonInconsistent,
				fmt.Sprintf("declared %.2f, computed %.2f", item.IVAItem, expectedIVA)})
		}

		sumGravada += item.VentaGravada
		sumIVA += item.IVAItem
	}
	sumGravada = round2(sumGravada)
	sumIVA = round2(sumIVA)

	if !near(doc.Resumen.TotalGravada, sumGravada) {
		out = append(out, Violation{"resumen.totalGravada", ReasonInconsistent,
			fmt.Sprintf("declared %.2f, line items sum to %.2f", doc.Resumen.TotalGravada, sumGravada)})
	}
	if !near(doc.Resumen.TotalIVA, sumIVA) {
		out = append(out, Violation{"resumen.totalIva", ReasonInconsistent,
			fmt.Sprintf("declared %.2f, line items sum to %.2f", doc.Resumen.TotalIVA, sumIVA)})
	}

	expectedTotal := sumGravada
	if !rules.PriceIncludesIVA {
		expectedTotal = round2(sumGravada + sumIVA)
	}
	if !near(doc.Resumen.MontoTotalOperacion, expectedTotal) {
		out = append(out, Violation{"resumen.montoTotalOperacion", ReasonInconsistent,
			fmt.Sprintf("declared %.2f, computed %.2f", doc.Resumen.MontoTotalOperacion, expectedTotal)})
	}
	if !near(doc.Resumen.TotalPagar, doc.Resumen.MontoTotalOperacion) {
		out = append(out, Violation{"resumen.totalPagar", ReasonInconsistent,
			fmt.Sprintf("totalPagar %.2f does not match montoTotalOperacion %.2f",
				doc.Resumen.TotalPagar, doc.Resumen.MontoTotalOperacion)})
	}

	return out
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// near compares monetary values at cent precision.
func near(a, b float64) bool { return math.Abs(a-b) < 0.005 }
