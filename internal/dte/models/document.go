package models

import (
	"time"

	"facturasv/pkg/domain"
)

// Identification is the identificacion block every DTE carries.
type Identification struct {
	Version          int                   `json:"version"`
	Ambiente         string                `json:"ambiente"`
	TipoDte          domain.DocumentType   `json:"tipoDte"`
	NumeroControl    domain.ControlNumber  `json:"numeroControl"`
	CodigoGeneracion domain.GenerationCode `json:"codigoGeneracion"`
	TipoModelo       int                   `json:"tipoModelo"`
	TipoOperacion    int                   `json:"tipoOperacion"`
	FecEmi           string                `json:"fecEmi"`
	HorEmi           string                `json:"horEmi"`
	TipoMoneda       string                `json:"tipoMoneda"`
}

// Party identifies an emisor or receptor.
type Party struct {
	NIT             string `json:"nit,omitempty"`
	NRC             string `json:"nrc,omitempty"`
	NumDocumento    string `json:"numDocumento,omitempty"`
	Nombre          string `json:"nombre"`
	NombreComercial string `json:"nombreComercial,omitempty"`
	Correo          string `json:"correo,omitempty"`
	Telefono        string `json:"telefono,omitempty"`
}

// LineItem is one cuerpoDocumento entry. Monetary values are rounded to two
// decimals before the document enters the pipeline.
type LineItem struct {
	NumItem        int     `json:"numItem"`
	Descripcion    string  `json:"descripcion"`
	Cantidad       float64 `json:"cantidad"`
	PrecioUnitario float64 `json:"precioUni"`
	MontoDescu     float64 `json:"montoDescu"`
	VentaGravada   float64 `json:"ventaGravada"`
	IVAItem        float64 `json:"ivaItem"`
}

// Summary is the resumen block with declared totals. The validator checks it
// reconciles with the line items before anything irreversible happens.
type Summary struct {
	TotalGravada        float64 `json:"totalGravada"`
	TotalIVA            float64 `json:"totalIva"`
	SubTotal            float64 `json:"subTotal"`
	MontoTotalOperacion float64 `json:"montoTotalOperacion"`
	TotalPagar          float64 `json:"totalPagar"`
	TotalLetras         string  `json:"totalLetras"`
	CondicionOperacion  int     `json:"condicionOperacion"`
}

// Document is the unit of work owned by the pipeline from creation until it
// reaches a terminal state. Its identifier (codigoGeneracion) doubles as the
// idempotency key the MH uses to deduplicate retried submissions.
type Document struct {
	Identificacion Identification `json:"identificacion"`
	Emisor         Party          `json:"emisor"`
	Receptor       Party          `json:"receptor"`
	Cuerpo         []LineItem     `json:"cuerpoDocumento"`
	Resumen        Summary        `json:"resumen"`
}

// ID returns the document identifier.
func (d *Document) ID() domain.GenerationCode {
	return d.Identificacion.CodigoGeneracion
}

// Type returns the DTE type tag.
func (d *Document) Type() domain.DocumentType {
	return d.Identificacion.TipoDte
}

// TaxpayerNIT returns the issuing taxpayer's NIT, the scope for contingency
// ordering guarantees.
func (d *Document) TaxpayerNIT() string {
	return d.Emisor.NIT
}

// SignedArtifact is immutable once produced: canonical bytes plus the JWS the
// authority verifies. It is bound 1:1 to a document and never regenerated,
// because re-signing would change the authority-visible document hash.
type SignedArtifact struct {
	DocumentID  domain.GenerationCode
	Type        domain.DocumentType
	TaxpayerNIT string
	Canonical   []byte
	JWS         string
	KeyID       string
	SignedAt    time.Time
}
