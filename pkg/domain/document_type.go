package domain

import "fmt"

// DocumentType is the two-digit DTE type code assigned by the Ministerio de
// Hacienda. This is a domain primitive that enforces validity at parse time.
type DocumentType string

const (
	TypeFactura             DocumentType = "01" // Factura
	TypeCCF                 DocumentType = "03" // Comprobante de Crédito Fiscal
	TypeNotaRemision        DocumentType = "04"
	TypeNotaCredito         DocumentType = "05"
	TypeNotaDebito          DocumentType = "06"
	TypeComprobanteRetencio DocumentType = "07"
	TypeComprobanteLiquida  DocumentType = "08"
	TypeDocContableLiquida  DocumentType = "09"
	TypeFacturaExportacion  DocumentType = "11"
	TypeFacturaSujetoExcl   DocumentType = "14"
	TypeComprobanteDonacion DocumentType = "15"
)

// schemaVersions maps each DTE type to the version of its MH JSON schema.
// The version travels in the reception envelope and must match the schema
// the document was validated against.
var schemaVersions = map[DocumentType]int{
	TypeFactura:             1,
	TypeCCF:                 3,
	TypeNotaRemision:        1,
	TypeNotaCredito:         3,
	TypeNotaDebito:          3,
	TypeComprobanteRetencio: 3,
	TypeComprobanteLiquida:  1,
	TypeDocContableLiquida:  1,
	TypeFacturaExportacion:  1,
	TypeFacturaSujetoExcl:   1,
	TypeComprobanteDonacion: 1,
}

// ParseDocumentType validates and returns a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if _, ok := schemaVersions[t]; !ok {
		return "", fmt.Errorf("unknown DTE type: %q", s)
	}
	return t, nil
}

// SchemaVersion returns the MH schema version for this type, defaulting to 1
// for unknown types so the envelope is still well-formed.
func (t DocumentType) SchemaVersion() int {
	if v, ok := schemaVersions[t]; ok {
		return v
	}
	return 1
}

func (t DocumentType) String() string { return string(t) }

// SupportedTypes returns all DTE types this pipeline can issue.
func SupportedTypes() []DocumentType {
	return []DocumentType{
		TypeFactura, TypeCCF, TypeNotaRemision, TypeNotaCredito, TypeNotaDebito,
		TypeComprobanteRetencio, TypeComprobanteLiquida, TypeDocContableLiquida,
		TypeFacturaExportacion, TypeFacturaSujetoExcl, TypeComprobanteDonacion,
	}
}
