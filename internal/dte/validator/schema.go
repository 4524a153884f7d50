package validator

import (
	"fmt"
	"sync/atomic"

	"facturasv/pkg/domain"
)

// TypeRules are the externally supplied business parameters for one DTE type.
type TypeRules struct {
	// IVARate is the tax rate applied to gravada amounts.
	IVARate float64
	// PriceIncludesIVA marks types whose unit prices are tax inclusive
	// (factura), so per-line IVA is extracted rather than added.
	PriceIncludesIVA bool
	// RequiresReceptorNRC marks types that may only be issued to registered
	// taxpayers (CCF and the notes that amend one).
	RequiresReceptorNRC bool
	// MaxLineItems is the authority's ceiling on cuerpoDocumento length.
	MaxLineItems int
}

// SchemaSet is one version of the authority's schema catalogue. Immutable
// once installed; the validator swaps whole sets, never patches one in place.
type SchemaSet struct {
	Version string
	Rules   map[domain.DocumentType]TypeRules
}

// RulesFor returns the rules for a type, or false if the set does not cover it.
func (s *SchemaSet) RulesFor(t domain.DocumentType) (TypeRules, bool) {
	r, ok := s.Rules[t]
	return r, ok
}

// DefaultSchemaSet mirrors the current MH catalogue: 13% IVA, factura prices
// tax inclusive, CCF-family documents restricted to registered receptors.
func DefaultSchemaSet() *SchemaSet {
	rules := make(map[domain.DocumentType]TypeRules, len(domain.SupportedTypes()))
	for _, t := range domain.SupportedTypes() {
		r := TypeRules{IVARate: 0.13, MaxLineItems: 2000}
		switch t {
		case domain.TypeFactura, domain.TypeFacturaSujetoExcl:
			r.PriceIncludesIVA = true
		case domain.TypeCCF, domain.TypeNotaCredito, domain.TypeNotaDebito:
			r.RequiresReceptorNRC = true
		}
		rules[t] = r
	}
	return &SchemaSet{Version: "2025.1", Rules: rules}
}

// SchemaSource holds the active schema set and supports hot swapping a new
// version without restarting in-flight validations: a validation running
// against the old set keeps its snapshot, new validations see the new set.
type SchemaSource struct {
	current atomic.Pointer[SchemaSet]
}

// NewSchemaSource creates a source seeded with the given set.
func NewSchemaSource(set *SchemaSet) (*SchemaSource, error) {
	if set == nil || len(set.Rules) == 0 {
		return nil, fmt.Errorf("schema set is empty")
	}
	src := &SchemaSource{}
	src.current.Store(set)
	return src, nil
}

// Current returns the active schema set snapshot.
func (s *SchemaSource) Current() *SchemaSet {
	return s.current.Load()
}

// Swap installs a new schema set version.
func (s *SchemaSource) Swap(set *SchemaSet) error {
	if set == nil || len(set.Rules) == 0 {
		return fmt.Errorf("schema set is empty")
	}
	s.current.Store(set)
	return nil
}
