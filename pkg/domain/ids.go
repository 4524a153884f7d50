package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// GenerationCode is the codigoGeneracion of a DTE: an uppercase UUIDv4,
// locally generated, globally unique, and the idempotency key the MH uses to
// deduplicate retried submissions.
type GenerationCode string

// NewGenerationCode mints a fresh uppercase UUIDv4 generation code.
func NewGenerationCode() GenerationCode {
	return GenerationCode(strings.ToUpper(uuid.NewString()))
}

// ParseGenerationCode validates an externally supplied generation code.
// The MH requires the uppercase 36-character canonical form.
func ParseGenerationCode(s string) (GenerationCode, error) {
	if s != strings.ToUpper(s) {
		return "", fmt.Errorf("generation code must be uppercase: %q", s)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("generation code is not a UUID: %w", err)
	}
	return GenerationCode(s), nil
}

func (c GenerationCode) String() string { return string(c) }

func (c GenerationCode) IsNil() bool { return c == "" }

// ControlNumber is the numeroControl of a DTE:
// DTE-TT-SSSS-PPPP-NNNNNNNNNNNNNNN (32 chars), where TT is the document type,
// SSSS the establishment code, PPPP the point-of-sale code and N a 15-digit
// yearly correlative.
type ControlNumber string

var controlNumberRe = regexp.MustCompile(`^DTE-\d{2}-[A-Z0-9]{4}-[A-Z0-9]{4}-\d{15}$`)

// NewControlNumber formats a control number from its parts.
func NewControlNumber(t DocumentType, establishment, pointOfSale string, correlative int64) ControlNumber {
	return ControlNumber(fmt.Sprintf("DTE-%s-%s-%s-%015d", t, establishment, pointOfSale, correlative))
}

// ParseControlNumber validates an externally supplied control number.
func ParseControlNumber(s string) (ControlNumber, error) {
	if !controlNumberRe.MatchString(s) {
		return "", fmt.Errorf("malformed control number: %q", s)
	}
	return ControlNumber(s), nil
}

func (n ControlNumber) String() string { return string(n) }

var (
	nitRe = regexp.MustCompile(`^\d{4}-\d{6}-\d{3}-\d$`)
	nrcRe = regexp.MustCompile(`^\d+-\d$`)
)

// ValidNIT reports whether s has the XXXX-XXXXXX-XXX-X taxpayer id format.
func ValidNIT(s string) bool { return nitRe.MatchString(s) }

// ValidNRC reports whether s has the XXXXXX-X registry number format.
func ValidNRC(s string) bool { return nrcRe.MatchString(s) }
