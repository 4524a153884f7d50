// Package signer turns a validated document into the signed artifact the
// authority accepts: a JWS (RS256) whose payload is the document's canonical
// byte form.
package signer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
)

// Signing failures are terminal for the attempt and never auto-retried; an
// operator resolves the key material problem and triggers a manual retry.
var (
	ErrKeyUnavailable     = errors.New("signing key unavailable")
	ErrCertificateExpired = fmt.Errorf("signing certificate outside validity window: %w", sentinel.ErrExpired)
	ErrDocumentTooLarge   = errors.New("canonical document exceeds authority size limit")
)

// Signer signs documents at most once. The artifact guard makes Sign
// idempotent per document identifier: re-signing would change the
// authority-visible hash of an already-transmitted document.
//
// The guard is in-process state, which ties the pipeline to single-instance
// deployment; externalize it into the artifact store before scaling out.
type Signer struct {
	cred     *Credential
	maxBytes int
	now      func() time.Time

	mu        sync.Mutex
	artifacts map[domain.GenerationCode]*models.SignedArtifact
}

// New creates a Signer. cred may be nil when no keystore is configured, in
// which case every Sign fails with ErrKeyUnavailable until one is loaded.
func New(cred *Credential, maxBytes int) *Signer {
	return &Signer{
		cred:      cred,
		maxBytes:  maxBytes,
		now:       time.Now,
		artifacts: make(map[domain.GenerationCode]*models.SignedArtifact),
	}
}

// Sign canonicalizes and signs a document. Calling Sign again for the same
// document identifier returns the existing artifact unchanged.
func (s *Signer) Sign(doc *models.Document) (*models.SignedArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.artifacts[doc.ID()]; ok {
		return existing, nil
	}

	if s.cred == nil {
		return nil, ErrKeyUnavailable
	}
	now := s.now()
	if !s.cred.ValidAt(now) {
		return nil, fmt.Errorf("%w: valid %s to %s",
			ErrCertificateExpired, s.cred.NotBefore.Format(time.RFC3339), s.cred.NotAfter.Format(time.RFC3339))
	}

	canonical, err := Canonicalize(doc)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", doc.ID(), err)
	}
	if s.maxBytes > 0 && len(canonical) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, len(canonical), s.maxBytes)
	}

	jws, err := s.signCanonical(canonical)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", doc.ID(), err)
	}

	artifact := &models.SignedArtifact{
		DocumentID:  doc.ID(),
		Type:        doc.Type(),
		TaxpayerNIT: doc.TaxpayerNIT(),
		Canonical:   canonical,
		JWS:         jws,
		KeyID:       s.cred.KeyID,
		SignedAt:    now,
	}
	s.artifacts[doc.ID()] = artifact
	return artifact, nil
}

// SignEvent canonicalizes and signs an event payload such as an invalidation
// document or a contingency report. Events are not issued documents: they have
// no generation-code identity of their own, so the idempotency guard does not
// apply.
func (s *Signer) SignEvent(v any) (string, error) {
	if s.cred == nil {
		return "", ErrKeyUnavailable
	}
	if !s.cred.ValidAt(s.now()) {
		return "", fmt.Errorf("%w: valid %s to %s",
			ErrCertificateExpired, s.cred.NotBefore.Format(time.RFC3339), s.cred.NotAfter.Format(time.RFC3339))
	}

	canonical, err := Canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	return s.signCanonical(canonical)
}

// Artifact returns the artifact for a document if one was already produced.
func (s *Signer) Artifact(id domain.GenerationCode) (*models.SignedArtifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	return a, ok
}

// signCanonical builds the JWS by hand so the signature covers exactly the
// canonical bytes: golang-jwt's claims marshalling would re-encode the
// payload and break byte identity with what the authority verifies.
func (s *Signer) signCanonical(canonical []byte) (string, error) {
	header, err := json.Marshal(map[string]string{
		"alg": "RS256",
		"typ": "JWT",
		"kid": s.cred.KeyID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal JWS header: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(header) +
		"." + base64.RawURLEncoding.EncodeToString(canonical)

	sig, err := jwt.SigningMethodRS256.Sign(signingInput, s.cred.Key)
	if err != nil {
		return "", fmt.Errorf("RS256 sign: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
