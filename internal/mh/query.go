package mh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"facturasv/internal/dte/models"
	dErrors "facturasv/pkg/domain-errors"
)

// DocumentStatus is the authority's answer to a status query.
type DocumentStatus struct {
	Processed   bool
	Sello       string
	Estado      string
	Descripcion string
}

type queryRequest struct {
	NITEmisor        string `json:"nitEmisor"`
	TipoDte          string `json:"tdte"`
	CodigoGeneracion string `json:"codigoGeneracion"`
}

// QueryStatus asks the MH for a document's current state. A not-found answer
// is not an error: it means the document never arrived, which is exactly what
// ambiguity resolution needs to know.
func (c *Client) QueryStatus(ctx context.Context, art *models.SignedArtifact) (DocumentStatus, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return DocumentStatus{}, err
	}

	body, err := json.Marshal(queryRequest{
		NITEmisor:        art.TaxpayerNIT,
		TipoDte:          art.Type.String(),
		CodigoGeneracion: string(art.DocumentID),
	})
	if err != nil {
		return DocumentStatus{}, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.QueryURL, strings.NewReader(string(body)))
	if err != nil {
		return DocumentStatus{}, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return DocumentStatus{}, dErrors.Wrap(dErrors.CodeUnavailable, "MH query unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return DocumentStatus{}, dErrors.Wrap(dErrors.CodeUnavailable, "MH query read failed", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var parsed receptionResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return DocumentStatus{}, dErrors.Wrap(dErrors.CodeUnavailable, "MH query response not JSON", err)
		}
		return DocumentStatus{
			Processed:   strings.EqualFold(parsed.Estado, estadoProcesado),
			Sello:       parsed.SelloRecibido,
			Estado:      parsed.Estado,
			Descripcion: parsed.DescripcionMsg,
		}, nil
	case http.StatusNotFound:
		return DocumentStatus{Estado: "NO_ENCONTRADO"}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.tokens.Invalidate()
		return DocumentStatus{}, dErrors.New(dErrors.CodeUnauthorized, "MH query rejected token")
	default:
		return DocumentStatus{}, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("MH query returned %d", resp.StatusCode))
	}
}
