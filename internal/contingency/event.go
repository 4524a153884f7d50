package contingency

import (
	"time"

	"facturasv/internal/mh"
	"facturasv/pkg/domain"
)

// eventVersion is the MH contingency event schema version.
const eventVersion = 3

// Contingency type catalog codes from the MH. The reason recorded at enqueue
// time picks the code; anything unrecognized falls back to "otro", which the
// MH requires a free-text motive for (we always send one).
const (
	contingencyMHUnavailable = 1
	contingencyNoInternet    = 4
	contingencyOther         = 5
)

type eventIdentification struct {
	Version          int    `json:"version"`
	Ambiente         string `json:"ambiente"`
	CodigoGeneracion string `json:"codigoGeneracion"`
	FTransmision     string `json:"fTransmision"`
	HTransmision     string `json:"hTransmision"`
}

type eventEmisor struct {
	NIT string `json:"nit"`
}

type eventDetail struct {
	NoItem           int    `json:"noItem"`
	CodigoGeneracion string `json:"codigoGeneracion"`
	TipoDoc          string `json:"tipoDoc"`
}

type eventMotivo struct {
	FInicio            string `json:"fInicio"`
	HInicio            string `json:"hInicio"`
	FFin               string `json:"fFin"`
	HFin               string `json:"hFin"`
	TipoContingencia   int    `json:"tipoContingencia"`
	MotivoContingencia string `json:"motivoContingencia"`
}

// eventReport is the document the MH expects on /fesv/contingencia: the
// outage window plus every DTE issued inside it.
type eventReport struct {
	Identificacion eventIdentification `json:"identificacion"`
	Emisor         eventEmisor         `json:"emisor"`
	DetalleDTE     []eventDetail       `json:"detalleDte"`
	Motivo         eventMotivo         `json:"motivo"`
}

func contingencyType(reason string) (int, string) {
	switch reason {
	case string(mh.CauseMaintenance):
		return contingencyMHUnavailable, "no disponibilidad de sistema del MH"
	case string(mh.CauseConnectionFailed):
		return contingencyNoInternet, "falla de conexion a internet del emisor"
	default:
		return contingencyOther, "agotados los reintentos de transmision"
	}
}

// buildEventReport assembles the signed-report payload for a closed window.
// Entry types come from the queue snapshot because the window itself only
// tracks identifiers.
func buildEventReport(w *Window, entries []Entry, env domain.Environment, now time.Time) eventReport {
	tipo, motivo := contingencyType(w.Reason)

	types := make(map[domain.GenerationCode]domain.DocumentType, len(entries))
	for _, e := range entries {
		types[e.DocumentID] = e.Type
	}

	detalle := make([]eventDetail, 0, len(w.Documents))
	for i, id := range w.Documents {
		detalle = append(detalle, eventDetail{
			NoItem:           i + 1,
			CodigoGeneracion: string(id),
			TipoDoc:          types[id].String(),
		})
	}

	end := w.ClosedAt
	if end.IsZero() {
		end = now
	}

	return eventReport{
		Identificacion: eventIdentification{
			Version:          eventVersion,
			Ambiente:         env.AmbienteCode(),
			CodigoGeneracion: string(domain.NewGenerationCode()),
			FTransmision:     now.Format(time.DateOnly),
			HTransmision:     now.Format(time.TimeOnly),
		},
		Emisor:     eventEmisor{NIT: w.TaxpayerNIT},
		DetalleDTE: detalle,
		Motivo: eventMotivo{
			FInicio:            w.OpenedAt.Format(time.DateOnly),
			HInicio:            w.OpenedAt.Format(time.TimeOnly),
			FFin:               end.Format(time.DateOnly),
			HFin:               end.Format(time.TimeOnly),
			TipoContingencia:   tipo,
			MotivoContingencia: motivo,
		},
	}
}
