package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math"
	"testing"

	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
)

// NewFactura builds a structurally and arithmetically valid factura (type 01)
// for tests: tax-inclusive prices, 13% IVA extracted per line, reconciled
// totals. Tests mutate specific fields to trigger the violation under test.
func NewFactura(lineItems int) *models.Document {
	code := domain.NewGenerationCode()
	doc := &models.Document{
		Identificacion: models.Identification{
			Version:          domain.TypeFactura.SchemaVersion(),
			Ambiente:         domain.EnvTest.AmbienteCode(),
			TipoDte:          domain.TypeFactura,
			NumeroControl:    domain.NewControlNumber(domain.TypeFactura, "M001", "P001", 1),
			CodigoGeneracion: code,
			TipoModelo:       1,
			TipoOperacion:    1,
			FecEmi:           "2026-08-30",
			HorEmi:           "10:15:00",
			TipoMoneda:       "USD",
		},
		Emisor: models.Party{
			NIT:    "0614-290292-102-3",
			NRC:    "123456-7",
			Nombre: "COMERCIAL EJEMPLO S.A. DE C.V.",
			Correo: "facturacion@ejemplo.sv",
		},
		Receptor: models.Party{
			NumDocumento: "02345678-9",
			Nombre:       "CLIENTE DE PRUEBA",
		},
	}

	var totalGravada, totalIVA float64
	for i := 0; i < lineItems; i++ {
		price := 11.30
		qty := float64(i + 1)
		venta := round2(price * qty)
		iva := round2(venta - venta/1.13)
		doc.Cuerpo = append(doc.Cuerpo, models.LineItem{
			NumItem:        i + 1,
			Descripcion:    fmt.Sprintf("Producto %d", i+1),
			Cantidad:       qty,
			PrecioUnitario: price,
			VentaGravada:   venta,
			IVAItem:        iva,
		})
		totalGravada += venta
		totalIVA += iva
	}
	totalGravada = round2(totalGravada)
	totalIVA = round2(totalIVA)

	doc.Resumen = models.Summary{
		TotalGravada:        totalGravada,
		TotalIVA:            totalIVA,
		SubTotal:            totalGravada,
		MontoTotalOperacion: totalGravada,
		TotalPagar:          totalGravada,
		TotalLetras:         "IMPORTE EN LETRAS",
		CondicionOperacion:  1,
	}
	return doc
}

// NewCCF builds a valid comprobante de crédito fiscal (type 03): prices
// exclude IVA, which is added on top of the gravada total.
func NewCCF(lineItems int) *models.Document {
	doc := NewFactura(lineItems)
	doc.Identificacion.TipoDte = domain.TypeCCF
	doc.Identificacion.Version = domain.TypeCCF.SchemaVersion()
	doc.Identificacion.NumeroControl = domain.NewControlNumber(domain.TypeCCF, "M001", "P001", 1)
	doc.Receptor.NRC = "654321-9"
	doc.Receptor.NIT = "0614-010190-001-2"

	var totalGravada, totalIVA float64
	for i := range doc.Cuerpo {
		item := &doc.Cuerpo[i]
		item.VentaGravada = round2(item.PrecioUnitario * item.Cantidad)
		item.IVAItem = round2(item.VentaGravada * 0.13)
		totalGravada += item.VentaGravada
		totalIVA += item.IVAItem
	}
	totalGravada = round2(totalGravada)
	totalIVA = round2(totalIVA)

	doc.Resumen.TotalGravada = totalGravada
	doc.Resumen.TotalIVA = totalIVA
	doc.Resumen.SubTotal = totalGravada
	doc.Resumen.MontoTotalOperacion = round2(totalGravada + totalIVA)
	doc.Resumen.TotalPagar = doc.Resumen.MontoTotalOperacion
	return doc
}

// RSAKey generates a throwaway signing key for tests.
func RSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
