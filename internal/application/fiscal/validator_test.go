package fiscal_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/application/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del validador de payloads de emisión. La propiedad central: un payload
// inválido reporta TODAS sus violaciones de una vez, no solo la primera.
// ──────────────────────────────────────────────────────────────────────────────

func violatedFields(t *testing.T, err error) map[string]bool {
	t.Helper()
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr, "debe ser un ValidationError")
	fields := make(map[string]bool, len(vErr.Violations))
	for _, v := range vErr.Violations {
		fields[v.Field] = true
	}
	return fields
}

func TestValidateInvoice_PayloadValido(t *testing.T) {
	va := fiscal.NewValidator()

	out, err := va.ValidateInvoice(validRequest("venta-001"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "venta-001", out.SaleID)
	assert.Equal(t, testTenantID, out.TenantID)
}

func TestValidateInvoice_AplicaDefaults(t *testing.T) {
	va := fiscal.NewValidator()

	in := validRequest("venta-002")
	in.DocType = ""         // default "nfe"
	in.Items[0].Unit = "  " // default "un"
	in.Customer.Email = "  Facturacion@Andina.CO "

	out, err := va.ValidateInvoice(in)
	require.NoError(t, err)
	assert.Equal(t, fiscal.DefaultDocType, out.DocType)
	assert.Equal(t, fiscal.DefaultItemUnit, out.Items[0].Unit)
	assert.Equal(t, "facturacion@andina.co", out.Customer.Email)
}

func TestValidateInvoice_NoMutaElOriginal(t *testing.T) {
	va := fiscal.NewValidator()

	in := validRequest("venta-003")
	in.DocType = ""

	_, err := va.ValidateInvoice(in)
	require.NoError(t, err)
	assert.Empty(t, in.DocType, "el request original no debe modificarse")
}

func TestValidateInvoice_AcumulaTodasLasViolaciones(t *testing.T) {
	va := fiscal.NewValidator()

	in := dto.InvoiceRequest{
		SaleID:   "",
		TenantID: "no-es-un-uuid",
		Customer: dto.CustomerPayload{Email: "sin-arroba"},
		Totals:   dto.TotalsPayload{}, // amount cero
	}

	_, err := va.ValidateInvoice(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "debe envolver ErrInvalidInput")

	fields := violatedFields(t, err)
	assert.True(t, fields["sale_id"], "falta sale_id")
	assert.True(t, fields["tenant_id"], "tenant_id malformado")
	assert.True(t, fields["customer.name"], "falta el nombre del receptor")
	assert.True(t, fields["customer.email"], "email malformado")
	assert.True(t, fields["items"], "faltan los items")
	assert.True(t, fields["payments"], "faltan los pagos")
	assert.True(t, fields["totals.amount"], "total en cero")
	assert.GreaterOrEqual(t, len(fields), 7, "todas las violaciones en una sola pasada")
}

func TestValidateInvoice_MontosInvalidos(t *testing.T) {
	va := fiscal.NewValidator()

	in := validRequest("venta-004")
	in.Items[0].Quantity = decimal.Zero
	in.Items = append(in.Items, dto.ItemPayload{
		ID:       "SKU-002",
		Name:     "Azúcar 1kg",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(-5),
	})
	in.Payments[0].Amount = decimal.Zero
	in.Payments[0].DueDate = "31/12/2026"

	_, err := va.ValidateInvoice(in)
	require.Error(t, err)

	fields := violatedFields(t, err)
	assert.True(t, fields["items[0].quantity"], "cantidad en cero")
	assert.True(t, fields["items[1].price"], "precio negativo")
	assert.True(t, fields["payments[0].amount"], "pago en cero")
	assert.True(t, fields["payments[0].due_date"], "fecha fuera de ISO-8601")
}

func TestValidateInvoice_MetodoDePagoNoPermitido(t *testing.T) {
	va := fiscal.NewValidator()

	in := validRequest("venta-005")
	in.Payments[0].Method = "cheque"

	_, err := va.ValidateInvoice(in)
	require.Error(t, err)

	fields := violatedFields(t, err)
	assert.True(t, fields["payments[0].method"])
}
