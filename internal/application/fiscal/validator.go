package fiscal

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// Valores por defecto aplicados durante la normalización.
const (
	DefaultDocType  = "nfe"
	DefaultItemUnit = "un"
)

// Validator normaliza y valida el InvoiceRequest entrante. Es una función pura
// sobre el payload: sin efectos laterales, y acumula TODAS las violaciones en
// lugar de cortar en la primera.
type Validator struct {
	v *validator.Validate
}

// NewValidator construye el validador con nombres de campo tomados del tag json.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// ValidateInvoice devuelve una copia normalizada del request o un
// *domain.ValidationError con cada campo violado. No toca el original.
func (va *Validator) ValidateInvoice(in dto.InvoiceRequest) (*dto.InvoiceRequest, error) {
	normalize(&in)

	var violations []domain.FieldViolation

	// Reglas estructurales vía tags (required, min, email, uuid, oneof, dive).
	if err := va.v.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validar payload: %w", err)
		}
		for _, fe := range fieldErrs {
			violations = append(violations, domain.FieldViolation{
				Field:   fieldPath(fe),
				Message: messageFor(fe),
			})
		}
	}

	// Reglas numéricas sobre decimal (el validador de tags no las conoce).
	for i, item := range in.Items {
		if !item.Quantity.GreaterThan(decimal.Zero) {
			violations = append(violations, domain.FieldViolation{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "debe ser mayor que cero",
			})
		}
		if item.Price.LessThan(decimal.Zero) {
			violations = append(violations, domain.FieldViolation{
				Field:   fmt.Sprintf("items[%d].price", i),
				Message: "no puede ser negativo",
			})
		}
	}
	if !in.Totals.Amount.GreaterThan(decimal.Zero) {
		violations = append(violations, domain.FieldViolation{
			Field:   "totals.amount",
			Message: "debe ser mayor que cero",
		})
	}
	for i, p := range in.Payments {
		if !p.Amount.GreaterThan(decimal.Zero) {
			violations = append(violations, domain.FieldViolation{
				Field:   fmt.Sprintf("payments[%d].amount", i),
				Message: "debe ser mayor que cero",
			})
		}
		if p.DueDate != "" {
			if _, err := time.Parse("2006-01-02", p.DueDate); err != nil {
				violations = append(violations, domain.FieldViolation{
					Field:   fmt.Sprintf("payments[%d].due_date", i),
					Message: "fecha inválida (usar YYYY-MM-DD)",
				})
			}
		}
	}

	if len(violations) > 0 {
		return nil, &domain.ValidationError{Violations: violations}
	}
	return &in, nil
}

// normalize recorta espacios, aplica defaults y canoniza el email.
func normalize(in *dto.InvoiceRequest) {
	in.SaleID = strings.TrimSpace(in.SaleID)
	in.TenantID = strings.ToLower(strings.TrimSpace(in.TenantID))
	in.DocType = strings.ToLower(strings.TrimSpace(in.DocType))
	if in.DocType == "" {
		in.DocType = DefaultDocType
	}
	in.Customer.Name = strings.TrimSpace(in.Customer.Name)
	in.Customer.TaxDocument = strings.TrimSpace(in.Customer.TaxDocument)
	in.Customer.Email = strings.ToLower(strings.TrimSpace(in.Customer.Email))
	in.Customer.Phone = strings.TrimSpace(in.Customer.Phone)
	for i := range in.Items {
		in.Items[i].ID = strings.TrimSpace(in.Items[i].ID)
		in.Items[i].Name = strings.TrimSpace(in.Items[i].Name)
		in.Items[i].Unit = strings.TrimSpace(in.Items[i].Unit)
		if in.Items[i].Unit == "" {
			in.Items[i].Unit = DefaultItemUnit
		}
	}
	for i := range in.Payments {
		in.Payments[i].Method = strings.ToLower(strings.TrimSpace(in.Payments[i].Method))
		in.Payments[i].DueDate = strings.TrimSpace(in.Payments[i].DueDate)
	}
}

// fieldPath convierte el Namespace del validador ("InvoiceRequest.customer.email")
// en la ruta relativa del campo ("customer.email").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es obligatorio"
	case "min":
		return "no puede estar vacío"
	case "email":
		return "email malformado"
	case "uuid":
		return "identificador mal formado"
	case "oneof":
		return "valor no permitido"
	default:
		return "inválido (" + fe.Tag() + ")"
	}
}
