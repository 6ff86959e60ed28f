package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/pkg/config"
)

var _ Submitter = (*Client)(nil)

// Client implementación REST del puerto Submitter usando resty.
// Una instancia por proceso; las llamadas son seguras para uso concurrente.
type Client struct {
	http *resty.Client
	cfg  config.FiscalConfig
}

// NewClient construye el cliente con baseUrl, api key y timeout de la config.
func NewClient(cfg config.FiscalConfig) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.TimeoutDuration()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Token "+cfg.APIKey)
	return &Client{http: rc, cfg: cfg}
}

// Submit envía el documento al gateway. POST /v1/documents.
func (c *Client) Submit(ctx context.Context, ref string, payload *dto.InvoiceRequest) (*SubmitResult, error) {
	if !c.cfg.Enabled {
		return nil, domain.ErrProviderDisabled
	}

	body := buildWireInvoice(ref, c.cfg.Environment, payload)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1/documents")
	if err != nil {
		// Red o timeout: fallo transitorio, sin reintento interno.
		return nil, fmt.Errorf("%w: submit %s: %v", domain.ErrProviderUnavailable, ref, err)
	}

	raw := append(json.RawMessage(nil), resp.Body()...)

	if resp.StatusCode() >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: submit %s: HTTP %d", domain.ErrProviderUnavailable, ref, resp.StatusCode())
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, fmt.Errorf("%w: submit %s: respuesta ilegible: %v", domain.ErrProviderUnavailable, ref, err)
	}

	// 4xx con cuerpo parseable = rechazo de negocio del gateway, no transitorio.
	status := wr.Status
	if resp.StatusCode() >= http.StatusBadRequest && status == "" {
		status = StatusRejected
	}
	switch status {
	case StatusProcessing, StatusAuthorized, StatusRejected:
	default:
		return nil, fmt.Errorf("%w: submit %s: estado desconocido %q", domain.ErrProviderUnavailable, ref, wr.Status)
	}

	return &SubmitResult{
		Protocol:    wr.Protocol,
		Status:      status,
		Motive:      firstNonEmpty(wr.Motive, wr.Message),
		ReceiptURL:  wr.ReceiptURL,
		XMLURL:      wr.XMLURL,
		RawResponse: raw,
	}, nil
}

// CheckStatus consulta el estado por protocolo. GET /v1/documents/{protocol}.
func (c *Client) CheckStatus(ctx context.Context, protocol string) (*StatusResult, error) {
	if !c.cfg.Enabled {
		return nil, domain.ErrProviderDisabled
	}
	if protocol == "" {
		return nil, fmt.Errorf("check status: protocolo vacío")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("environment", c.cfg.Environment).
		Get("/v1/documents/" + protocol)
	if err != nil {
		return nil, fmt.Errorf("%w: check status %s: %v", domain.ErrProviderUnavailable, protocol, err)
	}

	raw := append(json.RawMessage(nil), resp.Body()...)

	if resp.StatusCode() >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: check status %s: HTTP %d", domain.ErrProviderUnavailable, protocol, resp.StatusCode())
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("check status %s: %w", protocol, domain.ErrNotFound)
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, fmt.Errorf("%w: check status %s: respuesta ilegible: %v", domain.ErrProviderUnavailable, protocol, err)
	}

	switch wr.Status {
	case StatusProcessing, StatusAuthorized, StatusRejected, StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: check status %s: estado desconocido %q", domain.ErrProviderUnavailable, protocol, wr.Status)
	}

	var authorizedAt *time.Time
	if wr.AuthorizedAt != "" {
		if ts, err := time.Parse(time.RFC3339, wr.AuthorizedAt); err == nil {
			authorizedAt = &ts
		}
	}

	return &StatusResult{
		Status:       wr.Status,
		Motive:       firstNonEmpty(wr.Motive, wr.Message),
		AuthorizedAt: authorizedAt,
		ReceiptURL:   wr.ReceiptURL,
		XMLURL:       wr.XMLURL,
		RawResponse:  raw,
	}, nil
}

// buildWireInvoice traduce el request normalizado al contrato del gateway:
// montos con dos decimales, environment explícito.
func buildWireInvoice(ref, environment string, in *dto.InvoiceRequest) *wireInvoice {
	w := &wireInvoice{
		Ref:         ref,
		DocType:     in.DocType,
		Environment: environment,
		Customer: wireCustomer{
			Name:        in.Customer.Name,
			TaxDocument: in.Customer.TaxDocument,
			Email:       in.Customer.Email,
			Phone:       in.Customer.Phone,
			Street:      in.Customer.Address.Street,
			Number:      in.Customer.Address.Number,
			District:    in.Customer.Address.District,
			City:        in.Customer.Address.City,
			State:       in.Customer.Address.State,
			ZipCode:     in.Customer.Address.ZipCode,
		},
		Totals: wireTotals{
			Amount:    money(in.Totals.Amount),
			Discount:  moneyOmitZero(in.Totals.Discount),
			Freight:   moneyOmitZero(in.Totals.Freight),
			Insurance: moneyOmitZero(in.Totals.Insurance),
			Other:     moneyOmitZero(in.Totals.Other),
		},
		Metadata: in.Metadata,
	}
	for _, item := range in.Items {
		w.Items = append(w.Items, wireItem{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity.StringFixed(2),
			Unit:     item.Unit,
			Price:    money(item.Price),
			Discount: moneyOmitZero(item.Discount),
			TaxCode:  item.TaxCode,
		})
	}
	for _, p := range in.Payments {
		w.Payments = append(w.Payments, wirePayment{
			Method:  p.Method,
			Amount:  money(p.Amount),
			DueDate: p.DueDate,
		})
	}
	return w
}

func money(d decimal.Decimal) string { return d.Round(2).StringFixed(2) }

func moneyOmitZero(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return money(d)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
