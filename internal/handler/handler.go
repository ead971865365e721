// Package handler exposes the sale and field service use cases over a typed
// REST API.
package handler

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

// APIKeyScheme is the name of the API key security scheme.
const APIKeyScheme = "apiKey"

var secured = []map[string][]string{{APIKeyScheme: {}}}

// Handler serves the REST operations, delegating business logic to the sale
// service.
type Handler struct {
	svc *sale.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(svc *sale.Service) *Handler {
	return &Handler{svc: svc}
}

// Config returns the API configuration with the API key scheme declared.
func Config(title, version string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	if cfg.Components.SecuritySchemes == nil {
		cfg.Components.SecuritySchemes = make(map[string]*huma.SecurityScheme)
	}
	cfg.Components.SecuritySchemes[APIKeyScheme] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: APIKeyHeader,
	}
	return cfg
}

// Register registers every operation on api.
func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "order-create",
		Summary:       "Create a sale order",
		Method:        http.MethodPost,
		Path:          "/api/orders",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Orders"},
		Security:      secured,
	}, h.CreateOrder)

	huma.Register(api, huma.Operation{
		OperationID: "order-get",
		Summary:     "Get a sale order with its lines",
		Method:      http.MethodGet,
		Path:        "/api/orders/{orderId}",
		Tags:        []string{"Orders"},
		Security:    secured,
	}, h.GetOrder)

	huma.Register(api, huma.Operation{
		OperationID:   "order-add-lines",
		Summary:       "Add lines to a sale order",
		Description:   "Lines added to a confirmed order generate their field service orders immediately.",
		Method:        http.MethodPost,
		Path:          "/api/orders/{orderId}/lines",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Orders"},
		Security:      secured,
	}, h.AddLines)

	huma.Register(api, huma.Operation{
		OperationID: "order-confirm",
		Summary:     "Confirm a sale order",
		Method:      http.MethodPost,
		Path:        "/api/orders/{orderId}/confirm",
		Tags:        []string{"Orders"},
		Security:    secured,
	}, h.ConfirmOrder)

	huma.Register(api, huma.Operation{
		OperationID: "order-cancel",
		Summary:     "Cancel a sale order",
		Method:      http.MethodPost,
		Path:        "/api/orders/{orderId}/cancel",
		Tags:        []string{"Orders"},
		Security:    secured,
	}, h.CancelOrder)

	huma.Register(api, huma.Operation{
		OperationID: "order-draft",
		Summary:     "Reset a cancelled sale order to draft",
		Method:      http.MethodPost,
		Path:        "/api/orders/{orderId}/draft",
		Tags:        []string{"Orders"},
		Security:    secured,
	}, h.ResetToDraft)

	huma.Register(api, huma.Operation{
		OperationID: "order-invoice-lines",
		Summary:     "Prepare the invoice lines of a sale order",
		Method:      http.MethodGet,
		Path:        "/api/orders/{orderId}/invoice-lines",
		Tags:        []string{"Invoicing"},
		Security:    secured,
	}, h.InvoiceLines)

	huma.Register(api, huma.Operation{
		OperationID: "fsm-order-get",
		Summary:     "Get a field service order",
		Method:      http.MethodGet,
		Path:        "/api/fsm-orders/{fsmOrderId}",
		Tags:        []string{"Field Service"},
		Security:    secured,
	}, h.GetFSMOrder)

	huma.Register(api, huma.Operation{
		OperationID: "fsm-order-stage",
		Summary:     "Move a field service order to another stage",
		Method:      http.MethodPost,
		Path:        "/api/fsm-orders/{fsmOrderId}/stage",
		Tags:        []string{"Field Service"},
		Security:    secured,
	}, h.SetFSMOrderStage)

	huma.Register(api, huma.Operation{
		OperationID: "message-list",
		Summary:     "List the notes posted on a record",
		Method:      http.MethodGet,
		Path:        "/api/messages",
		Tags:        []string{"Messages"},
		Security:    secured,
	}, h.Messages)
}
