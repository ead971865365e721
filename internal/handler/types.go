package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/invoice"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

// --- Request types ---

type CreateOrderInput struct {
	Body struct {
		FSMLocationID string     `json:"fsmLocationId,omitempty" doc:"Service location of generated field service orders"`
		ExpectedDate  *time.Time `json:"expectedDate,omitempty" doc:"Requested service date"`
		Note          string     `json:"note,omitempty"`
	}
}

type OrderPathInput struct {
	OrderID string `path:"orderId" doc:"Sale order ID"`
}

type LineInput struct {
	ProductID    string  `json:"productId" minLength:"1"`
	Name         string  `json:"name,omitempty" doc:"Defaults to the product name"`
	Sequence     int     `json:"sequence,omitempty"`
	Quantity     float64 `json:"quantity"`
	PriceUnit    float64 `json:"priceUnit,omitempty" doc:"Defaults to the product list price"`
	IsExpense    bool    `json:"isExpense,omitempty"`
	QtyDelivered float64 `json:"qtyDelivered,omitempty" doc:"Only kept for manually delivered lines"`
}

type AddLinesInput struct {
	OrderID string `path:"orderId" doc:"Sale order ID"`
	Body    struct {
		Lines []LineInput `json:"lines" minItems:"1"`
	}
}

type InvoiceLinesInput struct {
	OrderID   string `path:"orderId" doc:"Sale order ID"`
	AccountID string `query:"accountId" doc:"Income account set on every line"`
}

type FSMOrderPathInput struct {
	FSMOrderID string `path:"fsmOrderId" doc:"Field service order ID"`
}

type SetStageInput struct {
	FSMOrderID string `path:"fsmOrderId" doc:"Field service order ID"`
	Body       struct {
		Stage string `json:"stage" minLength:"1" doc:"Stage reference, e.g. fieldservice.fsm_stage_completed"`
	}
}

type MessagesInput struct {
	Model string `query:"model" required:"true" enum:"sale.order,fsm.order"`
	ResID string `query:"resId" required:"true"`
}

// --- Response types ---

type Line struct {
	ID                 string  `json:"id"`
	OrderID            string  `json:"orderId"`
	ProductID          string  `json:"productId"`
	Name               string  `json:"name"`
	Sequence           int     `json:"sequence"`
	Quantity           float64 `json:"quantity"`
	PriceUnit          float64 `json:"priceUnit"`
	IsExpense          bool    `json:"isExpense"`
	QtyDeliveredMethod string  `json:"qtyDeliveredMethod"`
	QtyDelivered       float64 `json:"qtyDelivered"`
	QtyInvoiced        float64 `json:"qtyInvoiced"`
	ProductUpdatable   bool    `json:"productUpdatable"`
	FSMOrderID         string  `json:"fsmOrderId,omitempty"`
}

type Order struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	State         string     `json:"state"`
	CompanyID     string     `json:"companyId"`
	FSMLocationID string     `json:"fsmLocationId,omitempty"`
	ExpectedDate  *time.Time `json:"expectedDate,omitempty"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	Lines         []Line     `json:"lines"`
}

type FSMOrder struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	LocationID         string     `json:"locationId,omitempty"`
	LocationDirections string     `json:"locationDirections,omitempty"`
	RequestEarly       *time.Time `json:"requestEarly,omitempty"`
	ScheduledDateStart *time.Time `json:"scheduledDateStart,omitempty"`
	Description        string     `json:"description,omitempty"`
	TemplateID         string     `json:"templateId,omitempty"`
	Todo               string     `json:"todo,omitempty"`
	CategoryIDs        []string   `json:"categoryIds"`
	ScheduledDuration  float64    `json:"scheduledDuration" doc:"Hours"`
	SaleID             string     `json:"saleId,omitempty"`
	SaleLineID         string     `json:"saleLineId,omitempty"`
	CompanyID          string     `json:"companyId"`
	StageID            string     `json:"stageId"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type InvoiceLine struct {
	Name        string   `json:"name"`
	ProductID   string   `json:"productId"`
	Quantity    float64  `json:"quantity"`
	PriceUnit   float64  `json:"priceUnit"`
	SaleLineIDs []string `json:"saleLineIds"`
	FSMOrderIDs []string `json:"fsmOrderIds"`
	AccountID   string   `json:"accountId,omitempty"`
	Sequence    int      `json:"sequence"`
}

type Message struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	ResID     string    `json:"resId"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

type OrderOutput struct {
	Body Order
}

type LinesOutput struct {
	Body struct {
		Lines []Line `json:"lines"`
	}
}

type FSMOrderOutput struct {
	Body FSMOrder
}

type InvoiceLinesOutput struct {
	Body struct {
		Lines []InvoiceLine `json:"lines"`
	}
}

type MessagesOutput struct {
	Body struct {
		Messages []Message `json:"messages"`
	}
}

// --- Conversions ---

func toLine(l *sale.Line) Line {
	return Line{
		ID:                 l.ID,
		OrderID:            l.OrderID,
		ProductID:          l.ProductID,
		Name:               l.Name,
		Sequence:           l.Sequence,
		Quantity:           l.Quantity.InexactFloat64(),
		PriceUnit:          l.PriceUnit.InexactFloat64(),
		IsExpense:          l.IsExpense,
		QtyDeliveredMethod: string(l.QtyDeliveredMethod),
		QtyDelivered:       l.QtyDelivered.InexactFloat64(),
		QtyInvoiced:        l.QtyInvoiced.InexactFloat64(),
		ProductUpdatable:   l.ProductUpdatable,
		FSMOrderID:         l.FSMOrderID,
	}
}

func toLines(lines []*sale.Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = toLine(l)
	}
	return out
}

func toOrder(o *sale.Order, lines []*sale.Line) Order {
	return Order{
		ID:            o.ID,
		Name:          o.Name,
		State:         string(o.State),
		CompanyID:     o.CompanyID,
		FSMLocationID: o.FSMLocationID,
		ExpectedDate:  o.ExpectedDate,
		Note:          o.Note,
		CreatedAt:     o.CreatedAt,
		Lines:         toLines(lines),
	}
}

func toFSMOrder(o *fsm.Order) FSMOrder {
	categories := o.CategoryIDs
	if categories == nil {
		categories = []string{}
	}
	return FSMOrder{
		ID:                 o.ID,
		Name:               o.Name,
		LocationID:         o.LocationID,
		LocationDirections: o.LocationDirections,
		RequestEarly:       o.RequestEarly,
		ScheduledDateStart: o.ScheduledDateStart,
		Description:        o.Description,
		TemplateID:         o.TemplateID,
		Todo:               o.Todo,
		CategoryIDs:        categories,
		ScheduledDuration:  o.ScheduledDuration.InexactFloat64(),
		SaleID:             o.SaleID,
		SaleLineID:         o.SaleLineID,
		CompanyID:          o.CompanyID,
		StageID:            o.StageID,
		CreatedAt:          o.CreatedAt,
	}
}

func toInvoiceLine(v invoice.LineValues) InvoiceLine {
	fsmOrders := v.FSMOrderIDs
	if fsmOrders == nil {
		fsmOrders = []string{}
	}
	return InvoiceLine{
		Name:        v.Name,
		ProductID:   v.ProductID,
		Quantity:    v.Quantity.InexactFloat64(),
		PriceUnit:   v.PriceUnit.InexactFloat64(),
		SaleLineIDs: v.SaleLineIDs,
		FSMOrderIDs: fsmOrders,
		AccountID:   v.AccountID,
		Sequence:    v.Sequence,
	}
}

func toMessage(m message.Message) Message {
	return Message{
		ID:        m.ID,
		Model:     m.Model,
		ResID:     m.ResID,
		Body:      m.Body,
		AuthorID:  m.AuthorID,
		CreatedAt: m.CreatedAt,
	}
}

func toLineValues(in []LineInput) []sale.LineValues {
	out := make([]sale.LineValues, len(in))
	for i, l := range in {
		out[i] = sale.LineValues{
			ProductID:    l.ProductID,
			Name:         l.Name,
			Sequence:     l.Sequence,
			Quantity:     decimal.NewFromFloat(l.Quantity),
			PriceUnit:    decimal.NewFromFloat(l.PriceUnit),
			IsExpense:    l.IsExpense,
			QtyDelivered: decimal.NewFromFloat(l.QtyDelivered),
		}
	}
	return out
}
