package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind distinguishes budgets (quotes) from submitted sales orders.
type OrderKind string

const (
	KindBudget OrderKind = "BUDGET"
	KindOrder  OrderKind = "ORDER"
)

// OrderStatus is the lifecycle position of an order or budget.
type OrderStatus int

const (
	StatusQuote        OrderStatus = 1
	StatusProposalSent OrderStatus = 2
	StatusRejected     OrderStatus = 3
	StatusAccepted     OrderStatus = 4
	StatusApproved     OrderStatus = 5
	StatusInProduction OrderStatus = 6
	StatusInvoiced     OrderStatus = 7
	StatusDispatched   OrderStatus = 8
	StatusCompleted    OrderStatus = 9
	StatusCancelled    OrderStatus = 10
)

var statusNames = map[OrderStatus]string{
	StatusQuote:        "QUOTE",
	StatusProposalSent: "PROPOSAL_SENT",
	StatusRejected:     "REJECTED",
	StatusAccepted:     "ACCEPTED",
	StatusApproved:     "APPROVED",
	StatusInProduction: "IN_PRODUCTION",
	StatusInvoiced:     "INVOICED",
	StatusDispatched:   "DISPATCHED",
	StatusCompleted:    "COMPLETED",
	StatusCancelled:    "CANCELLED",
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions is the server-side state machine. A transition absent from
// this table is rejected regardless of what the caller asked for.
var transitions = map[OrderStatus][]OrderStatus{
	StatusQuote:        {StatusProposalSent, StatusCancelled},
	StatusProposalSent: {StatusRejected, StatusAccepted, StatusCancelled},
	StatusRejected:     {StatusProposalSent, StatusCancelled},
	StatusAccepted:     {StatusApproved, StatusCancelled},
	StatusApproved:     {StatusInProduction, StatusCancelled},
	StatusInProduction: {StatusInvoiced, StatusCancelled},
	StatusInvoiced:     {StatusDispatched, StatusCancelled},
	StatusDispatched:   {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address is a Brazilian postal address.
type Address struct {
	CEP          string `db:"cep" json:"cep"`
	Street       string `db:"street" json:"street"`
	Number       string `db:"number" json:"number"`
	Complement   string `db:"complement" json:"complement,omitempty"`
	Neighborhood string `db:"neighborhood" json:"neighborhood"`
	City         string `db:"city" json:"city"`
	State        string `db:"state" json:"state"`
}

// Order represents a budget or a submitted sales order.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	Kind            OrderKind       `db:"kind" json:"kind"`
	ClientID        int64           `db:"client_id" json:"client_id"`
	Status          OrderStatus     `db:"status" json:"status"`
	TotalValue      decimal.Decimal `db:"total_value" json:"total_value"`
	ProposalDetails string          `db:"proposal_details" json:"proposal_details,omitempty"`
	ERPCode         string          `db:"erp_code" json:"erp_code,omitempty"`
	Installments    int             `db:"installments" json:"installments,omitempty"`
	ImageURLs       []string        `db:"-" json:"image_urls"`
	Items           []LineItem      `db:"-" json:"items"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	DeliveryAddress Address `json:"delivery_address"`
	BillingAddress  Address `json:"billing_address"`
}

// LineItem is a product line owned by its parent order.
type LineItem struct {
	ID                int64           `db:"id" json:"id"`
	OrderID           int64           `db:"order_id" json:"order_id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	Name              string          `db:"name" json:"name"`
	Quantity          int             `db:"quantity" json:"quantity"`
	GrossUnitPrice    decimal.Decimal `db:"gross_unit_price" json:"gross_unit_price"`
	NetUnitPrice      decimal.Decimal `db:"net_unit_price" json:"net_unit_price"`
	SelectedVariation string          `db:"selected_variation" json:"selected_variation,omitempty"`
}

// LineTotal is quantity times the net unit price.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.NetUnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderImage is a stored object attached to an order. ObjectName is the
// storage key (needed for the cancellation cascade), URL is what clients
// see.
type OrderImage struct {
	ID         int64  `db:"id" json:"id"`
	OrderID    int64  `db:"order_id" json:"order_id"`
	ObjectName string `db:"object_name" json:"object_name"`
	URL        string `db:"url" json:"url"`
}

// Client is an independently owned entity referenced by orders by id.
type Client struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	Document    string    `db:"document" json:"document"`
	Phone       string    `db:"phone" json:"phone"`
	Address     Address   `json:"address"`
	PriceListID int64     `db:"price_list_id" json:"price_list_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PriceList holds per-client product pricing.
type PriceList struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Items     []PriceListItem `db:"-" json:"items"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// PriceListItem is one priced product inside a price list.
type PriceListItem struct {
	ID          int64           `db:"id" json:"id"`
	PriceListID int64           `db:"price_list_id" json:"price_list_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
}
