package models

import "time"

// Sale types for ticket types and listings.
const (
	SaleTypeFixedPrice = "fixed_price"
	SaleTypeAuction    = "auction"
)

// TicketType is one sellable tier of an event's primary sale. Price is
// stored in 6-decimal fixed point of the settlement currency.
type TicketType struct {
	EventID  string `json:"event_id"`
	Index    uint8  `json:"index"`
	SaleType string `json:"sale_type"`
	Price    int64  `json:"price"`
}

// Listing is a resale listing on the secondary market. AskPrice uses the
// same 6-decimal fixed point as TicketType.Price.
type Listing struct {
	Ref         string `json:"ref"`
	EventID     string `json:"event_id"`
	TicketToken string `json:"ticket_token"`
	SaleType    string `json:"sale_type"`
	AskPrice    int64  `json:"ask_price"`
}

// Account is a buyer account as stored in the data store.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GatewayCustomer maps a buyer account to its payment-gateway customer.
type GatewayCustomer struct {
	AccountID  string    `json:"account_id"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrganizerAccount is the event organizer's connected gateway account that
// receives the purchase funds.
type OrganizerAccount struct {
	EventID   string `json:"event_id"`
	AccountID string `json:"account_id"`
}
