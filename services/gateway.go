package services

import (
	"context"
	"strconv"
	"time"

	"fiat-checkout/models"
)

// IntentParams carries everything one gateway charge needs. Metadata must
// be rich enough for the asynchronous confirmation webhook to reconstruct
// the purchase without re-reading the originating command.
type IntentParams struct {
	Amount             int64
	Fee                int64
	CustomerID         string
	DestinationAccount string
	ReceiptEmail       string
	Description        string
	Window             time.Duration
	Metadata           map[string]string
}

// Gateway is the common interface all payment-gateway providers implement.
type Gateway interface {
	// FindOrCreateCustomer resolves the buyer's gateway-side customer,
	// creating one on first purchase. Safe to race: concurrent first-time
	// purchases may create duplicate customers and the mapping is
	// last-writer-wins.
	FindOrCreateCustomer(ctx context.Context, account models.Account) (string, error)

	// CreatePaymentIntent creates a payment intent and returns its client
	// secret.
	CreatePaymentIntent(ctx context.Context, params IntentParams) (string, error)

	// CreateCheckoutSession creates a hosted checkout session and returns
	// its id.
	CreateCheckoutSession(ctx context.Context, params IntentParams) (string, error)
}

// PurchaseMetadata builds the gateway metadata for one purchase command.
func PurchaseMetadata(req *models.PurchaseRequest) map[string]string {
	md := map[string]string{
		"sale_type":         req.Kind,
		"session_id":        req.SessionID,
		"buyer_id":          req.BuyerID,
		"event_id":          req.EventID,
		"resource_ref":      req.ResourceRef,
		"ticket_token":      req.TicketToken,
		"ticket_type_index": strconv.FormatUint(uint64(req.TicketTypeIndex), 10),
		"recipient":         req.RecipientAddress,
	}
	if req.Kind == models.KindPrimary {
		md["seat_index"] = strconv.FormatUint(uint64(req.SeatIndex), 10)
		md["seat_label"] = req.SeatLabel
	}
	return md
}
