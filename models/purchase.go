package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Purchase kinds.
const (
	KindPrimary   = "primary"
	KindSecondary = "secondary"
)

// PurchaseRequest is the inbound buy command. Primary purchases target a
// seat within a fixed-price sale; secondary purchases fill a resale listing.
type PurchaseRequest struct {
	Kind             string `json:"kind"` // primary, secondary
	SessionID        string `json:"session_id"`
	BuyerID          string `json:"buyer_id"`
	EventID          string `json:"event_id"`
	ResourceRef      string `json:"resource_ref"` // sale account / listing account
	TicketToken      string `json:"ticket_token"`
	TicketTypeIndex  uint8  `json:"ticket_type_index"`
	RecipientAddress string `json:"recipient_address"`

	// Primary only
	SeatIndex uint32 `json:"seat_index,omitempty"`
	SeatLabel string `json:"seat_label,omitempty"`
}

// Validate checks that the request is a well-formed variant. Every field a
// later pipeline step reads is checked here, so steps never re-validate.
func (r *PurchaseRequest) Validate() error {
	if r.SessionID == "" || r.BuyerID == "" || r.EventID == "" {
		return fmt.Errorf("purchase request: missing session, buyer or event id")
	}
	if r.ResourceRef == "" || r.TicketToken == "" || r.RecipientAddress == "" {
		return fmt.Errorf("purchase request: missing resource ref, token or recipient")
	}
	switch r.Kind {
	case KindPrimary:
		if r.SeatLabel == "" {
			return fmt.Errorf("purchase request: primary purchase requires a seat label")
		}
		return nil
	case KindSecondary:
		return nil
	default:
		return fmt.Errorf("purchase request: unknown kind %q", r.Kind)
	}
}

// ResourceKey is the identifier of the sellable unit, used for both the
// distributed lock and the idempotency marker.
func (r *PurchaseRequest) ResourceKey() string {
	return r.TicketToken
}

// MarkerKey is the idempotency marker cache key for this request.
func (r *PurchaseRequest) MarkerKey() string {
	return fmt.Sprintf("pending:%s:%s", r.EventID, r.TicketToken)
}

// ReservationKey is the ledger account that holds the reservation record.
func (r *PurchaseRequest) ReservationKey() string {
	if r.Kind == KindPrimary {
		return fmt.Sprintf("seat-reservation:%s:%d:%s", r.ResourceRef, r.SeatIndex, r.SeatLabel)
	}
	return fmt.Sprintf("listing-reservation:%s", r.ResourceRef)
}

// DeriveTicketToken computes the ticket token for a seat independently of
// the caller. Tokens are content-addressed, so a request that names a
// higher-tier ticket type than it paid for derives a different token.
func DeriveTicketToken(eventID string, ticketTypeIndex uint8, seatIndex uint32) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%d:%d", eventID, ticketTypeIndex, seatIndex))
	return hex.EncodeToString(h[:])
}

// Result statuses.
const (
	StatusOk  = "ok"
	StatusErr = "err"
)

// PurchaseResult is the outbound outcome for one purchase command, keyed by
// the originating session id. Payload carries the payment-intent client
// secret or the checkout session id when status is ok.
type PurchaseResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"` // ok, err
	Payload   string `json:"payload,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func OkResult(sessionID, payload string) PurchaseResult {
	return PurchaseResult{SessionID: sessionID, Status: StatusOk, Payload: payload}
}

func ErrResult(sessionID, reason string) PurchaseResult {
	return PurchaseResult{SessionID: sessionID, Status: StatusErr, Reason: reason}
}
