package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPrimary() PurchaseRequest {
	return PurchaseRequest{
		Kind:             KindPrimary,
		SessionID:        "session-1",
		BuyerID:          "buyer-1",
		EventID:          "event-1",
		ResourceRef:      "sale-1",
		TicketToken:      "token-1",
		TicketTypeIndex:  2,
		RecipientAddress: "recipient-1",
		SeatIndex:        41,
		SeatLabel:        "C41",
	}
}

func TestPurchaseRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(r *PurchaseRequest)
		wantErr string
	}{
		{name: "valid primary", mod: func(r *PurchaseRequest) {}},
		{
			name: "valid secondary",
			mod: func(r *PurchaseRequest) {
				r.Kind = KindSecondary
				r.SeatIndex = 0
				r.SeatLabel = ""
			},
		},
		{
			name:    "missing session id",
			mod:     func(r *PurchaseRequest) { r.SessionID = "" },
			wantErr: "missing session, buyer or event id",
		},
		{
			name:    "missing buyer id",
			mod:     func(r *PurchaseRequest) { r.BuyerID = "" },
			wantErr: "missing session, buyer or event id",
		},
		{
			name:    "missing ticket token",
			mod:     func(r *PurchaseRequest) { r.TicketToken = "" },
			wantErr: "missing resource ref, token or recipient",
		},
		{
			name:    "missing recipient",
			mod:     func(r *PurchaseRequest) { r.RecipientAddress = "" },
			wantErr: "missing resource ref, token or recipient",
		},
		{
			name:    "primary without seat label",
			mod:     func(r *PurchaseRequest) { r.SeatLabel = "" },
			wantErr: "requires a seat label",
		},
		{
			name:    "unknown kind",
			mod:     func(r *PurchaseRequest) { r.Kind = "auction_bid" },
			wantErr: `unknown kind "auction_bid"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPrimary()
			tt.mod(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPurchaseRequest_Keys(t *testing.T) {
	primary := validPrimary()
	assert.Equal(t, "token-1", primary.ResourceKey())
	assert.Equal(t, "pending:event-1:token-1", primary.MarkerKey())
	assert.Equal(t, "seat-reservation:sale-1:41:C41", primary.ReservationKey())

	secondary := validPrimary()
	secondary.Kind = KindSecondary
	secondary.ResourceRef = "listing-1"
	assert.Equal(t, "listing-reservation:listing-1", secondary.ReservationKey())
}

func TestDeriveTicketToken(t *testing.T) {
	token := DeriveTicketToken("event-1", 2, 41)
	assert.Len(t, token, 64)
	assert.Equal(t, token, DeriveTicketToken("event-1", 2, 41))

	// Any change to the seat coordinates changes the token.
	assert.NotEqual(t, token, DeriveTicketToken("event-2", 2, 41))
	assert.NotEqual(t, token, DeriveTicketToken("event-1", 3, 41))
	assert.NotEqual(t, token, DeriveTicketToken("event-1", 2, 42))
}

func TestResultConstructors(t *testing.T) {
	ok := OkResult("session-1", "pi_secret")
	assert.Equal(t, PurchaseResult{SessionID: "session-1", Status: StatusOk, Payload: "pi_secret"}, ok)

	rejected := ErrResult("session-1", "ResourceUnavailable")
	assert.Equal(t, PurchaseResult{SessionID: "session-1", Status: StatusErr, Reason: "ResourceUnavailable"}, rejected)
}
