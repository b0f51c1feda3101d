package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiat-checkout/internal/status"
	"fiat-checkout/ledger"
	"fiat-checkout/utils"
)

type fakeLedger struct {
	reservation *ledger.Reservation
	readErr     error
	slot        uint64
	slotErr     error
	submitErr   error

	readCalls   int
	slotCalls   int
	submitCalls int
	submitted   []ledger.ReserveParams
}

func (f *fakeLedger) GetReservation(ctx context.Context, key string) (*ledger.Reservation, error) {
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.reservation, nil
}

func (f *fakeLedger) CurrentSlot(ctx context.Context) (uint64, error) {
	f.slotCalls++
	return f.slot, f.slotErr
}

func (f *fakeLedger) SubmitReservation(ctx context.Context, params ledger.ReserveParams) (string, error) {
	f.submitCalls++
	f.submitted = append(f.submitted, params)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "tx-hash", nil
}

func newTestReservationService(l *fakeLedger, policy utils.RetryPolicy) *ReservationService {
	return NewReservationService(l, 600*time.Millisecond, policy, slog.Default())
}

func TestReservationService_Reserve_NotFoundWritesOnce(t *testing.T) {
	l := &fakeLedger{readErr: status.ErrNotFound}
	svc := newTestReservationService(l, utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := svc.Reserve(context.Background(), "seat-reservation:sale-1:7:A7", "recipient-1", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, l.submitCalls)
	require.Len(t, l.submitted, 1)
	assert.Equal(t, "recipient-1", l.submitted[0].Recipient)
	// 10 minutes at 600ms per slot
	assert.Equal(t, uint64(1000), l.submitted[0].DurationSlots)
}

func TestReservationService_Reserve_ExpiredWritesOnce(t *testing.T) {
	l := &fakeLedger{
		reservation: &ledger.Reservation{Key: "k", ValidUntil: 500, Recipient: "someone-else"},
		slot:        501,
	}
	svc := newTestReservationService(l, utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := svc.Reserve(context.Background(), "k", "recipient-1", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, l.submitCalls)
}

func TestReservationService_Reserve_LiveSameRecipientSkipsWrite(t *testing.T) {
	l := &fakeLedger{
		reservation: &ledger.Reservation{Key: "k", ValidUntil: 1000, Recipient: "recipient-1"},
		slot:        900,
	}
	svc := newTestReservationService(l, utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := svc.Reserve(context.Background(), "k", "recipient-1", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, l.submitCalls)
}

func TestReservationService_Reserve_LiveOtherRecipientRejected(t *testing.T) {
	l := &fakeLedger{
		reservation: &ledger.Reservation{Key: "k", ValidUntil: 1000, Recipient: "recipient-2"},
		slot:        900,
	}
	svc := newTestReservationService(l, utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := svc.Reserve(context.Background(), "k", "recipient-1", 10*time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrResourceUnavailable)

	// The rejection is a fact, not a flake: no retry, no write.
	assert.Equal(t, 1, l.readCalls)
	assert.Equal(t, 0, l.submitCalls)
}

func TestReservationService_Reserve_TransientErrorRetried(t *testing.T) {
	l := &fakeLedger{readErr: errors.New("connection refused")}
	svc := newTestReservationService(l, utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := svc.Reserve(context.Background(), "k", "recipient-1", 10*time.Minute)
	require.Error(t, err)
	assert.Equal(t, 3, l.readCalls)
}

func TestReservationService_Reserve_SubmitFailureExhaustsRetries(t *testing.T) {
	l := &fakeLedger{readErr: status.ErrNotFound, submitErr: errors.New("node unavailable")}
	svc := newTestReservationService(l, utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := svc.Reserve(context.Background(), "k", "recipient-1", 10*time.Minute)
	require.Error(t, err)
	assert.Equal(t, 3, l.submitCalls)
}
