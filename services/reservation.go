package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fiat-checkout/internal/status"
	"fiat-checkout/ledger"
	"fiat-checkout/monitoring"
	"fiat-checkout/utils"
)

// LedgerClient is the narrow view of the ledger RPC the reservation flow
// needs.
type LedgerClient interface {
	GetReservation(ctx context.Context, key string) (*ledger.Reservation, error)
	CurrentSlot(ctx context.Context) (uint64, error)
	SubmitReservation(ctx context.Context, params ledger.ReserveParams) (string, error)
}

// ReservationService places time-bounded reservations on the ledger. A
// reservation that already exists is handled by comparing its expiry slot
// and recipient:
//   - missing or expired: a new reservation transaction is submitted
//   - live, same recipient: no-op success (the hold already protects this
//     purchase flow)
//   - live, different recipient: the resource is taken and the purchase is
//     rejected; a live hold is never overwritten
type ReservationService struct {
	ledger   LedgerClient
	slotTime time.Duration
	retry    utils.RetryPolicy
	logger   *slog.Logger
}

func NewReservationService(ledgerClient LedgerClient, slotTime time.Duration, retry utils.RetryPolicy, logger *slog.Logger) *ReservationService {
	if retry.Retryable == nil {
		// Business rejections are facts, not flakes.
		retry.Retryable = func(err error) bool { return !status.IsSoft(err) }
	}
	return &ReservationService{
		ledger:   ledgerClient,
		slotTime: slotTime,
		retry:    retry,
		logger:   logger,
	}
}

// Reserve holds key for recipient for the given window, retrying transient
// ledger failures under the service's policy.
func (s *ReservationService) Reserve(ctx context.Context, key, recipient string, window time.Duration) error {
	attempt := 0
	return utils.Retry(ctx, s.retry, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			monitoring.TrackReservationRetry()
		}
		return s.reserveOnce(ctx, key, recipient, window)
	})
}

func (s *ReservationService) reserveOnce(ctx context.Context, key, recipient string, window time.Duration) error {
	res, err := s.ledger.GetReservation(ctx, key)
	if errors.Is(err, status.ErrNotFound) {
		return s.submit(ctx, key, recipient, window)
	}
	if err != nil {
		return fmt.Errorf("read reservation %s: %w", key, err)
	}

	slot, err := s.ledger.CurrentSlot(ctx)
	if err != nil {
		return fmt.Errorf("read current slot: %w", err)
	}

	if slot > res.ValidUntil {
		// Expired holds are equivalent to no hold.
		return s.submit(ctx, key, recipient, window)
	}

	if res.Recipient == recipient {
		s.logger.Debug("reservation already live for recipient", "key", key, "valid_until", res.ValidUntil)
		return nil
	}

	return fmt.Errorf("reservation %s held by another recipient until slot %d: %w",
		key, res.ValidUntil, status.ErrResourceUnavailable)
}

func (s *ReservationService) submit(ctx context.Context, key, recipient string, window time.Duration) error {
	txHash, err := s.ledger.SubmitReservation(ctx, ledger.ReserveParams{
		Key:           key,
		Recipient:     recipient,
		DurationSlots: s.windowSlots(window),
	})
	if err != nil {
		return fmt.Errorf("submit reservation %s: %w", key, err)
	}

	s.logger.Info("reserved resource", "key", key, "recipient", recipient, "tx", txHash)
	return nil
}

func (s *ReservationService) windowSlots(window time.Duration) uint64 {
	return uint64(window.Milliseconds() / s.slotTime.Milliseconds())
}
