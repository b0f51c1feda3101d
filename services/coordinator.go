package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fiat-checkout/internal/status"
	"fiat-checkout/models"
	"fiat-checkout/monitoring"
)

// Mode selects what the gateway step produces.
type Mode string

const (
	ModePaymentIntent   Mode = "payment_intent"
	ModeCheckoutSession Mode = "checkout_session"
)

// Locker hands out per-resource distributed mutexes. The returned release
// function must be safe to call after the pipeline context is cancelled.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Reserver places the on-ledger reservation for a resource.
type Reserver interface {
	Reserve(ctx context.Context, key, recipient string, window time.Duration) error
}

// DataStore reads the sale, listing and account records the pipeline needs.
type DataStore interface {
	ReadTicketType(ctx context.Context, eventID string, index uint8) (models.TicketType, error)
	ReadListing(ctx context.Context, ref string) (models.Listing, error)
	ReadAccount(ctx context.Context, id string) (models.Account, error)
	ReadOrganizerAccount(ctx context.Context, eventID string) (models.OrganizerAccount, error)
}

// Quoter computes the gateway charge for a stored price.
type Quoter interface {
	Quote(ctx context.Context, rawPrice, protocolFeeBps, settlementCostNative int64) (PriceQuote, error)
}

type CoordinatorConfig struct {
	Mode Mode

	// PipelineTimeout is the whole pipeline's budget and the lock TTL.
	PipelineTimeout time.Duration

	// PrecheckTimeout bounds the store reads and price computation.
	PrecheckTimeout time.Duration

	// Window is how long the resource stays reserved for this purchase.
	Window time.Duration

	// MarkerMargin extends the idempotency marker past the window so an
	// abandoned purchase frees the resource only after the gateway's own
	// expiry has passed.
	MarkerMargin time.Duration

	PrimaryProtocolFeeBps   int64
	SecondaryProtocolFeeBps int64
	MintCostNative          int64
	FillCostNative          int64
}

// Coordinator runs the reservation-locked purchase pipeline for one command
// at a time: lock the resource, check the in-flight marker, price the sale,
// reserve on the ledger, create the gateway charge, write the marker,
// publish the result. The lock is released on every exit path.
type Coordinator struct {
	cfg          CoordinatorConfig
	locker       Locker
	cache        *redis.Client
	store        DataStore
	reservations Reserver
	gateway      Gateway
	pricer       Quoter
	publisher    ResultPublisher
	logger       *slog.Logger
}

func NewCoordinator(
	cfg CoordinatorConfig,
	locker Locker,
	cache *redis.Client,
	dataStore DataStore,
	reservations Reserver,
	gateway Gateway,
	pricer Quoter,
	publisher ResultPublisher,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:          cfg,
		locker:       locker,
		cache:        cache,
		store:        dataStore,
		reservations: reservations,
		gateway:      gateway,
		pricer:       pricer,
		publisher:    publisher,
		logger:       logger,
	}
}

// Handle runs the pipeline for one purchase command. Soft business
// rejections become a negative result on the result sink and a nil return
// so the broker acks; any other error is returned for redelivery.
func (c *Coordinator) Handle(ctx context.Context, req *models.PurchaseRequest) error {
	start := time.Now()

	payload, err := c.process(ctx, req)

	var result models.PurchaseResult
	switch {
	case err == nil:
		result = models.OkResult(req.SessionID, payload)
	case status.IsSoft(err):
		c.logger.Info("purchase rejected",
			"session", req.SessionID, "resource", req.ResourceKey(), "reason", status.Reason(err))
		result = models.ErrResult(req.SessionID, status.Reason(err))
	default:
		monitoring.TrackPurchase(req.Kind, "failed")
		return err
	}

	monitoring.TrackPurchase(req.Kind, result.Status)
	monitoring.TrackPipeline(req.Kind, time.Since(start))

	if err := c.publisher.Publish(ctx, result); err != nil {
		return fmt.Errorf("publish result for session %s: %w", req.SessionID, err)
	}
	return nil
}

func (c *Coordinator) process(ctx context.Context, req *models.PurchaseRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PipelineTimeout)
	defer cancel()

	resourceKey := req.ResourceKey()

	release, err := c.locker.Acquire(ctx, resourceKey, c.cfg.PipelineTimeout)
	if err != nil {
		if errors.Is(err, status.ErrLockNotAcquired) {
			monitoring.TrackLockFailure()
		}
		return "", err
	}
	defer release()

	// A live marker means another purchase of this resource is in flight or
	// awaiting its webhook; tell the buyer it is unavailable instead of
	// double-selling inside the previous purchase's window.
	exists, err := c.cache.Exists(ctx, req.MarkerKey()).Result()
	if err != nil {
		return "", fmt.Errorf("check idempotency marker: %w", err)
	}
	if exists > 0 {
		return "", status.ErrResourceUnavailable
	}

	quote, err := c.precheck(ctx, req)
	if err != nil {
		return "", err
	}

	if err := c.reservations.Reserve(ctx, req.ReservationKey(), req.RecipientAddress, c.cfg.Window); err != nil {
		return "", err
	}

	payload, err := c.gatewayStep(ctx, req, quote)
	if err != nil {
		return "", err
	}

	// Marker TTL outlives the purchase window so the unpaid gap between
	// window expiry and webhook delivery cannot resell the resource.
	markerTTL := c.cfg.Window + c.cfg.MarkerMargin
	if err := c.cache.Set(ctx, req.MarkerKey(), "1", markerTTL).Err(); err != nil {
		return "", fmt.Errorf("write idempotency marker: %w", err)
	}

	c.logger.Info("purchase pipeline complete",
		"session", req.SessionID, "kind", req.Kind, "resource", resourceKey, "mode", string(c.cfg.Mode))

	return payload, nil
}

// precheck loads the sale or listing, validates the request against it and
// computes the quote, all under the precheck budget.
func (c *Coordinator) precheck(ctx context.Context, req *models.PurchaseRequest) (PriceQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PrecheckTimeout)
	defer cancel()

	switch req.Kind {
	case models.KindPrimary:
		ticketType, err := c.store.ReadTicketType(ctx, req.EventID, req.TicketTypeIndex)
		if err != nil {
			return PriceQuote{}, err
		}
		if ticketType.SaleType != models.SaleTypeFixedPrice {
			return PriceQuote{}, status.ErrUnsupportedSaleType
		}

		// The token is content-addressed over the seat coordinates, so a
		// buyer cannot pay the price of one tier and claim a seat from a
		// higher one.
		derived := models.DeriveTicketToken(req.EventID, req.TicketTypeIndex, req.SeatIndex)
		if derived != req.TicketToken {
			return PriceQuote{}, status.ErrInvalidResourceToken
		}

		return c.pricer.Quote(ctx, ticketType.Price, c.cfg.PrimaryProtocolFeeBps, c.cfg.MintCostNative)

	case models.KindSecondary:
		listing, err := c.store.ReadListing(ctx, req.ResourceRef)
		if err != nil {
			if errors.Is(err, status.ErrNotFound) {
				// A filled listing is deleted by the settlement flow.
				return PriceQuote{}, status.ErrListingUnavailable
			}
			return PriceQuote{}, err
		}
		if listing.TicketToken != req.TicketToken {
			return PriceQuote{}, status.ErrInvalidResourceToken
		}
		if listing.SaleType != models.SaleTypeFixedPrice {
			return PriceQuote{}, status.ErrUnsupportedSaleType
		}

		return c.pricer.Quote(ctx, listing.AskPrice, c.cfg.SecondaryProtocolFeeBps, c.cfg.FillCostNative)

	default:
		return PriceQuote{}, fmt.Errorf("purchase request: unknown kind %q", req.Kind)
	}
}

func (c *Coordinator) gatewayStep(ctx context.Context, req *models.PurchaseRequest, quote PriceQuote) (string, error) {
	start := time.Now()
	defer func() {
		monitoring.TrackGatewayCall(time.Since(start))
	}()

	account, err := c.store.ReadAccount(ctx, req.BuyerID)
	if err != nil {
		return "", err
	}
	organizer, err := c.store.ReadOrganizerAccount(ctx, req.EventID)
	if err != nil {
		return "", err
	}

	customerID, err := c.gateway.FindOrCreateCustomer(ctx, account)
	if err != nil {
		return "", err
	}

	params := IntentParams{
		Amount:             quote.Amount,
		Fee:                quote.Fee,
		CustomerID:         customerID,
		DestinationAccount: organizer.AccountID,
		ReceiptEmail:       account.Email,
		Description:        fmt.Sprintf("Ticket %s for event %s", req.TicketToken, req.EventID),
		Window:             c.cfg.Window,
		Metadata:           PurchaseMetadata(req),
	}

	if c.cfg.Mode == ModeCheckoutSession {
		return c.gateway.CreateCheckoutSession(ctx, params)
	}
	return c.gateway.CreatePaymentIntent(ctx, params)
}
