package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"fiat-checkout/internal/status"
	"fiat-checkout/models"
)

// CustomerStore persists the buyer-to-gateway-customer mapping.
type CustomerStore interface {
	ReadGatewayCustomer(ctx context.Context, accountID string) (models.GatewayCustomer, error)
	UpsertGatewayCustomer(ctx context.Context, gc models.GatewayCustomer) error
}

type StripeConfig struct {
	APIKey string

	// SubCallTimeout bounds each individual Stripe call. A timeout aborts
	// the whole gateway step; partial gateway state is acceptable to leak.
	SubCallTimeout time.Duration

	SuccessURL string
	CancelURL  string
}

// StripeGateway implements Gateway on Stripe destination charges.
type StripeGateway struct {
	sc        *client.API
	customers CustomerStore
	cfg       StripeConfig
}

func NewStripeGateway(cfg StripeConfig, customers CustomerStore) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stripe: api key required")
	}
	if cfg.SubCallTimeout <= 0 {
		cfg.SubCallTimeout = 2 * time.Second
	}

	sc := &client.API{}
	sc.Init(cfg.APIKey, nil)

	return &StripeGateway{sc: sc, customers: customers, cfg: cfg}, nil
}

func (g *StripeGateway) FindOrCreateCustomer(ctx context.Context, account models.Account) (string, error) {
	existing, err := g.customers.ReadGatewayCustomer(ctx, account.ID)
	if err == nil {
		return existing.CustomerID, nil
	}
	if !errors.Is(err, status.ErrNotFound) {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.SubCallTimeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Description: stripe.String(account.ID),
	}
	if account.Email != "" {
		params.Email = stripe.String(account.Email)
	}
	params.Context = callCtx

	customer, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}

	created := time.Unix(customer.Created, 0).UTC()
	if err := g.customers.UpsertGatewayCustomer(ctx, models.GatewayCustomer{
		AccountID:  account.ID,
		CustomerID: customer.ID,
		CreatedAt:  created,
	}); err != nil {
		return "", err
	}

	return customer.ID, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, in IntentParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.SubCallTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(in.Amount),
		Currency:             stripe.String(string(stripe.CurrencyUSD)),
		Customer:             stripe.String(in.CustomerID),
		ApplicationFeeAmount: stripe.Int64(in.Fee),
		OnBehalfOf:           stripe.String(in.DestinationAccount),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(in.DestinationAccount),
		},
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = callCtx

	intent, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create payment intent: %w", err)
	}
	if intent.ClientSecret == "" {
		return "", fmt.Errorf("stripe: payment intent %s has no client secret", intent.ID)
	}

	return intent.ClientSecret, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in IntentParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.SubCallTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(in.CustomerID),
		ExpiresAt:  stripe.Int64(time.Now().Add(in.Window).Unix()),
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(in.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(in.Fee),
			OnBehalfOf:           stripe.String(in.DestinationAccount),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(in.DestinationAccount),
			},
			Metadata: in.Metadata,
		},
	}
	params.Context = callCtx

	session, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}

	return session.ID, nil
}
