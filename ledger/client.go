// Package ledger is a thin client for the reservation program on the
// external ledger. It only knows the three calls the purchase pipeline
// needs: read a reservation account, submit a reservation transaction and
// read the current slot. Consensus, finality and transaction encoding stay
// on the ledger node's side of this API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fiat-checkout/internal/status"
)

// Reservation is the on-ledger hold of a seat or sell listing. ValidUntil
// is a slot number; the hold is expired once the chain has moved past it.
type Reservation struct {
	Key        string `json:"key"`
	ValidUntil uint64 `json:"valid_until"`
	Recipient  string `json:"recipient"`
}

// ReserveParams describes a reservation-writing transaction.
type ReserveParams struct {
	Key           string `json:"key"`
	Recipient     string `json:"recipient"`
	DurationSlots uint64 `json:"duration_slots"`
}

type Config struct {
	RPCURL string

	// OperatorKey signs reservation transactions. Reservation writes fail
	// without it; reads do not need it.
	OperatorKey string
}

type Client struct {
	baseURL     string
	operatorKey string

	// hc is the http client.
	hc *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("ledger: rpc url required")
	}

	return &Client{
		baseURL:     cfg.RPCURL,
		operatorKey: cfg.OperatorKey,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// GetReservation reads the reservation account for key. A key that has
// never been reserved returns status.ErrNotFound.
func (c *Client) GetReservation(ctx context.Context, key string) (*Reservation, error) {
	var out Reservation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/reservations/%s", key), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentSlot returns the latest slot the node has seen.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	var out struct {
		Slot uint64 `json:"slot"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/slot", nil, &out); err != nil {
		return 0, err
	}
	return out.Slot, nil
}

// SubmitReservation sends a reservation-writing transaction signed by the
// operator and returns once the node accepts it. Acceptance is not
// finality; the purchase window absorbs the gap.
func (c *Client) SubmitReservation(ctx context.Context, params ReserveParams) (string, error) {
	if c.operatorKey == "" {
		return "", fmt.Errorf("ledger: operator key not configured")
	}

	var out struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/reservations", params, &out); err != nil {
		return "", err
	}
	return out.TxHash, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("ledger: encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("ledger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Request id ties node-side logs to ours.
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.operatorKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.operatorKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return status.ErrNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("ledger: %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger: decode response: %w", err)
	}
	return nil
}
