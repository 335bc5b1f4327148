package fx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/pkg/errs"
)

// Client calls an HTTP pricing API. Requests are bounded by the
// configured timeout; provider failures surface as upstream errors.
type Client struct {
	endpoint   string
	token      string
	profileID  int64
	httpClient *http.Client
}

// NewClient creates a pricing client for the given API endpoint.
func NewClient(endpoint, token string, profileID int64, timeout time.Duration) *Client {
	return &Client{
		endpoint:  endpoint,
		token:     token,
		profileID: profileID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type quoteRequest struct {
	Profile      int64            `json:"profile"`
	Source       string           `json:"source"`
	Target       string           `json:"target"`
	RateType     string           `json:"rateType"`
	Type         string           `json:"type"`
	SourceAmount *decimal.Decimal `json:"sourceAmount,omitempty"`
	TargetAmount *decimal.Decimal `json:"targetAmount,omitempty"`
}

type quoteResponse struct {
	ID           string          `json:"id"`
	SourceAmount decimal.Decimal `json:"sourceAmount"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Rate         decimal.Decimal `json:"rate"`
}

// Price requests a balance-conversion quote from the provider.
func (c *Client) Price(ctx context.Context, sourceCurrency, targetCurrency string, sourceAmount, targetAmount decimal.Decimal) (*Pricing, error) {
	logger := log.With().
		Str("provider", "fx").
		Str("source_currency", sourceCurrency).
		Str("target_currency", targetCurrency).
		Logger()

	payload := quoteRequest{
		Profile:  c.profileID,
		Source:   sourceCurrency,
		Target:   targetCurrency,
		RateType: "FIXED",
		Type:     "BALANCE_CONVERSION",
	}
	if !sourceAmount.IsZero() {
		payload.SourceAmount = &sourceAmount
	}
	if !targetAmount.IsZero() {
		payload.TargetAmount = &targetAmount
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pricing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/quotes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error().Err(err).Msg("pricing request failed")
		return nil, errs.Upstream("pricing provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("pricing provider returned an error")
		return nil, errs.Upstream(fmt.Sprintf("pricing provider error: %s", string(raw)), nil)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, errs.Upstream("invalid pricing provider response", err)
	}

	logger.Debug().
		Str("reference", quote.ID).
		Str("rate", quote.Rate.String()).
		Msg("received pricing lock")

	return &Pricing{
		SourceAmount: quote.SourceAmount,
		TargetAmount: quote.TargetAmount,
		Rate:         quote.Rate,
		Reference:    quote.ID,
	}, nil
}
