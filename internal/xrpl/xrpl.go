// Package xrpl talks to the ledger-network pathfinding backend.
//
// The backend is a ripple-rest style HTTP API. Given a destination address
// and amount, it returns the alternative source amounts that can reach that
// destination along some payment path. One request, one answer: a failed or
// slow backend call surfaces directly to the caller, never retried here.
package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	addresscodec "github.com/Peersyst/xrpl-go/address-codec"

	"github.com/mbd888/bridgegate/internal/currency"
	"github.com/mbd888/bridgegate/internal/metrics"
)

var (
	ErrInvalidDestinationAmount   = errors.New("xrpl: destination amount is not a valid number")
	ErrInvalidDestinationCurrency = errors.New("xrpl: destination currency is not valid")
	ErrInvalidDestinationAddress  = errors.New("xrpl: destination address is not a valid ledger address")
	ErrInvalidSourceAddress       = errors.New("xrpl: source address is not a valid ledger address")
	ErrPathfind                   = errors.New("xrpl: pathfinding backend error")
)

const maxResponseSize = 5 * 1024 * 1024 // 5MB

// Amount is an amount as the pathfinding backend reports it.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

// Quote is one alternative way to deliver the requested destination amount.
type Quote struct {
	SourceAmount Amount `json:"source_amount"`
}

// PathfindRequest asks for paths from a source account to a destination
// amount. SourceCurrencies optionally restricts which currencies the source
// may spend.
type PathfindRequest struct {
	SourceAddress      string
	SourceCurrencies   []string
	DestinationAddress string
	DestinationAmount  currency.Amount
}

// Client requests best-path quotes from the pathfinding backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a pathfinding client. Pass timeout=0 for no client-side
// timeout (the host's context deadline still applies).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// IsValidAddress reports whether addr is a well-formed ledger-network
// classic address.
func IsValidAddress(addr string) bool {
	_, _, err := addresscodec.DecodeClassicAddressToAccountID(addr)
	return err == nil
}

// Quote validates the request and fetches path quotes from the backend.
// An empty result means no path exists for the requested amount; that is a
// valid answer, not an error.
func (c *Client) Quote(ctx context.Context, req PathfindRequest) ([]Quote, error) {
	if !currency.IsValidValue(req.DestinationAmount.Value.String()) {
		return nil, ErrInvalidDestinationAmount
	}
	if !currency.IsValidCode(req.DestinationAmount.Currency) {
		return nil, ErrInvalidDestinationCurrency
	}
	if !IsValidAddress(req.DestinationAddress) {
		return nil, ErrInvalidDestinationAddress
	}
	if !IsValidAddress(req.SourceAddress) {
		return nil, ErrInvalidSourceAddress
	}

	// GET /v1/accounts/{source}/payments/paths/{destination}/{value}+{currency}
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/payments/paths/%s/%s",
		c.baseURL,
		url.PathEscape(req.SourceAddress),
		url.PathEscape(req.DestinationAddress),
		url.PathEscape(req.DestinationAmount.Token()),
	)
	if len(req.SourceCurrencies) > 0 {
		endpoint += "?source_currencies=" + url.QueryEscape(strings.Join(req.SourceCurrencies, ","))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPathfind, err)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.PathfindDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PathfindRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrPathfind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		metrics.PathfindRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: read response: %v", ErrPathfind, err)
	}

	var parsed struct {
		Success  bool    `json:"success"`
		Payments []Quote `json:"payments"`
		Message  string  `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.PathfindRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: decode response: %v", ErrPathfind, err)
	}

	if resp.StatusCode != http.StatusOK || !parsed.Success {
		metrics.PathfindRequestsTotal.WithLabelValues("failure").Inc()
		if parsed.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrPathfind, parsed.Message)
		}
		return nil, fmt.Errorf("%w: backend returned HTTP %d", ErrPathfind, resp.StatusCode)
	}

	metrics.PathfindRequestsTotal.WithLabelValues("ok").Inc()
	return parsed.Payments, nil
}
