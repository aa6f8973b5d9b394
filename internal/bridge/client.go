package bridge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mbd888/bridgegate/internal/circuitbreaker"
	"github.com/mbd888/bridgegate/internal/currency"
	"github.com/mbd888/bridgegate/internal/metrics"
)

const maxPeerResponseSize = 5 * 1024 * 1024 // 5MB

// Peer talks to the counterpart gateway. Defined as an interface so the
// services can be tested against a fake counterpart.
type Peer interface {
	// FetchQuote asks the gateway at domain for bridge quotes.
	FetchQuote(ctx context.Context, domain, sender, receiver string, amount currency.Amount) ([]*BridgePayment, error)

	// SubmitPayment hands an accepted payment to the gateway at domain and
	// returns the counterpart's record of it.
	SubmitPayment(ctx context.Context, domain string, payment *BridgePayment) (*BridgePayment, error)
}

// ClientConfig configures the HTTP client used for gateway-to-gateway calls.
// TLS verification is scoped here, per client, never process-wide.
type ClientConfig struct {
	// Scheme is "https" in production; "http" only for local test rigs.
	Scheme string

	// Timeout bounds each peer call. Zero means context deadline only.
	Timeout time.Duration

	// InsecureSkipVerify disables certificate verification. Development
	// only; config validation rejects it in production.
	InsecureSkipVerify bool
}

// Client is the HTTP implementation of Peer. A per-domain circuit breaker
// stops hammering a counterpart gateway that keeps failing at the transport
// level.
type Client struct {
	scheme  string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func NewClient(cfg ClientConfig) *Client {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		scheme: scheme,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

func (c *Client) FetchQuote(ctx context.Context, domain, sender, receiver string, amount currency.Amount) ([]*BridgePayment, error) {
	endpoint := fmt.Sprintf("%s://%s/v1/bridge_payments/quotes/%s/%s/%s",
		c.scheme, domain,
		url.PathEscape(sender),
		url.PathEscape(receiver),
		url.PathEscape(amount.Token()),
	)

	var env *Envelope
	err := c.breaker.Do(domain, func() error {
		var derr error
		env, derr = c.do(ctx, "quote", http.MethodGet, endpoint, nil)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteQuoteFailed, err)
	}

	if !env.Success || len(env.BridgePayments) == 0 {
		return nil, remoteError(ErrRemoteQuoteFailed, env.Errors)
	}
	return env.BridgePayments, nil
}

func (c *Client) SubmitPayment(ctx context.Context, domain string, payment *BridgePayment) (*BridgePayment, error) {
	endpoint := fmt.Sprintf("%s://%s/v1/bridge_payments/", c.scheme, domain)

	body, err := json.Marshal(Envelope{
		Success:        true,
		BridgePayments: []*BridgePayment{payment},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteHandoffFailed, err)
	}

	var env *Envelope
	err = c.breaker.Do(domain, func() error {
		var derr error
		env, derr = c.do(ctx, "payment", http.MethodPost, endpoint, body)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteHandoffFailed, err)
	}

	if !env.Success || len(env.BridgePayments) == 0 {
		return nil, remoteError(ErrRemoteHandoffFailed, env.Errors)
	}
	return env.BridgePayments[0], nil
}

func (c *Client) do(ctx context.Context, operation, method, endpoint string, body []byte) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.PeerRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPeerResponseSize))
	if err != nil {
		metrics.PeerRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.PeerRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("decode counterpart response: %v", err)
	}

	if env.Success {
		metrics.PeerRequestsTotal.WithLabelValues(operation, "ok").Inc()
	} else {
		metrics.PeerRequestsTotal.WithLabelValues(operation, "failure").Inc()
	}
	return &env, nil
}

func remoteError(sentinel error, remoteErrors []string) error {
	if len(remoteErrors) > 0 {
		return fmt.Errorf("%w: %s", sentinel, remoteErrors[0])
	}
	return sentinel
}
