package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/bridgegate/internal/currency"
)

// peerServer fakes a counterpart gateway and returns its host as the domain
// to dial. Scheme "http" keeps the test rig TLS-free.
func peerServer(t *testing.T, handler http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{Scheme: "http"})
	return client, strings.TrimPrefix(srv.URL, "http://")
}

func TestClient_FetchQuote(t *testing.T) {
	var gotPath string
	client, domain := peerServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(Envelope{
			Success:        true,
			BridgePayments: []*BridgePayment{remoteQuote()},
		})
	})

	amount, err := currency.ParseToken("5+USD")
	require.NoError(t, err)

	quotes, err := client.FetchQuote(context.Background(), domain,
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, amount)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, remoteCold+"?dt=7", quotes[0].WalletPayment.Destination)

	assert.True(t, strings.HasPrefix(gotPath, "/v1/bridge_payments/quotes/"), gotPath)
	assert.Contains(t, gotPath, "5+USD")
}

func TestClient_FetchQuote_RemoteFailure(t *testing.T) {
	client, domain := peerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(Envelope{
			Success: false,
			Errors:  []string{"no such user"},
		})
	})

	amount, _ := currency.ParseToken("5+USD")
	_, err := client.FetchQuote(context.Background(), domain,
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, amount)
	require.ErrorIs(t, err, ErrRemoteQuoteFailed)
	assert.Contains(t, err.Error(), "no such user")
}

func TestClient_FetchQuote_EmptyResult(t *testing.T) {
	client, domain := peerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Success: true})
	})

	amount, _ := currency.ParseToken("5+USD")
	_, err := client.FetchQuote(context.Background(), domain,
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, amount)
	assert.ErrorIs(t, err, ErrRemoteQuoteFailed)
}

func TestClient_SubmitPayment(t *testing.T) {
	client, domain := peerServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/bridge_payments/", r.URL.Path)

		var body Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.BridgePayments, 1)

		accepted := body.BridgePayments[0].Clone()
		accepted.State = StateInvoice
		accepted.WalletPayment.InvoiceID = "feed0123"
		accepted.GatewayTransactionID = "gtx_far"
		_ = json.NewEncoder(w).Encode(Envelope{
			Success:        true,
			BridgePayments: []*BridgePayment{accepted},
		})
	})

	got, err := client.SubmitPayment(context.Background(), domain, remoteQuote())
	require.NoError(t, err)
	assert.Equal(t, StateInvoice, got.State)
	assert.Equal(t, "feed0123", got.WalletPayment.InvoiceID)
	assert.Equal(t, "gtx_far", got.GatewayTransactionID)
}

func TestClient_SubmitPayment_Rejected(t *testing.T) {
	client, domain := peerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(Envelope{Success: false})
	})

	_, err := client.SubmitPayment(context.Background(), domain, remoteQuote())
	assert.ErrorIs(t, err, ErrRemoteHandoffFailed)
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient(ClientConfig{Scheme: "http"})

	amount, _ := currency.ParseToken("5+USD")
	_, err := client.FetchQuote(context.Background(), "127.0.0.1:1",
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, amount)
	assert.ErrorIs(t, err, ErrRemoteQuoteFailed)
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	client := NewClient(ClientConfig{Scheme: "http"})
	amount, _ := currency.ParseToken("5+USD")

	for i := 0; i < 5; i++ {
		_, err := client.FetchQuote(context.Background(), "127.0.0.1:1",
			"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, amount)
		require.Error(t, err)
	}

	_, err := client.FetchQuote(context.Background(), "127.0.0.1:1",
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, amount)
	require.ErrorIs(t, err, ErrRemoteQuoteFailed)
	assert.Contains(t, err.Error(), "circuitbreaker: open")
}
