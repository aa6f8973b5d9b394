package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/bridgegate/internal/directory"
	"github.com/mbd888/bridgegate/internal/gatewaytx"
	"github.com/mbd888/bridgegate/internal/xrpl"
)

func newTestRouter(t *testing.T, accounts *directory.MemoryStore, transactions gatewaytx.Store, pathfinder Pathfinder, peer Peer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := testLogger()
	quotes := NewQuoteService(testIdentity, accounts, pathfinder, peer, nil, logger)
	payments := NewPaymentService(testIdentity, accounts, transactions, peer, nil, logger)
	status := NewStatusService(transactions, logger)

	r := gin.New()
	NewHandler(quotes, payments, status).RegisterRoutes(r)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, Envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestGetQuotes_OK(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)
	pathfinder := &fakePathfinder{quotes: []xrpl.Quote{
		{SourceAmount: xrpl.Amount{Value: "2", Currency: "XRP"}},
	}}
	peer := &fakePeer{quotes: []*BridgePayment{remoteQuote()}}

	r := newTestRouter(t, accounts, gatewaytx.NewMemoryStore(), pathfinder, peer)

	w, env := doJSON(r, http.MethodGet,
		"/v1/bridge_payments/quotes/acct:alice@gatewaya.com/acct:bob@gatewayb.com/5+USD", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.Len(t, env.BridgePayments, 1)
	assert.Equal(t, StateQuote, env.BridgePayments[0].State)
	assert.True(t, env.BridgePayments[0].WalletPayment.PrimaryAmount.Value.Equal(decimal.RequireFromString("2")))
}

func TestGetQuotes_EmptyListWhenNoPaths(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)
	peer := &fakePeer{quotes: []*BridgePayment{remoteQuote()}}

	r := newTestRouter(t, accounts, gatewaytx.NewMemoryStore(), &fakePathfinder{}, peer)

	w, env := doJSON(r, http.MethodGet,
		"/v1/bridge_payments/quotes/acct:alice@gatewaya.com/acct:bob@gatewayb.com/5+USD", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotNil(t, env.BridgePayments)
	assert.Empty(t, env.BridgePayments)
}

func TestGetQuotes_BadAmount(t *testing.T) {
	r := newTestRouter(t, directory.NewMemoryStore(), gatewaytx.NewMemoryStore(), &fakePathfinder{}, &fakePeer{})

	w, env := doJSON(r, http.MethodGet,
		"/v1/bridge_payments/quotes/acct:alice@gatewaya.com/acct:bob@gatewayb.com/5+USDA", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	require.NotEmpty(t, env.Errors)
}

func TestGetQuotes_NotOnThisGateway(t *testing.T) {
	r := newTestRouter(t, directory.NewMemoryStore(), gatewaytx.NewMemoryStore(), &fakePathfinder{}, &fakePeer{})

	w, env := doJSON(r, http.MethodGet,
		"/v1/bridge_payments/quotes/acct:a@x.com/acct:b@y.com/5+USD", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
}

func TestPostPayment_OK(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)
	peer := &fakePeer{returned: acceptedRemote()}

	r := newTestRouter(t, accounts, gatewaytx.NewMemoryStore(), &fakePathfinder{}, peer)

	w, env := doJSON(r, http.MethodPost, "/v1/bridge_payments/", gin.H{
		"bridge_payments": []*BridgePayment{senderQuote()},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.Len(t, env.BridgePayments, 1)
	assert.Equal(t, StateInvoice, env.BridgePayments[0].State)
	assert.NotEmpty(t, env.BridgePayments[0].WalletPayment.InvoiceID)
}

func TestPostPayment_MalformedBody(t *testing.T) {
	r := newTestRouter(t, directory.NewMemoryStore(), gatewaytx.NewMemoryStore(), &fakePathfinder{}, &fakePeer{})

	req := httptest.NewRequest(http.MethodPost, "/v1/bridge_payments/", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostPayment_WrongCount(t *testing.T) {
	r := newTestRouter(t, directory.NewMemoryStore(), gatewaytx.NewMemoryStore(), &fakePathfinder{}, &fakePeer{})

	w, env := doJSON(r, http.MethodPost, "/v1/bridge_payments/", gin.H{
		"bridge_payments": []*BridgePayment{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
}

func TestPostPayment_SettlementFailureIsOpaque(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)
	peer := &fakePeer{returned: acceptedRemote()}

	r := newTestRouter(t, accounts, failingTxStore{}, &fakePathfinder{}, peer)

	w, env := doJSON(r, http.MethodPost, "/v1/bridge_payments/", gin.H{
		"bridge_payments": []*BridgePayment{senderQuote()},
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "internal error", env.Errors[0])
}

func TestGetStatus(t *testing.T) {
	transactions := gatewaytx.NewMemoryStore()
	created, err := transactions.CreateGatewayTransaction(context.Background(), &gatewaytx.GatewayTransaction{
		Direction: gatewaytx.DirectionToLedger,
		Ledger: gatewaytx.LedgerLeg{
			DestinationAddress:  testCold,
			DestinationAmount:   decimal.RequireFromString("2"),
			DestinationCurrency: "XRP",
			State:               gatewaytx.StateOutgoing,
		},
		External: gatewaytx.ExternalLeg{
			Address: "alice", Type: directory.TypeAcct,
			Amount: decimal.RequireFromString("2"), Currency: "XRP",
			Direction: gatewaytx.ExternalTo,
		},
	})
	require.NoError(t, err)

	r := newTestRouter(t, directory.NewMemoryStore(), transactions, &fakePathfinder{}, &fakePeer{})

	req := httptest.NewRequest(http.MethodGet, "/v1/bridge_payments/status/"+created.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success            bool                          `json:"success"`
		GatewayTransaction *gatewaytx.GatewayTransaction `json:"gateway_transaction"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.GatewayTransaction)
	assert.Equal(t, created.ID, body.GatewayTransaction.ID)
	assert.Equal(t, created.Ledger.InvoiceID, body.GatewayTransaction.Ledger.InvoiceID)
}

func TestGetStatus_NotFound(t *testing.T) {
	r := newTestRouter(t, directory.NewMemoryStore(), gatewaytx.NewMemoryStore(), &fakePathfinder{}, &fakePeer{})

	req := httptest.NewRequest(http.MethodGet, "/v1/bridge_payments/status/gtx_missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
