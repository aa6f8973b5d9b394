package bridge

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/bridgegate/internal/currency"
	"github.com/mbd888/bridgegate/internal/directory"
	"github.com/mbd888/bridgegate/internal/federation"
	"github.com/mbd888/bridgegate/internal/xrpl"
)

const (
	localDomain  = "gatewaya.com"
	remoteDomain = "gatewayb.com"
	testHot      = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testCold     = "r9cZA1mLK5R5Am25ArfXFmqgNwjZgnfk59"
	remoteCold   = "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn"
)

var testIdentity = GatewayIdentity{
	Domain:     localDomain,
	ColdWallet: testCold,
	HotWallet:  testHot,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePathfinder struct {
	calls  int
	last   xrpl.PathfindRequest
	quotes []xrpl.Quote
	err    error
}

func (f *fakePathfinder) Quote(ctx context.Context, req xrpl.PathfindRequest) ([]xrpl.Quote, error) {
	f.calls++
	f.last = req
	return f.quotes, f.err
}

type fakePeer struct {
	quoteCalls  int
	quoteDomain string
	quotes      []*BridgePayment
	quoteErr    error

	submitCalls  int
	submitDomain string
	submitted    *BridgePayment
	returned     *BridgePayment
	submitErr    error
}

func (f *fakePeer) FetchQuote(ctx context.Context, domain, sender, receiver string, amount currency.Amount) ([]*BridgePayment, error) {
	f.quoteCalls++
	f.quoteDomain = domain
	return f.quotes, f.quoteErr
}

func (f *fakePeer) SubmitPayment(ctx context.Context, domain string, payment *BridgePayment) (*BridgePayment, error) {
	f.submitCalls++
	f.submitDomain = domain
	f.submitted = payment
	return f.returned, f.submitErr
}

// remoteQuote is what a counterpart receiver-side gateway would answer for
// bob: pay its custody account, tagged for bob, 5 USD on the ledger.
func remoteQuote() *BridgePayment {
	now := time.Now().UTC()
	return &BridgePayment{
		ID:          "bgq_remote",
		State:       StateQuote,
		Created:     now,
		Expiration:  now.Add(time.Hour),
		Source:      Party{URI: "acct:alice@" + localDomain},
		Destination: Party{URI: "acct:bob@" + remoteDomain},
		WalletPayment: WalletPayment{
			Destination:   remoteCold + "?dt=7",
			PrimaryAmount: WireAmount{Value: decimal.RequireFromString("5"), Currency: "USD"},
		},
		DestinationAmount: WireAmount{
			Value:    decimal.RequireFromString("5"),
			Currency: "USD",
			Issuer:   remoteCold,
		},
	}
}

func TestBuildBridgeQuotes_NotOnThisGateway(t *testing.T) {
	svc := NewQuoteService(testIdentity, directory.NewMemoryStore(), &fakePathfinder{}, &fakePeer{}, nil, testLogger())

	_, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@elsewhere.com", "acct:bob@nowhere.com", "5+USD")
	assert.ErrorIs(t, err, ErrNotOnThisGateway)
}

func TestBuildBridgeQuotes_ValidationErrors(t *testing.T) {
	svc := NewQuoteService(testIdentity, directory.NewMemoryStore(), &fakePathfinder{}, &fakePeer{}, nil, testLogger())
	ctx := context.Background()

	_, err := svc.BuildBridgeQuotes(ctx, "no-separator", "acct:bob@"+remoteDomain, "5+USD")
	assert.ErrorIs(t, err, federation.ErrInvalidSenderAddress)

	_, err = svc.BuildBridgeQuotes(ctx, "acct:alice@"+localDomain, "bogus", "5+USD")
	assert.ErrorIs(t, err, federation.ErrInvalidReceiverAddress)

	_, err = svc.BuildBridgeQuotes(ctx, "acct:alice@"+localDomain, "acct:bob@"+remoteDomain, "5+USDA")
	assert.ErrorIs(t, err, currency.ErrInvalidCurrency)
}

func TestBuildBridgeQuotes_ReceiverSide(t *testing.T) {
	accounts := directory.NewMemoryStore()
	bob := accounts.Add("bob", directory.TypeAcct)
	pathfinder := &fakePathfinder{}

	svc := NewQuoteService(testIdentity, accounts, pathfinder, &fakePeer{}, nil, testLogger())

	quotes, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+remoteDomain, "acct:bob@"+localDomain, "5+USD")
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	q := quotes[0]
	assert.Equal(t, StateQuote, q.State)
	assert.Equal(t, "acct:alice@"+remoteDomain, q.Source.URI)
	assert.Equal(t, "acct:bob@"+localDomain, q.Destination.URI)

	// Custody account tagged with bob's external account ID.
	addr, tag := splitTag(q.WalletPayment.Destination)
	assert.Equal(t, testCold, addr)
	assert.Equal(t, strconv.FormatInt(bob.ID, 10), tag)

	// 1:1 pricing, issued by this gateway's custody account.
	assert.True(t, q.WalletPayment.PrimaryAmount.Value.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, "USD", q.WalletPayment.PrimaryAmount.Currency)
	assert.Equal(t, testCold, q.DestinationAmount.Issuer)

	assert.True(t, q.Expiration.After(q.Created))

	// The receiver side never prices its own leg from remote path data.
	assert.Zero(t, pathfinder.calls)
}

func TestBuildBridgeQuotes_ReceiverUnknownUser(t *testing.T) {
	svc := NewQuoteService(testIdentity, directory.NewMemoryStore(), &fakePathfinder{}, &fakePeer{}, nil, testLogger())

	_, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+remoteDomain, "acct:bob@"+localDomain, "5+USD")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBuildBridgeQuotes_SenderSide(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)

	pathfinder := &fakePathfinder{quotes: []xrpl.Quote{
		{SourceAmount: xrpl.Amount{Value: "2", Currency: "XRP"}},
	}}
	peer := &fakePeer{quotes: []*BridgePayment{remoteQuote()}}

	svc := NewQuoteService(testIdentity, accounts, pathfinder, peer, nil, testLogger())

	quotes, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, "5+USD")
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	assert.Equal(t, 1, peer.quoteCalls)
	assert.Equal(t, remoteDomain, peer.quoteDomain)
	assert.Equal(t, 1, pathfinder.calls)

	// Pathfinding runs hot wallet to the counterpart's custody account with
	// the routing tag stripped, for what the counterpart needs delivered.
	assert.Equal(t, testHot, pathfinder.last.SourceAddress)
	assert.Equal(t, remoteCold, pathfinder.last.DestinationAddress)
	assert.True(t, pathfinder.last.DestinationAmount.Value.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, "USD", pathfinder.last.DestinationAmount.Currency)

	q := quotes[0]
	assert.Equal(t, StateQuote, q.State)
	assert.True(t, q.WalletPayment.PrimaryAmount.Value.Equal(decimal.RequireFromString("2")))
	assert.Equal(t, "XRP", q.WalletPayment.PrimaryAmount.Currency)
	assert.True(t, q.DestinationAmount.Value.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, "USD", q.DestinationAmount.Currency)
	assert.Equal(t, testCold, q.DestinationAmount.Issuer)
	assert.Equal(t, remoteCold+"?dt=7", q.WalletPayment.Destination)
	assert.NotEqual(t, "bgq_remote", q.ID)
}

func TestBuildBridgeQuotes_SenderOnePaymentPerPath(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)

	pathfinder := &fakePathfinder{quotes: []xrpl.Quote{
		{SourceAmount: xrpl.Amount{Value: "2", Currency: "XRP"}},
		{SourceAmount: xrpl.Amount{Value: "5.25", Currency: "USD", Issuer: testCold}},
		{SourceAmount: xrpl.Amount{Value: "4.8", Currency: "EUR", Issuer: testCold}},
	}}
	peer := &fakePeer{quotes: []*BridgePayment{remoteQuote()}}

	svc := NewQuoteService(testIdentity, accounts, pathfinder, peer, nil, testLogger())

	quotes, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, "5+USD")
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	assert.Equal(t, "XRP", quotes[0].WalletPayment.PrimaryAmount.Currency)
	assert.Equal(t, "USD", quotes[1].WalletPayment.PrimaryAmount.Currency)
	assert.Equal(t, "EUR", quotes[2].WalletPayment.PrimaryAmount.Currency)
	assert.NotEqual(t, quotes[0].ID, quotes[1].ID)
}

func TestBuildBridgeQuotes_SenderNoPathsIsEmptyNotError(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)

	peer := &fakePeer{quotes: []*BridgePayment{remoteQuote()}}
	svc := NewQuoteService(testIdentity, accounts, &fakePathfinder{}, peer, nil, testLogger())

	quotes, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, "5+USD")
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestBuildBridgeQuotes_SenderUnknownUser(t *testing.T) {
	svc := NewQuoteService(testIdentity, directory.NewMemoryStore(), &fakePathfinder{}, &fakePeer{}, nil, testLogger())

	_, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, "5+USD")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBuildBridgeQuotes_RemoteQuoteFailed(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)

	peer := &fakePeer{quoteErr: ErrRemoteQuoteFailed}
	pathfinder := &fakePathfinder{}
	svc := NewQuoteService(testIdentity, accounts, pathfinder, peer, nil, testLogger())

	_, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+localDomain, "acct:bob@"+remoteDomain, "5+USD")
	assert.ErrorIs(t, err, ErrRemoteQuoteFailed)
	assert.Zero(t, pathfinder.calls)
}

func TestBuildBridgeQuotes_LoopBackBothPartiesLocal(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("alice", directory.TypeAcct)
	bob := accounts.Add("bob", directory.TypeAcct)

	pathfinder := &fakePathfinder{quotes: []xrpl.Quote{
		{SourceAmount: xrpl.Amount{Value: "2", Currency: "XRP"}},
	}}
	peer := &fakePeer{}

	svc := NewQuoteService(testIdentity, accounts, pathfinder, peer, nil, testLogger())

	quotes, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+localDomain, "acct:bob@"+localDomain, "5+USD")
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	// The receiver leg was built locally, never over the network.
	assert.Zero(t, peer.quoteCalls)

	addr, tag := splitTag(quotes[0].WalletPayment.Destination)
	assert.Equal(t, testCold, addr)
	assert.Equal(t, strconv.FormatInt(bob.ID, 10), tag)
}

func TestBuildBridgeQuotes_ReceiverLiabilityAccount(t *testing.T) {
	accounts := directory.NewMemoryStore()
	fees := accounts.Add("fees", directory.TypeLiability)

	svc := NewQuoteService(testIdentity, accounts, &fakePathfinder{}, &fakePeer{}, nil, testLogger())

	quotes, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+remoteDomain, "liability:fees@"+localDomain, "5+USD")
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	_, tag := splitTag(quotes[0].WalletPayment.Destination)
	assert.Equal(t, strconv.FormatInt(fees.ID, 10), tag)
}

func TestBuildBridgeQuotes_ReceiverPrefixMismatch(t *testing.T) {
	accounts := directory.NewMemoryStore()
	accounts.Add("bob", directory.TypeAcct)

	svc := NewQuoteService(testIdentity, accounts, &fakePathfinder{}, &fakePeer{}, nil, testLogger())

	// bob is registered as an acct account; addressing him through the
	// liability prefix must not resolve.
	_, err := svc.BuildBridgeQuotes(context.Background(),
		"acct:alice@"+remoteDomain, "liability:bob@"+localDomain, "5+USD")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
