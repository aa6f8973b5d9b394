// Package bridge implements the bridge payment protocol between two payment
// gateways.
//
// A bridge payment moves value from a sender custodied by one gateway to a
// receiver custodied by another, crossing the shared ledger network in the
// middle. The two gateways are separate trust domains that talk only over
// HTTP: quoting may require fetching a counterpart quote from the other
// gateway, and settlement is a two-sided handoff that has to land in a
// consistent state on both sides.
package bridge

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotOnThisGateway    = errors.New("bridge: neither party belongs to this gateway")
	ErrUserNotFound        = errors.New("bridge: user has no external account on this gateway")
	ErrRemoteQuoteFailed   = errors.New("bridge: counterpart gateway returned no quote")
	ErrRemoteHandoffFailed = errors.New("bridge: counterpart gateway rejected the payment")
	ErrSettlementFailed    = errors.New("bridge: settlement could not be recorded")
	ErrNotFound            = errors.New("bridge: payment not found")
)

// Payment states, strictly forward-moving.
const (
	StateQuote    = "quote"
	StateInvoice  = "invoice"
	StateOutgoing = "outgoing"
	StateSettled  = "settled"
)

var stateRank = map[string]int{
	StateQuote:    0,
	StateInvoice:  1,
	StateOutgoing: 2,
	StateSettled:  2,
}

// advanceState moves a payment forward to at least target, never backward.
func advanceState(current, target string) string {
	if stateRank[target] >= stateRank[current] {
		return target
	}
	return current
}

// Role of this gateway in a given bridge payment, decided by domain
// ownership. A gateway is sender-side when it custodies the source party,
// receiver-side when it custodies only the destination party.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// Party is one end of a bridge payment, identified by federated address.
type Party struct {
	URI string `json:"uri"`
}

// WireAmount is an amount as it appears in quote and payment payloads. The
// issuer, when present, is the gateway ledger account backing the currency.
type WireAmount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
	Issuer   string          `json:"issuer,omitempty"`
}

// WalletPayment is the shared-ledger leg of a bridge payment. Destination may
// carry a "?dt=<id>" routing-tag suffix identifying the end user behind a
// shared custody account. InvoiceID is set exactly once, by whichever side
// creates the ledger leg.
type WalletPayment struct {
	Destination   string     `json:"destination"`
	PrimaryAmount WireAmount `json:"primary_amount"`
	InvoiceID     string     `json:"invoice_id,omitempty"`
}

// BridgePayment is a quote or an accepted payment, distinguished by State.
// It is the wire shape exchanged between gateways.
type BridgePayment struct {
	ID                              string        `json:"id,omitempty"`
	State                           string        `json:"state"`
	Created                         time.Time     `json:"created"`
	Expiration                      time.Time     `json:"expiration"`
	Source                          Party         `json:"source"`
	Destination                     Party         `json:"destination"`
	WalletPayment                   WalletPayment `json:"wallet_payment"`
	DestinationAmount               WireAmount    `json:"destination_amount"`
	GatewayTransactionID            string        `json:"gateway_transaction_id,omitempty"`
	DestinationGatewayTransactionID string        `json:"destination_gateway_transaction_id,omitempty"`
}

// Clone returns a copy safe to mutate independently.
func (p *BridgePayment) Clone() *BridgePayment {
	cp := *p
	return &cp
}

// Envelope is the response body both gateways exchange.
type Envelope struct {
	Success        bool             `json:"success"`
	BridgePayments []*BridgePayment `json:"bridge_payments"`
	Errors         []string         `json:"errors,omitempty"`
}

// splitTag splits a ledger destination into its bare address and routing
// tag. Only the receiving leg of a settlement carries the tag; everywhere
// else the bare address is what the ledger network understands.
func splitTag(destination string) (address, tag string) {
	if i := strings.Index(destination, "?dt="); i >= 0 {
		return destination[:i], destination[i+len("?dt="):]
	}
	return destination, ""
}
