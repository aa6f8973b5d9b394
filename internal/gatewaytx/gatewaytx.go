// Package gatewaytx records the two-legged transactions a gateway books when
// it settles a bridge payment.
//
// Every settlement pairs a ledger leg with an external leg. On the sending
// side the gateway debits the customer's external account and pays onto the
// shared ledger; on the receiving side it watches for the ledger payment and
// credits the customer's external account. The record here is the gateway's
// own bookkeeping, not a ledger transaction.
package gatewaytx

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("gatewaytx: gateway transaction not found")

// ErrDuplicateInvoice reports a second record for the same invoice ID and
// ledger direction. A payment that loops back through one gateway books both
// legs under a shared invoice ID, so the pair (invoice, direction) is the
// unit of idempotency, not the invoice ID alone.
var ErrDuplicateInvoice = errors.New("gatewaytx: invoice id already booked for direction")

// Direction of the ledger leg relative to this gateway.
const (
	DirectionToLedger   = "to-ledger"
	DirectionFromLedger = "from-ledger"
)

// External leg directions. "to" debits the customer to fund a ledger payment,
// "from" credits the customer after a ledger payment arrives.
const (
	ExternalTo   = "to"
	ExternalFrom = "from"
)

// Ledger leg states.
const (
	StateInvoice  = "invoice"
	StateOutgoing = "outgoing"
)

// LedgerLeg is the shared-ledger side of a gateway transaction.
type LedgerLeg struct {
	SourceAddress       string          `json:"source_address,omitempty"`
	DestinationAddress  string          `json:"destination_address"`
	DestinationTag      string          `json:"destination_tag,omitempty"`
	DestinationAmount   decimal.Decimal `json:"destination_amount"`
	DestinationCurrency string          `json:"destination_currency"`
	InvoiceID           string          `json:"invoice_id,omitempty"`
	State               string          `json:"state"`
}

// ExternalLeg is the off-ledger side of a gateway transaction.
type ExternalLeg struct {
	Address   string          `json:"address"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Direction string          `json:"direction"`
}

// GatewayTransaction pairs a ledger leg with an external leg.
type GatewayTransaction struct {
	ID        string      `json:"id"`
	Direction string      `json:"direction"`
	Ledger    LedgerLeg   `json:"ledger"`
	External  ExternalLeg `json:"external"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store persists gateway transactions.
type Store interface {
	// CreateGatewayTransaction records a transaction, assigning an ID and,
	// if the ledger leg carries none, an invoice ID. It returns the stored
	// record, or ErrDuplicateInvoice when a record with the same invoice ID
	// and direction already exists.
	CreateGatewayTransaction(ctx context.Context, tx *GatewayTransaction) (*GatewayTransaction, error)

	// GetGatewayTransaction returns the transaction with the given ID, or
	// ErrNotFound.
	GetGatewayTransaction(ctx context.Context, id string) (*GatewayTransaction, error)
}
