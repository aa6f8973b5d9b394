// Package directory maps federated account names to the external accounts
// this gateway holds for them.
//
// An external account is a customer's balance outside the shared ledger, an
// acct or liability account in the gateway's books. The account-id part of a
// federated address is looked up here to decide whether this gateway actually
// services that user.
package directory

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("directory: external account not found")

// Account types recognized by the directory.
const (
	TypeAcct      = "acct"
	TypeLiability = "liability"
)

// ExternalAccount is a customer account held off-ledger by this gateway.
type ExternalAccount struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Store looks up external accounts.
type Store interface {
	// FindByAddress returns the account with the given address and type,
	// or ErrNotFound.
	FindByAddress(ctx context.Context, address, accountType string) (*ExternalAccount, error)
}
