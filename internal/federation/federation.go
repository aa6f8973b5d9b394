// Package federation parses federated payment addresses.
//
// A federated address names a party and the gateway that custodies them:
//
//	acct:alice@gatewaya.com
//	└┬─┘ └─┬─┘ └────┬─────┘
//	prefix account  domain (taken from the account's last @)
//
// Resolution is pure string work; ownership of a domain is decided by the
// caller against its own configured domain.
package federation

import (
	"errors"
	"strings"
)

var (
	ErrInvalidAddress         = errors.New("federation: invalid federated address")
	ErrInvalidSenderAddress   = errors.New("federation: invalid sender address")
	ErrInvalidReceiverAddress = errors.New("federation: invalid receiver address")
)

// Address is a parsed federated address. Immutable once resolved.
type Address struct {
	Federated string // original string, e.g. "acct:alice@gatewaya.com"
	Prefix    string // rail qualifier before the colon, e.g. "acct"
	Account   string // everything after the colon, e.g. "alice@gatewaya.com"
	Domain    string // gateway domain after the account's last @
}

// Pair is the resolved sender/receiver of a bridge payment.
type Pair struct {
	Source      Address
	Destination Address
}

// Resolve parses a federated address string. It fails with ErrInvalidAddress
// when the prefix separator is missing or prefix, account, or domain come out
// empty.
func Resolve(raw string) (Address, error) {
	sep := strings.Index(raw, ":")
	if sep < 0 {
		return Address{}, ErrInvalidAddress
	}

	addr := Address{
		Federated: raw,
		Prefix:    raw[:sep],
		Account:   raw[sep+1:],
	}

	at := strings.LastIndex(addr.Account, "@")
	if at >= 0 {
		addr.Domain = addr.Account[at+1:]
	}

	if addr.Prefix == "" || addr.Account == "" || addr.Domain == "" {
		return Address{}, ErrInvalidAddress
	}
	return addr, nil
}

// User returns the account name without its domain suffix. This is the key
// under which the owning gateway stores the party's external account.
func (a Address) User() string {
	at := strings.LastIndex(a.Account, "@")
	if at < 0 {
		return a.Account
	}
	return a.Account[:at]
}

// ResolvePair parses the sender and receiver addresses of a request. The two
// sides fail with distinct errors so callers can report which one is
// malformed.
func ResolvePair(sender, receiver string) (Pair, error) {
	source, err := Resolve(sender)
	if err != nil {
		return Pair{}, ErrInvalidSenderAddress
	}
	destination, err := Resolve(receiver)
	if err != nil {
		return Pair{}, ErrInvalidReceiverAddress
	}
	return Pair{Source: source, Destination: destination}, nil
}
