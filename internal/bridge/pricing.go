package bridge

import (
	"context"

	"github.com/mbd888/bridgegate/internal/currency"
)

// PricingPolicy decides what the receiver-side gateway asks for on the
// ledger network in exchange for crediting the requested amount on the
// external rail. Fee and markup schemes plug in here.
type PricingPolicy interface {
	Price(ctx context.Context, requested currency.Amount) (currency.Amount, error)
}

// OneToOne passes the requested amount through unchanged.
type OneToOne struct{}

func (OneToOne) Price(ctx context.Context, requested currency.Amount) (currency.Amount, error) {
	return requested, nil
}
