package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mbd888/bridgegate/internal/gatewaytx"
)

// StatusService reads back booked settlement records.
type StatusService struct {
	transactions gatewaytx.Store
	logger       *slog.Logger
}

func NewStatusService(transactions gatewaytx.Store, logger *slog.Logger) *StatusService {
	return &StatusService{transactions: transactions, logger: logger}
}

// PaymentStatus returns the gateway transaction booked for a payment, both
// legs included. Fails with ErrNotFound for unknown IDs.
func (s *StatusService) PaymentStatus(ctx context.Context, id string) (*gatewaytx.GatewayTransaction, error) {
	tx, err := s.transactions.GetGatewayTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, gatewaytx.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "status lookup failed", "id", id, "error", err)
		return nil, err
	}
	return tx, nil
}
