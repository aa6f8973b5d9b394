package realtime

import (
	"context"
	"time"

	"github.com/mbd888/bridgegate/internal/bridge"
)

// Sink feeds bridge payment updates into the hub. It satisfies the event
// sink the payment services publish to.
type Sink struct {
	hub *Hub
}

func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

func (s *Sink) PaymentUpdated(ctx context.Context, p *bridge.BridgePayment) {
	eventType := EventPaymentState
	if p.State == bridge.StateQuote {
		eventType = EventQuoteIssued
	}

	s.hub.Broadcast(&Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payment: &PaymentEvent{
			PaymentID:            p.ID,
			State:                p.State,
			Source:               p.Source.URI,
			Destination:          p.Destination.URI,
			Amount:               p.DestinationAmount.Value.String(),
			Currency:             p.DestinationAmount.Currency,
			GatewayTransactionID: p.GatewayTransactionID,
		},
	})
}
