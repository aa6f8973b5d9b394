package bridge

import "context"

// EventSink receives payment lifecycle notifications. The realtime hub
// implements this; services never depend on the hub directly.
type EventSink interface {
	PaymentUpdated(ctx context.Context, payment *BridgePayment)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) PaymentUpdated(ctx context.Context, payment *BridgePayment) {}
