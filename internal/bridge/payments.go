package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mbd888/bridgegate/internal/directory"
	"github.com/mbd888/bridgegate/internal/federation"
	"github.com/mbd888/bridgegate/internal/gatewaytx"
	"github.com/mbd888/bridgegate/internal/metrics"
	"github.com/mbd888/bridgegate/internal/traces"
)

// PaymentService settles accepted quotes.
//
// Settlement is a handoff: the source-side gateway first secures a matching
// record on the destination side (over HTTP, or locally when it custodies
// both parties), then books its own two-legged transaction. Each side's
// ledger leg and external leg are submitted together so a failure books
// nothing and leaves the quote acceptable for retry.
type PaymentService struct {
	identity     GatewayIdentity
	accounts     directory.Store
	transactions gatewaytx.Store
	peer         Peer
	events       EventSink
	logger       *slog.Logger
}

func NewPaymentService(identity GatewayIdentity, accounts directory.Store, transactions gatewaytx.Store, peer Peer, events EventSink, logger *slog.Logger) *PaymentService {
	if events == nil {
		events = NopSink{}
	}
	return &PaymentService{
		identity:     identity,
		accounts:     accounts,
		transactions: transactions,
		peer:         peer,
		events:       events,
		logger:       logger,
	}
}

// AcceptQuote turns a quote into a booked payment on this gateway's side of
// the bridge. The returned payment carries the assigned invoice ID and
// gateway transaction ID; its state never moves backward, so re-accepting an
// already booked payment is harmless.
func (s *PaymentService) AcceptQuote(ctx context.Context, payment *BridgePayment) (*BridgePayment, error) {
	ctx, span := traces.StartSpan(ctx, "bridge.accept_quote", traces.PaymentID(payment.ID))
	defer span.End()

	pair, err := federation.ResolvePair(payment.Source.URI, payment.Destination.URI)
	if err != nil {
		metrics.PaymentsAcceptedTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}

	role, err := detectRole(pair, s.identity.Domain)
	if err != nil {
		metrics.PaymentsAcceptedTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}
	span.SetAttributes(traces.Role(string(role)))

	if role == RoleSender {
		return s.processSourcePayment(ctx, payment, pair)
	}
	return s.processDestinationPayment(ctx, payment, pair)
}

// processSourcePayment books the sending side: secure the destination-side
// record, adopt its invoice ID as the correlation key, then submit the
// outgoing ledger leg and the external debit as one gateway transaction.
func (s *PaymentService) processSourcePayment(ctx context.Context, payment *BridgePayment, pair federation.Pair) (*BridgePayment, error) {
	var remote *BridgePayment
	var err error
	if pair.Destination.Domain == s.identity.Domain {
		remote, err = s.processDestinationPayment(ctx, payment, pair)
	} else {
		remote, err = s.peer.SubmitPayment(ctx, pair.Destination.Domain, payment)
	}
	if err != nil {
		metrics.PaymentsAcceptedTotal.WithLabelValues("source", "handoff_failed").Inc()
		return nil, err
	}

	out := payment.Clone()
	out.WalletPayment.InvoiceID = remote.WalletPayment.InvoiceID
	out.DestinationGatewayTransactionID = remote.GatewayTransactionID

	ledgerDestination, _ := splitTag(out.WalletPayment.Destination)
	created, err := s.transactions.CreateGatewayTransaction(ctx, &gatewaytx.GatewayTransaction{
		Direction: gatewaytx.DirectionToLedger,
		Ledger: gatewaytx.LedgerLeg{
			SourceAddress:       s.identity.HotWallet,
			DestinationAddress:  ledgerDestination,
			DestinationAmount:   out.WalletPayment.PrimaryAmount.Value,
			DestinationCurrency: out.WalletPayment.PrimaryAmount.Currency,
			InvoiceID:           out.WalletPayment.InvoiceID,
			State:               gatewaytx.StateOutgoing,
		},
		External: gatewaytx.ExternalLeg{
			Address:   pair.Source.User(),
			Type:      pair.Source.Prefix,
			Amount:    out.WalletPayment.PrimaryAmount.Value,
			Currency:  out.WalletPayment.PrimaryAmount.Currency,
			Direction: gatewaytx.ExternalTo,
		},
	})
	if err != nil {
		metrics.PaymentsAcceptedTotal.WithLabelValues("source", "settlement_failed").Inc()
		s.logger.ErrorContext(ctx, "source settlement write failed",
			"payment_id", payment.ID, "error", err)
		return nil, ErrSettlementFailed
	}

	out.WalletPayment.InvoiceID = created.Ledger.InvoiceID
	out.GatewayTransactionID = created.ID
	out.State = advanceState(out.State, StateInvoice)

	metrics.PaymentsAcceptedTotal.WithLabelValues("source", "ok").Inc()
	s.logger.InfoContext(ctx, "source payment booked",
		"payment_id", out.ID,
		"gateway_transaction_id", out.GatewayTransactionID,
		"invoice_id", out.WalletPayment.InvoiceID,
	)
	s.events.PaymentUpdated(ctx, out)
	return out, nil
}

// processDestinationPayment books the receiving side: an inbound ledger leg
// expecting the tagged custody payment, and the external credit to the
// receiver's account.
func (s *PaymentService) processDestinationPayment(ctx context.Context, payment *BridgePayment, pair federation.Pair) (*BridgePayment, error) {
	if _, err := s.accounts.FindByAddress(ctx, pair.Destination.User(), pair.Destination.Prefix); err != nil {
		metrics.PaymentsAcceptedTotal.WithLabelValues("destination", "user_not_found").Inc()
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, pair.Destination.User())
		}
		return nil, err
	}

	out := payment.Clone()
	ledgerDestination, tag := splitTag(out.WalletPayment.Destination)

	created, err := s.transactions.CreateGatewayTransaction(ctx, &gatewaytx.GatewayTransaction{
		Direction: gatewaytx.DirectionFromLedger,
		Ledger: gatewaytx.LedgerLeg{
			DestinationAddress:  ledgerDestination,
			DestinationTag:      tag,
			DestinationAmount:   out.WalletPayment.PrimaryAmount.Value,
			DestinationCurrency: out.WalletPayment.PrimaryAmount.Currency,
			InvoiceID:           out.WalletPayment.InvoiceID,
			State:               gatewaytx.StateInvoice,
		},
		External: gatewaytx.ExternalLeg{
			Address:   pair.Destination.User(),
			Type:      pair.Destination.Prefix,
			Amount:    out.DestinationAmount.Value,
			Currency:  out.DestinationAmount.Currency,
			Direction: gatewaytx.ExternalFrom,
		},
	})
	if err != nil {
		metrics.PaymentsAcceptedTotal.WithLabelValues("destination", "settlement_failed").Inc()
		s.logger.ErrorContext(ctx, "destination settlement write failed",
			"payment_id", payment.ID, "error", err)
		return nil, ErrSettlementFailed
	}

	out.WalletPayment.InvoiceID = created.Ledger.InvoiceID
	out.GatewayTransactionID = created.ID
	out.State = advanceState(out.State, StateInvoice)

	metrics.PaymentsAcceptedTotal.WithLabelValues("destination", "ok").Inc()
	s.logger.InfoContext(ctx, "destination payment booked",
		"payment_id", out.ID,
		"gateway_transaction_id", out.GatewayTransactionID,
		"invoice_id", out.WalletPayment.InvoiceID,
	)
	s.events.PaymentUpdated(ctx, out)
	return out, nil
}
