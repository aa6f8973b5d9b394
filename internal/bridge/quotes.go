package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/bridgegate/internal/currency"
	"github.com/mbd888/bridgegate/internal/directory"
	"github.com/mbd888/bridgegate/internal/federation"
	"github.com/mbd888/bridgegate/internal/idgen"
	"github.com/mbd888/bridgegate/internal/metrics"
	"github.com/mbd888/bridgegate/internal/traces"
	"github.com/mbd888/bridgegate/internal/xrpl"
)

// quoteTTL bounds how long an issued quote stays acceptable.
const quoteTTL = 60 * time.Minute

// GatewayIdentity is what this gateway knows about itself: the domain it
// answers for and its two ledger accounts. The cold wallet is the custody
// account users pay into; the hot wallet funds outgoing ledger payments.
type GatewayIdentity struct {
	Domain     string
	ColdWallet string
	HotWallet  string
}

// Pathfinder asks the shared ledger network for best-path quotes.
type Pathfinder interface {
	Quote(ctx context.Context, req xrpl.PathfindRequest) ([]xrpl.Quote, error)
}

// QuoteService builds bridge quotes.
//
// Quoting is asymmetric by role. The receiver-side gateway is authoritative
// for what must arrive on the ledger network and prices it locally, never
// from remote path data. The sender-side gateway takes that answer and asks
// the ledger's pathfinder what it costs to deliver it.
type QuoteService struct {
	identity   GatewayIdentity
	accounts   directory.Store
	pathfinder Pathfinder
	peer       Peer
	pricing    PricingPolicy
	logger     *slog.Logger
}

func NewQuoteService(identity GatewayIdentity, accounts directory.Store, pathfinder Pathfinder, peer Peer, pricing PricingPolicy, logger *slog.Logger) *QuoteService {
	if pricing == nil {
		pricing = OneToOne{}
	}
	return &QuoteService{
		identity:   identity,
		accounts:   accounts,
		pathfinder: pathfinder,
		peer:       peer,
		pricing:    pricing,
		logger:     logger,
	}
}

// detectRole decides which side of the bridge this gateway is on. Owning the
// sender's domain wins, so a single gateway that custodies both parties
// handles the payment sender-side and loops back locally for the receiver
// leg.
func detectRole(pair federation.Pair, domain string) (Role, error) {
	switch {
	case pair.Source.Domain == domain:
		return RoleSender, nil
	case pair.Destination.Domain == domain:
		return RoleReceiver, nil
	default:
		return "", ErrNotOnThisGateway
	}
}

// BuildBridgeQuotes produces candidate bridge payments in state "quote" for
// the given sender, receiver, and amount token. An empty result means no
// ledger path can deliver the amount; that is a valid answer.
func (s *QuoteService) BuildBridgeQuotes(ctx context.Context, sender, receiver, amountToken string) ([]*BridgePayment, error) {
	ctx, span := traces.StartSpan(ctx, "bridge.build_quotes",
		traces.Sender(sender), traces.Receiver(receiver), traces.Amount(amountToken))
	defer span.End()

	pair, err := federation.ResolvePair(sender, receiver)
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}

	amount, err := currency.ParseToken(amountToken)
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}

	role, err := detectRole(pair, s.identity.Domain)
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}
	span.SetAttributes(traces.Role(string(role)))

	if role == RoleSender {
		return s.buildSenderQuotes(ctx, pair, amount)
	}
	return s.buildReceiverQuotes(ctx, pair, amount)
}

// buildReceiverQuotes synthesizes the single authoritative quote for a
// payment arriving at this gateway: pay the custody account, tagged with the
// receiver's external account ID, the priced amount.
func (s *QuoteService) buildReceiverQuotes(ctx context.Context, pair federation.Pair, amount currency.Amount) ([]*BridgePayment, error) {
	acct, err := s.accounts.FindByAddress(ctx, pair.Destination.User(), pair.Destination.Prefix)
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("receiver", "user_not_found").Inc()
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, pair.Destination.User())
		}
		return nil, err
	}

	priced, err := s.pricing.Price(ctx, amount)
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("receiver", "error").Inc()
		return nil, err
	}

	now := time.Now().UTC()
	quote := &BridgePayment{
		ID:          idgen.WithPrefix("bgq_"),
		State:       StateQuote,
		Created:     now,
		Expiration:  now.Add(quoteTTL),
		Source:      Party{URI: pair.Source.Federated},
		Destination: Party{URI: pair.Destination.Federated},
		WalletPayment: WalletPayment{
			Destination:   fmt.Sprintf("%s?dt=%d", s.identity.ColdWallet, acct.ID),
			PrimaryAmount: WireAmount{Value: priced.Value, Currency: priced.Currency},
		},
		DestinationAmount: WireAmount{
			Value:    amount.Value,
			Currency: amount.Currency,
			Issuer:   s.identity.ColdWallet,
		},
	}

	metrics.QuotesBuiltTotal.WithLabelValues("receiver", "ok").Inc()
	s.logger.InfoContext(ctx, "receiver quote built",
		"quote_id", quote.ID,
		"receiver", pair.Destination.Federated,
		"amount", amount.String(),
	)
	return []*BridgePayment{quote}, nil
}

// buildSenderQuotes fetches the receiver-side quote, then combines it with
// ledger path quotes: one candidate payment per path, each priced at that
// path's source amount.
func (s *QuoteService) buildSenderQuotes(ctx context.Context, pair federation.Pair, amount currency.Amount) ([]*BridgePayment, error) {
	if _, err := s.accounts.FindByAddress(ctx, pair.Source.User(), pair.Source.Prefix); err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("sender", "user_not_found").Inc()
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, pair.Source.User())
		}
		return nil, err
	}

	var counterpart []*BridgePayment
	var err error
	if pair.Destination.Domain == s.identity.Domain {
		counterpart, err = s.buildReceiverQuotes(ctx, pair, amount)
	} else {
		counterpart, err = s.peer.FetchQuote(ctx, pair.Destination.Domain,
			pair.Source.Federated, pair.Destination.Federated, amount)
	}
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("sender", "remote_failed").Inc()
		return nil, err
	}
	if len(counterpart) == 0 {
		metrics.QuotesBuiltTotal.WithLabelValues("sender", "remote_failed").Inc()
		return nil, ErrRemoteQuoteFailed
	}

	// The counterpart's quote says what must arrive on the ledger; our
	// destination_amount records what we owe the sender's view of the deal.
	base := counterpart[0].Clone()
	base.DestinationAmount = WireAmount{
		Value:    amount.Value,
		Currency: amount.Currency,
		Issuer:   s.identity.ColdWallet,
	}

	ledgerDestination, _ := splitTag(base.WalletPayment.Destination)
	ledgerQuotes, err := s.pathfinder.Quote(ctx, xrpl.PathfindRequest{
		SourceAddress:      s.identity.HotWallet,
		DestinationAddress: ledgerDestination,
		DestinationAmount: currency.Amount{
			Value:    base.WalletPayment.PrimaryAmount.Value,
			Currency: base.WalletPayment.PrimaryAmount.Currency,
		},
	})
	if err != nil {
		metrics.QuotesBuiltTotal.WithLabelValues("sender", "pathfind_failed").Inc()
		return nil, err
	}

	now := time.Now().UTC()
	quotes := make([]*BridgePayment, 0, len(ledgerQuotes))
	for _, lq := range ledgerQuotes {
		value, err := decimal.NewFromString(lq.SourceAmount.Value)
		if err != nil {
			metrics.QuotesBuiltTotal.WithLabelValues("sender", "pathfind_failed").Inc()
			return nil, fmt.Errorf("bridge: pathfinder returned invalid source amount %q", lq.SourceAmount.Value)
		}

		q := base.Clone()
		q.ID = idgen.WithPrefix("bgq_")
		q.State = StateQuote
		q.Created = now
		q.Expiration = now.Add(quoteTTL)
		q.WalletPayment.PrimaryAmount = WireAmount{
			Value:    value,
			Currency: strings.ToUpper(lq.SourceAmount.Currency),
			Issuer:   lq.SourceAmount.Issuer,
		}
		quotes = append(quotes, q)
	}

	metrics.QuotesBuiltTotal.WithLabelValues("sender", "ok").Inc()
	s.logger.InfoContext(ctx, "sender quotes built",
		"sender", pair.Source.Federated,
		"receiver", pair.Destination.Federated,
		"amount", amount.String(),
		"paths", len(quotes),
	)
	return quotes, nil
}
