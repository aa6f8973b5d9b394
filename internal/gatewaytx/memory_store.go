package gatewaytx

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/bridgegate/internal/idgen"
)

// MemoryStore implements Store in memory. It enforces the same
// (invoice ID, direction) uniqueness the Postgres schema does.
type MemoryStore struct {
	mu       sync.RWMutex
	txs      map[string]*GatewayTransaction
	invoices map[invoiceKey]struct{}
}

type invoiceKey struct {
	invoiceID string
	direction string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:      make(map[string]*GatewayTransaction),
		invoices: make(map[invoiceKey]struct{}),
	}
}

func (m *MemoryStore) CreateGatewayTransaction(ctx context.Context, tx *GatewayTransaction) (*GatewayTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *tx
	if stored.ID == "" {
		stored.ID = idgen.WithPrefix("gtx_")
	}
	if stored.Ledger.InvoiceID == "" {
		// 256-bit invoice identifier for correlating the ledger payment.
		stored.Ledger.InvoiceID = idgen.Hex(32)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	key := invoiceKey{stored.Ledger.InvoiceID, stored.Direction}
	if _, dup := m.invoices[key]; dup {
		return nil, ErrDuplicateInvoice
	}

	m.invoices[key] = struct{}{}
	m.txs[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryStore) GetGatewayTransaction(ctx context.Context, id string) (*GatewayTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}
