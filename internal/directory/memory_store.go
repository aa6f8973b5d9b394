package directory

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Suitable for tests and single-node
// deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts []*ExternalAccount
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Add registers an external account and returns it with an assigned ID.
func (m *MemoryStore) Add(address, accountType string) *ExternalAccount {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := &ExternalAccount{
		ID:        m.nextID,
		Address:   address,
		Type:      accountType,
		CreatedAt: time.Now().UTC(),
	}
	m.nextID++
	m.accounts = append(m.accounts, acct)
	return acct
}

func (m *MemoryStore) FindByAddress(ctx context.Context, address, accountType string) (*ExternalAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, acct := range m.accounts {
		if acct.Address == address && acct.Type == accountType {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
