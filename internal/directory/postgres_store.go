package directory

import (
	"context"
	"database/sql"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the external accounts table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS external_accounts (
			id          BIGSERIAL PRIMARY KEY,
			address     VARCHAR(255) NOT NULL,
			type        VARCHAR(20) NOT NULL,
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT uq_external_address_type UNIQUE (address, type)
		);
	`)
	return err
}

func (p *PostgresStore) FindByAddress(ctx context.Context, address, accountType string) (*ExternalAccount, error) {
	acct := &ExternalAccount{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, address, type, created_at
		FROM external_accounts
		WHERE address = $1 AND type = $2
	`, address, accountType).Scan(&acct.ID, &acct.Address, &acct.Type, &acct.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Add registers an external account.
func (p *PostgresStore) Add(ctx context.Context, address, accountType string) (*ExternalAccount, error) {
	acct := &ExternalAccount{Address: address, Type: accountType}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO external_accounts (address, type, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at
	`, address, accountType).Scan(&acct.ID, &acct.CreatedAt)
	if err != nil {
		return nil, err
	}
	return acct, nil
}
