package gatewaytx

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/mbd888/bridgegate/internal/idgen"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the gateway transactions table. Uniqueness is scoped to
// (invoice ID, direction): double-accepts of the same quote are rejected at
// the storage layer, while a loop-back settlement may book its two legs
// under one shared invoice ID.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gateway_transactions (
			id                           VARCHAR(36) PRIMARY KEY,
			direction                    VARCHAR(20) NOT NULL,
			ledger_source_address        VARCHAR(64),
			ledger_destination_address   VARCHAR(64) NOT NULL,
			ledger_destination_tag       VARCHAR(20),
			ledger_destination_amount    NUMERIC(24,8) NOT NULL,
			ledger_destination_currency  VARCHAR(3) NOT NULL,
			ledger_invoice_id            VARCHAR(64) NOT NULL,
			ledger_state                 VARCHAR(20) NOT NULL,
			external_address             VARCHAR(255) NOT NULL,
			external_type                VARCHAR(20) NOT NULL,
			external_amount              NUMERIC(24,8) NOT NULL,
			external_currency            VARCHAR(3) NOT NULL,
			external_direction           VARCHAR(10) NOT NULL,
			created_at                   TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT uq_gateway_tx_invoice_direction UNIQUE (ledger_invoice_id, direction)
		);

		CREATE INDEX IF NOT EXISTS idx_gateway_tx_created ON gateway_transactions(created_at DESC);
	`)
	return err
}

func (p *PostgresStore) CreateGatewayTransaction(ctx context.Context, tx *GatewayTransaction) (*GatewayTransaction, error) {
	stored := *tx
	if stored.ID == "" {
		stored.ID = idgen.WithPrefix("gtx_")
	}
	if stored.Ledger.InvoiceID == "" {
		stored.Ledger.InvoiceID = idgen.Hex(32)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO gateway_transactions (
			id, direction,
			ledger_source_address, ledger_destination_address, ledger_destination_tag,
			ledger_destination_amount, ledger_destination_currency,
			ledger_invoice_id, ledger_state,
			external_address, external_type, external_amount, external_currency, external_direction,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6::NUMERIC(24,8), $7, $8, $9, $10, $11, $12::NUMERIC(24,8), $13, $14, $15)
	`,
		stored.ID, stored.Direction,
		nullable(stored.Ledger.SourceAddress), stored.Ledger.DestinationAddress, nullable(stored.Ledger.DestinationTag),
		stored.Ledger.DestinationAmount.String(), stored.Ledger.DestinationCurrency,
		stored.Ledger.InvoiceID, stored.Ledger.State,
		stored.External.Address, stored.External.Type, stored.External.Amount.String(), stored.External.Currency, stored.External.Direction,
		stored.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateInvoice
		}
		return nil, err
	}
	cp := stored
	return &cp, nil
}

func (p *PostgresStore) GetGatewayTransaction(ctx context.Context, id string) (*GatewayTransaction, error) {
	tx := &GatewayTransaction{}
	var srcAddr, dstTag sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, direction,
			ledger_source_address, ledger_destination_address, ledger_destination_tag,
			ledger_destination_amount, ledger_destination_currency,
			ledger_invoice_id, ledger_state,
			external_address, external_type, external_amount, external_currency, external_direction,
			created_at
		FROM gateway_transactions WHERE id = $1
	`, id).Scan(
		&tx.ID, &tx.Direction,
		&srcAddr, &tx.Ledger.DestinationAddress, &dstTag,
		&tx.Ledger.DestinationAmount, &tx.Ledger.DestinationCurrency,
		&tx.Ledger.InvoiceID, &tx.Ledger.State,
		&tx.External.Address, &tx.External.Type, &tx.External.Amount, &tx.External.Currency, &tx.External.Direction,
		&tx.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tx.Ledger.SourceAddress = srcAddr.String
	tx.Ledger.DestinationTag = dstTag.String
	return tx, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
