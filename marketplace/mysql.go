package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hupe1980/carbonmesh/logging"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS carbon_offer (
  company_id        VARCHAR(64)  NOT NULL PRIMARY KEY,
  company_name      VARCHAR(255) NOT NULL,
  wallet_address    VARCHAR(128) NOT NULL,
  network           VARCHAR(32)  NOT NULL,
  offer_price       DOUBLE       NOT NULL,
  available_credits INT          NOT NULL
);
CREATE TABLE IF NOT EXISTS credit_purchase (
  id             BIGINT AUTO_INCREMENT PRIMARY KEY,
  company_id     VARCHAR(64)  NOT NULL,
  credits        INT          NOT NULL,
  unit_price     DOUBLE       NOT NULL,
  total_price    DOUBLE       NOT NULL,
  transaction_id VARCHAR(255) NOT NULL,
  created_at     TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  INDEX idx_purchase_company (company_id)
);`

// MySQLOptions configure the MySQL-backed store.
type MySQLOptions struct {
	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int
	// Logger receives query diagnostics.
	Logger logging.Logger
}

// MySQLStore is a Store backed by MySQL. Purchases run inside a transaction
// with a row lock on the offer so concurrent buyers cannot oversell.
type MySQLStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewMySQLStore opens a connection pool for the given DSN and verifies it.
func NewMySQLStore(ctx context.Context, dsn string, optFns ...func(o *MySQLOptions)) (*MySQLStore, error) {
	opts := MySQLOptions{MaxOpenConns: 10, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &MySQLStore{db: db, logger: opts.Logger}, nil
}

// Migrate creates the offer and purchase tables if they do not exist.
func (s *MySQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(schemaDDL) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate marketplace schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

// Search implements Store.
func (s *MySQLStore) Search(ctx context.Context, f Filter) ([]Offer, error) {
	query := `SELECT company_id, company_name, wallet_address, network, offer_price, available_credits
	          FROM carbon_offer WHERE 1=1`
	var args []any
	if f.MaxPrice > 0 {
		query += " AND offer_price <= ?"
		args = append(args, f.MaxPrice)
	}
	if f.MinCredits > 0 {
		query += " AND available_credits >= ?"
		args = append(args, f.MinCredits)
	}
	query += " ORDER BY offer_price ASC, company_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.CompanyID, &o.CompanyName, &o.WalletAddress, &o.Network, &o.OfferPrice, &o.AvailableCredits); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Get implements Store.
func (s *MySQLStore) Get(ctx context.Context, companyID string) (*Offer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT company_id, company_name, wallet_address, network, offer_price, available_credits
		 FROM carbon_offer WHERE company_id = ?`, companyID)

	var o Offer
	if err := row.Scan(&o.CompanyID, &o.CompanyName, &o.WalletAddress, &o.Network, &o.OfferPrice, &o.AvailableCredits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return &o, nil
}

// Purchase implements Store.
func (s *MySQLStore) Purchase(ctx context.Context, companyID string, credits int, txID string) (*Purchase, error) {
	if credits <= 0 {
		return nil, ErrInsufficientCredit
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purchase tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var available int
	var unitPrice float64
	row := tx.QueryRowContext(ctx,
		`SELECT available_credits, offer_price FROM carbon_offer WHERE company_id = ? FOR UPDATE`, companyID)
	if err := row.Scan(&available, &unitPrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("lock offer row: %w", err)
	}
	if credits > available {
		return nil, ErrInsufficientCredit
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carbon_offer SET available_credits = available_credits - ? WHERE company_id = ?`,
		credits, companyID); err != nil {
		return nil, fmt.Errorf("decrement credits: %w", err)
	}

	total := float64(credits) * unitPrice
	res, err := tx.ExecContext(ctx,
		`INSERT INTO credit_purchase (company_id, credits, unit_price, total_price, transaction_id)
		 VALUES (?, ?, ?, ?, ?)`,
		companyID, credits, unitPrice, total, txID)
	if err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	id, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	s.logger.Info("marketplace.purchase", "company_id", companyID, "credits", credits, "total", total, "tx_id", txID)

	return &Purchase{
		ID:            id,
		CompanyID:     companyID,
		Credits:       credits,
		UnitPrice:     unitPrice,
		TotalPrice:    total,
		TransactionID: txID,
		CreatedAt:     time.Now(),
	}, nil
}

// Purchases implements Store.
func (s *MySQLStore) Purchases(ctx context.Context, companyID string) ([]Purchase, error) {
	query := `SELECT id, company_id, credits, unit_price, total_price, transaction_id, created_at
	          FROM credit_purchase`
	var args []any
	if companyID != "" {
		query += " WHERE company_id = ?"
		args = append(args, companyID)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Credits, &p.UnitPrice, &p.TotalPrice, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func splitStatements(ddl string) []string {
	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ Store = (*MySQLStore)(nil)
