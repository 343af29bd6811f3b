package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/AnTengye/auctionhub/backend/model"
)

const propertyColumns = `id, name, type, category, location, town, city, nearest_branch, state, address,
	reserve_price, emd, area, auction_date, publication_date, application_date,
	borrower_name, agent_contact, description, note, images, status, created_at`

// SQLStore persists properties through database/sql. It serves SQLite
// (mattn/go-sqlite3), Postgres via lib/pq ("postgres") and Postgres via pgx ("pgx").
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens the database, waits for it to answer and creates the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: dsn is empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", driver, err)
	}

	return NewSQLStore(ctx, db, driver)
}

// NewSQLStore wraps an open handle and runs the schema migration.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

func (s *SQLStore) isPostgres() bool {
	return s.driver == "postgres" || s.driver == "pgx"
}

func (s *SQLStore) migrate(ctx context.Context) error {
	timestampType := "TIMESTAMP"
	if s.isPostgres() {
		timestampType = "TIMESTAMPTZ"
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id               TEXT          PRIMARY KEY,
			name             TEXT          NOT NULL,
			type             TEXT          NOT NULL,
			category         TEXT          NOT NULL DEFAULT '',
			location         TEXT          NOT NULL,
			town             TEXT          NOT NULL DEFAULT '',
			city             TEXT          NOT NULL DEFAULT '',
			nearest_branch   TEXT          NOT NULL DEFAULT '',
			state            TEXT          NOT NULL,
			address          TEXT          NOT NULL DEFAULT '',
			reserve_price    NUMERIC(18,2) NOT NULL,
			emd              NUMERIC(18,2) NOT NULL,
			area             NUMERIC(18,2),
			auction_date     TEXT          NOT NULL,
			publication_date TEXT          NOT NULL DEFAULT '',
			application_date TEXT          NOT NULL DEFAULT '',
			borrower_name    TEXT          NOT NULL DEFAULT '',
			agent_contact    TEXT          NOT NULL DEFAULT '',
			description      TEXT          NOT NULL DEFAULT '',
			note             TEXT          NOT NULL DEFAULT '',
			images           TEXT          NOT NULL,
			status           TEXT          NOT NULL,
			created_at       `+timestampType+` NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_properties_state ON properties(state)`)
	return err
}

// rebind rewrites ? placeholders to $n for Postgres drivers.
func (s *SQLStore) rebind(query string) string {
	if !s.isPostgres() {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT EXISTS(SELECT 1 FROM properties WHERE id = ?)`), id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check property %s: %w", id, err)
	}
	return exists, nil
}

// Insert relies on the primary key: a concurrent insert of the same id
// affects zero rows (or violates the constraint) and reports ErrDuplicate.
func (s *SQLStore) Insert(ctx context.Context, p *model.Property) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO properties (`+propertyColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO NOTHING`),
		p.ID, p.Name, p.Type, p.Category, p.Location, p.Town, p.City, p.NearestBranch, p.State, p.Address,
		p.ReservePrice, p.EMD, p.Area, p.AuctionDate, p.PublicationDate, p.ApplicationDate,
		p.BorrowerName, p.AgentContact, p.Description, p.Note, string(images), p.Status, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert property %s: %w", p.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert property %s: %w", p.ID, err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+propertyColumns+` FROM properties WHERE id = ?`), id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]*model.Property, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+propertyColumns+`
		FROM properties
		ORDER BY created_at DESC, id
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var properties []*model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM properties WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete property %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*model.Property, error) {
	var (
		p      model.Property
		area   decimal.NullDecimal
		images string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.Category, &p.Location, &p.Town, &p.City, &p.NearestBranch, &p.State, &p.Address,
		&p.ReservePrice, &p.EMD, &area, &p.AuctionDate, &p.PublicationDate, &p.ApplicationDate,
		&p.BorrowerName, &p.AgentContact, &p.Description, &p.Note, &images, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if area.Valid {
		a := area.Decimal
		p.Area = &a
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		slog.Warn("stored images column is not valid json", "property_id", p.ID, "error", err)
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
