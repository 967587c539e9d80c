package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation = "23505"
	pgUndefinedColumn = "42703"
)

// PostgresStore is a PostgreSQL implementation of the attribution and tracker repositories.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates missing tables and indexes. Existing tables are left untouched.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)

	return err
}

func (p *PostgresStore) Save(ctx context.Context, link *attribution.Link) error {
	query := `
		INSERT INTO links (code, destination_url, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64

	err := p.pool.QueryRow(ctx, query,
		string(link.Code),
		link.DestinationURL,
		string(link.OwnerID),
		link.CreatedAt,
	).Scan(&id)
	if err != nil {
		return mapError(err)
	}

	link.ID = attribution.LinkID(id)

	return nil
}

func (p *PostgresStore) GetByCode(ctx context.Context, code attribution.Code) (*attribution.Link, error) {
	query := `
		SELECT id, code, destination_url, owner_id, created_at
		FROM links
		WHERE code = $1
	`

	link, err := scanLink(p.pool.QueryRow(ctx, query, string(code)))
	if err != nil {
		return nil, mapError(err)
	}

	return link, nil
}

func (p *PostgresStore) ListByOwner(ctx context.Context, owner attribution.OwnerID) ([]attribution.Link, error) {
	query := `
		SELECT id, code, destination_url, owner_id, created_at
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := p.pool.Query(ctx, query, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]attribution.Link, 0)

	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}

		links = append(links, *link)
	}

	return links, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, code attribution.Code, owner attribution.OwnerID) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM links WHERE code = $1 AND owner_id = $2`,
		string(code), string(owner),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return attribution.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) SaveClick(ctx context.Context, click *attribution.Click) error {
	query := `
		INSERT INTO clicks (link_id, visitor_id, ip, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64

	err := p.pool.QueryRow(ctx, query,
		int64(click.LinkID),
		string(click.VisitorID),
		click.IP,
		click.CreatedAt,
	).Scan(&id)
	if err != nil {
		return mapError(err)
	}

	click.ID = attribution.ClickID(id)

	return nil
}

func (p *PostgresStore) GetClick(ctx context.Context, id attribution.ClickID) (*attribution.Click, error) {
	query := `
		SELECT id, link_id, visitor_id, ip, created_at
		FROM clicks
		WHERE id = $1
	`

	click, err := scanClick(p.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		return nil, mapError(err)
	}

	return click, nil
}

func (p *PostgresStore) FindRecentClick(
	ctx context.Context,
	linkID attribution.LinkID,
	visitor attribution.VisitorID,
	since time.Time,
) (*attribution.Click, error) {
	query := `
		SELECT id, link_id, visitor_id, ip, created_at
		FROM clicks
		WHERE link_id = $1 AND visitor_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	click, err := scanClick(p.pool.QueryRow(ctx, query, int64(linkID), string(visitor), since))
	if err != nil {
		return nil, mapError(err)
	}

	return click, nil
}

func (p *PostgresStore) CountClicks(ctx context.Context, linkID attribution.LinkID) (attribution.ClickCounts, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT visitor_id)
		FROM clicks
		WHERE link_id = $1
	`

	var counts attribution.ClickCounts

	err := p.pool.QueryRow(ctx, query, int64(linkID)).Scan(&counts.Total, &counts.Unique)

	return counts, err
}

func (p *PostgresStore) SaveConversion(ctx context.Context, conversion *attribution.Conversion) error {
	var (
		query string
		args  []any
	)

	if conversion.OrderID != "" {
		query = `
			INSERT INTO conversions (link_id, click_id, visitor_id, value_cents, order_id, kind, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		args = []any{
			int64(conversion.LinkID),
			nullableClickID(conversion.ClickID),
			string(conversion.VisitorID),
			int64(conversion.Amount),
			conversion.OrderID,
			string(conversion.Kind),
			conversion.CreatedAt,
		}
	} else {
		query = `
			INSERT INTO conversions (link_id, click_id, visitor_id, value_cents, kind, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		args = []any{
			int64(conversion.LinkID),
			nullableClickID(conversion.ClickID),
			string(conversion.VisitorID),
			int64(conversion.Amount),
			string(conversion.Kind),
			conversion.CreatedAt,
		}
	}

	var id int64

	if err := p.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return mapError(err)
	}

	conversion.ID = attribution.ConversionID(id)

	return nil
}

func (p *PostgresStore) FindConversionByOrderID(
	ctx context.Context,
	linkID attribution.LinkID,
	orderID string,
) (*attribution.Conversion, error) {
	query := `
		SELECT id, link_id, click_id, visitor_id, value_cents, order_id, kind, created_at
		FROM conversions
		WHERE link_id = $1 AND order_id = $2
		LIMIT 1
	`

	conversion, err := scanConversion(p.pool.QueryRow(ctx, query, int64(linkID), orderID))
	if err != nil {
		return nil, mapError(err)
	}

	return conversion, nil
}

func (p *PostgresStore) FindRecentConversion(
	ctx context.Context,
	linkID attribution.LinkID,
	since time.Time,
) (*attribution.Conversion, error) {
	// order_id is left out so the window check works on schemas without it
	query := `
		SELECT id, link_id, click_id, visitor_id, value_cents, NULL::text, kind, created_at
		FROM conversions
		WHERE link_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	conversion, err := scanConversion(p.pool.QueryRow(ctx, query, int64(linkID), since))
	if err != nil {
		return nil, mapError(err)
	}

	return conversion, nil
}

func (p *PostgresStore) SumConversions(
	ctx context.Context,
	linkID attribution.LinkID,
) (attribution.ConversionTotals, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'lead'),
			COUNT(*) FILTER (WHERE kind <> 'lead'),
			COALESCE(SUM(value_cents) FILTER (WHERE kind <> 'lead'), 0)
		FROM conversions
		WHERE link_id = $1
	`

	var (
		totals  attribution.ConversionTotals
		revenue int64
	)

	err := p.pool.QueryRow(ctx, query, int64(linkID)).Scan(&totals.Leads, &totals.Sales, &revenue)
	totals.SalesRevenue = attribution.Amount(revenue)

	return totals, err
}

// Shutdown closes the connection pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

func scanLink(row pgx.Row) (*attribution.Link, error) {
	var (
		link  attribution.Link
		id    int64
		code  string
		owner string
	)

	if err := row.Scan(&id, &code, &link.DestinationURL, &owner, &link.CreatedAt); err != nil {
		return nil, err
	}

	link.ID = attribution.LinkID(id)
	link.Code = attribution.Code(code)
	link.OwnerID = attribution.OwnerID(owner)

	return &link, nil
}

func scanClick(row pgx.Row) (*attribution.Click, error) {
	var (
		click   attribution.Click
		id      int64
		linkID  int64
		visitor string
	)

	if err := row.Scan(&id, &linkID, &visitor, &click.IP, &click.CreatedAt); err != nil {
		return nil, err
	}

	click.ID = attribution.ClickID(id)
	click.LinkID = attribution.LinkID(linkID)
	click.VisitorID = attribution.VisitorID(visitor)

	return &click, nil
}

func scanConversion(row pgx.Row) (*attribution.Conversion, error) {
	var (
		conversion attribution.Conversion
		id         int64
		linkID     int64
		clickID    *int64
		visitor    string
		cents      int64
		orderID    *string
		kind       string
	)

	err := row.Scan(&id, &linkID, &clickID, &visitor, &cents, &orderID, &kind, &conversion.CreatedAt)
	if err != nil {
		return nil, err
	}

	conversion.ID = attribution.ConversionID(id)
	conversion.LinkID = attribution.LinkID(linkID)
	conversion.VisitorID = attribution.VisitorID(visitor)
	conversion.Amount = attribution.Amount(cents)
	conversion.Kind = attribution.Kind(kind)

	if clickID != nil {
		conversion.ClickID = attribution.ClickID(*clickID)
	}

	if orderID != nil {
		conversion.OrderID = *orderID
	}

	return &conversion, nil
}

func nullableClickID(id attribution.ClickID) *int64 {
	if id == 0 {
		return nil
	}

	v := int64(id)

	return &v
}

// mapError translates driver errors into domain sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return attribution.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return attribution.ErrDuplicate
		case pgUndefinedColumn:
			return attribution.ErrOrderIDUnsupported
		}
	}

	return err
}
