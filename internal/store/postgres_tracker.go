package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
)

func (p *PostgresStore) UpsertVerification(ctx context.Context, v *tracker.Verification) error {
	query := `
		INSERT INTO tracker_verifications (domain, last_seen_at, code, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain) DO UPDATE
		SET last_seen_at = EXCLUDED.last_seen_at,
			code = COALESCE(EXCLUDED.code, tracker_verifications.code),
			version = COALESCE(EXCLUDED.version, tracker_verifications.version)
	`

	_, err := p.pool.Exec(ctx, query,
		v.Domain,
		v.LastSeenAt,
		nullableString(v.Code),
		nullableString(v.Version),
	)

	return err
}

func (p *PostgresStore) LatestVerification(ctx context.Context, domains ...string) (*tracker.Verification, error) {
	query := `
		SELECT domain, last_seen_at, COALESCE(code, ''), COALESCE(version, '')
		FROM tracker_verifications
		WHERE domain = ANY($1)
		ORDER BY last_seen_at DESC
		LIMIT 1
	`

	var v tracker.Verification

	err := p.pool.QueryRow(ctx, query, domains).Scan(&v.Domain, &v.LastSeenAt, &v.Code, &v.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tracker.ErrNotFound
		}

		return nil, err
	}

	return &v, nil
}

func (p *PostgresStore) PruneVerifications(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM tracker_verifications WHERE last_seen_at < $1`, before)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
