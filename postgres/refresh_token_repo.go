package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/token/refresh"
)

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens(id, principal_class, principal_id, token, issued_at, expires_at,
                           is_revoked, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	// One active record per (class, principal, device); the device key is
	// backed by a partial unique index over unrevoked rows.
	qRTUpsert = `
INSERT INTO refresh_tokens(id, principal_class, principal_id, token, issued_at, expires_at,
                           is_revoked, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
ON CONFLICT (principal_class, principal_id, user_agent) WHERE is_revoked = FALSE
DO UPDATE SET token      = EXCLUDED.token,
              issued_at  = EXCLUDED.issued_at,
              expires_at = EXCLUDED.expires_at,
              is_revoked = FALSE,
              ip_address = EXCLUDED.ip_address
RETURNING id;
`
	qRTSelect = `
SELECT id, principal_class, principal_id, token, issued_at, expires_at, is_revoked, ip_address, user_agent
FROM refresh_tokens
`
	qRTFindActive = qRTSelect + `
WHERE principal_class = $1 AND principal_id = $2 AND token = $3 AND is_revoked = FALSE
LIMIT 1;
`
	qRTFindByDevice = qRTSelect + `
WHERE principal_class = $1 AND principal_id = $2 AND user_agent = $3
ORDER BY issued_at DESC
LIMIT 1;
`
	qRTRevoke        = `UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1;`
	qRTDeleteByToken = `DELETE FROM refresh_tokens WHERE token = $1;`
	qRTDeleteExpired = `DELETE FROM refresh_tokens WHERE expires_at < $1;`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, rec *refresh.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.db.Pool.Exec(ctx, qRTCreate,
		rec.ID, rec.PrincipalClass, rec.PrincipalID, rec.Token,
		rec.IssuedAt, rec.ExpiresAt, rec.IsRevoked, rec.IPAddress, rec.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("create refresh record: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) Upsert(ctx context.Context, rec *refresh.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	err := r.db.Pool.QueryRow(ctx, qRTUpsert,
		rec.ID, rec.PrincipalClass, rec.PrincipalID, rec.Token,
		rec.IssuedAt, rec.ExpiresAt, rec.IPAddress, rec.UserAgent,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("upsert refresh record: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindActive(ctx context.Context, class principal.Class, principalID, tokenStr string) (*refresh.Record, error) {
	return r.find(ctx, qRTFindActive, class, principalID, tokenStr)
}

func (r *RefreshTokenRepo) FindByDevice(ctx context.Context, class principal.Class, principalID, userAgent string) (*refresh.Record, error) {
	return r.find(ctx, qRTFindByDevice, class, principalID, userAgent)
}

func (r *RefreshTokenRepo) find(ctx context.Context, query string, class principal.Class, principalID, key string) (*refresh.Record, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rec refresh.Record
	err := r.db.Pool.QueryRow(ctx, query, class, principalID, key).Scan(
		&rec.ID, &rec.PrincipalClass, &rec.PrincipalID, &rec.Token,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.IsRevoked, &rec.IPAddress, &rec.UserAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh record: %w", err)
	}
	return &rec, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, id string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTRevoke, id)
	if err != nil {
		return fmt.Errorf("revoke refresh record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return refresh.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteByToken(ctx context.Context, tokenStr string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTDeleteByToken, tokenStr)
	if err != nil {
		return fmt.Errorf("delete refresh record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return refresh.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTDeleteExpired, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh records: %w", err)
	}
	return tag.RowsAffected(), nil
}
