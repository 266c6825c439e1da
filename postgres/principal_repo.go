package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sablehq/go-session-server/principal"
)

var _ principal.Repo = (*PrincipalRepo)(nil)

type PrincipalRepo struct{ db *DB }

func NewPrincipalRepo(db *DB) *PrincipalRepo { return &PrincipalRepo{db: db} }

const (
	qPrincipalCreate = `
INSERT INTO principals(id, class, email, username, full_name, phone_number, dob, role,
                       secret_hash, social_auth, social_type, social_token, profile_image)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING created_at;
`
	qPrincipalSelect = `
SELECT id, class, email, username, full_name, phone_number, dob, role,
       secret_hash, social_auth, social_type, social_token, profile_image, created_at
FROM principals
`
	qPrincipalByEmail = qPrincipalSelect + `WHERE class = $1 AND email = $2;`
	qPrincipalByID    = qPrincipalSelect + `WHERE class = $1 AND id = $2;`
)

func (r *PrincipalRepo) Create(ctx context.Context, p *principal.Principal) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	err := r.db.Pool.QueryRow(ctx, qPrincipalCreate,
		p.ID, p.Class, p.Email, p.Username, p.FullName, p.PhoneNumber, p.DOB, p.Role,
		p.SecretHash, p.SocialAuth, p.SocialType, p.SocialToken, p.ProfileImage,
	).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return principal.ErrDuplicate
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

func (r *PrincipalRepo) GetByEmail(ctx context.Context, class principal.Class, email string) (*principal.Principal, error) {
	return r.get(ctx, qPrincipalByEmail, class, email)
}

func (r *PrincipalRepo) GetByID(ctx context.Context, class principal.Class, id string) (*principal.Principal, error) {
	return r.get(ctx, qPrincipalByID, class, id)
}

func (r *PrincipalRepo) get(ctx context.Context, query string, class principal.Class, key string) (*principal.Principal, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p principal.Principal
	err := r.db.Pool.QueryRow(ctx, query, class, key).Scan(
		&p.ID, &p.Class, &p.Email, &p.Username, &p.FullName, &p.PhoneNumber, &p.DOB, &p.Role,
		&p.SecretHash, &p.SocialAuth, &p.SocialType, &p.SocialToken, &p.ProfileImage, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, principal.ErrNotFound
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return &p, nil
}
