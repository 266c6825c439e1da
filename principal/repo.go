package principal

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("principal not found")
	ErrDuplicate = errors.New("email already registered")
)

// Repo is the credential store consumed by the session core. Secrets are
// stored hashed; comparison happens via CheckSecretHash on the caller side.
type Repo interface {
	Create(ctx context.Context, p *Principal) error
	GetByEmail(ctx context.Context, class Class, email string) (*Principal, error)
	GetByID(ctx context.Context, class Class, id string) (*Principal, error)
}
