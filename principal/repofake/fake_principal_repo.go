package fakeprincipalrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sablehq/go-session-server/principal"
)

var _ principal.Repo = (*FakePrincipalRepo)(nil)

type FakePrincipalRepo struct {
	principals map[string]*principal.Principal
	emailIDs   map[string]string // class/email to principal id
	lock       sync.RWMutex
}

func NewFakePrincipalRepo() *FakePrincipalRepo {
	return &FakePrincipalRepo{
		principals: make(map[string]*principal.Principal),
		emailIDs:   make(map[string]string),
	}
}

func emailKey(class principal.Class, email string) string {
	return string(class) + "/" + email
}

func (pr *FakePrincipalRepo) Create(_ context.Context, p *principal.Principal) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	if _, ok := pr.emailIDs[emailKey(p.Class, p.Email)]; ok {
		return principal.ErrDuplicate
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	cp := *p
	pr.principals[p.ID] = &cp
	pr.emailIDs[emailKey(p.Class, p.Email)] = p.ID
	return nil
}

func (pr *FakePrincipalRepo) GetByEmail(_ context.Context, class principal.Class, email string) (*principal.Principal, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	id, ok := pr.emailIDs[emailKey(class, email)]
	if !ok {
		return nil, principal.ErrNotFound
	}
	cp := *pr.principals[id]
	return &cp, nil
}

func (pr *FakePrincipalRepo) GetByID(_ context.Context, class principal.Class, id string) (*principal.Principal, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	p, ok := pr.principals[id]
	if !ok || p.Class != class {
		return nil, principal.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
