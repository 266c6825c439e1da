package refreshrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	records map[string]*refresh.Record // keyed by record ID
	lock    sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		records: make(map[string]*refresh.Record),
	}
}

func (tr *FakeRefreshTokenRepo) Create(_ context.Context, rec *refresh.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	cp := *rec
	tr.records[rec.ID] = &cp
	return nil
}

func (tr *FakeRefreshTokenRepo) Upsert(_ context.Context, rec *refresh.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for _, existing := range tr.records {
		if existing.PrincipalClass == rec.PrincipalClass &&
			existing.PrincipalID == rec.PrincipalID &&
			existing.UserAgent == rec.UserAgent &&
			!existing.IsRevoked {
			existing.Token = rec.Token
			existing.IssuedAt = rec.IssuedAt
			existing.ExpiresAt = rec.ExpiresAt
			existing.IPAddress = rec.IPAddress
			rec.ID = existing.ID
			return nil
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	cp := *rec
	tr.records[rec.ID] = &cp
	return nil
}

func (tr *FakeRefreshTokenRepo) FindActive(_ context.Context, class principal.Class, principalID, tokenStr string) (*refresh.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	for _, rec := range tr.records {
		if rec.PrincipalClass == class && rec.PrincipalID == principalID &&
			rec.Token == tokenStr && !rec.IsRevoked {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, refresh.ErrNotFound
}

func (tr *FakeRefreshTokenRepo) FindByDevice(_ context.Context, class principal.Class, principalID, userAgent string) (*refresh.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	for _, rec := range tr.records {
		if rec.PrincipalClass == class && rec.PrincipalID == principalID &&
			rec.UserAgent == userAgent {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, refresh.ErrNotFound
}

func (tr *FakeRefreshTokenRepo) Revoke(_ context.Context, id string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rec, ok := tr.records[id]
	if !ok {
		return refresh.ErrNotFound
	}
	rec.IsRevoked = true
	return nil
}

func (tr *FakeRefreshTokenRepo) DeleteByToken(_ context.Context, tokenStr string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for id, rec := range tr.records {
		if rec.Token == tokenStr {
			delete(tr.records, id)
			return nil
		}
	}
	return refresh.ErrNotFound
}

func (tr *FakeRefreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var deleted int64
	for id, rec := range tr.records {
		if rec.IsExpired(now) {
			delete(tr.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// ActiveCount reports how many unrevoked, unexpired records exist for a
// principal. Test helper.
func (tr *FakeRefreshTokenRepo) ActiveCount(class principal.Class, principalID string, now time.Time) int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	count := 0
	for _, rec := range tr.records {
		if rec.PrincipalClass == class && rec.PrincipalID == principalID && rec.IsActive(now) {
			count++
		}
	}
	return count
}

// Get returns a record by ID. Test helper.
func (tr *FakeRefreshTokenRepo) Get(id string) (*refresh.Record, bool) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rec, ok := tr.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}
