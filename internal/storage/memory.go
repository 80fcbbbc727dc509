package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

// MemoryStore backs local runs and tests. Copies in, copies out, so callers
// never share ride pointers with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	rides    map[string]models.Ride
	accounts map[string]models.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[string]models.Ride),
		accounts: make(map[string]models.Account),
	}
}

func (m *MemoryStore) SaveRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, apperr.NotFoundf("ride %s not found", id)
	}
	out := r
	return &out, nil
}

func (m *MemoryStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; !ok {
		return apperr.NotFoundf("ride %s not found", r.ID)
	}
	r.UpdatedAt = time.Now()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email && existing.Role == a.Role {
			return apperr.Conflictf("account %s already exists", a.Email)
		}
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *MemoryStore) AccountByEmail(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Email == email && a.Role == role {
			out := a
			return &out, nil
		}
	}
	return nil, apperr.NotFoundf("account %s not found", email)
}

func (m *MemoryStore) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, apperr.NotFoundf("account %s not found", id)
	}
	out := a
	return &out, nil
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return apperr.NotFoundf("account %s not found", a.ID)
	}
	a.UpdatedAt = time.Now()
	m.accounts[a.ID] = *a
	return nil
}
