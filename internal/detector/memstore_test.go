package detector

import (
	"context"
	"errors"
	"sync"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

// memStore is an in-memory BaselineStore for tests.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]models.Baseline // key: user|param|tier
	failFetch bool
	failWrite bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]models.Baseline)}
}

func storeKey(userID, param string, tier vitals.Tier) string {
	return userID + "|" + param + "|" + string(tier)
}

func (m *memStore) FetchBaselines(_ context.Context, userID string, tier vitals.Tier) (map[string]models.Baseline, error) {
	if m.failFetch {
		return nil, errors.New("fetch failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Baseline)
	for _, b := range m.rows {
		if b.UserID == userID && b.ActivityLevel == string(tier) {
			out[b.Parameter] = b
		}
	}
	return out, nil
}

func (m *memStore) FetchBaseline(_ context.Context, userID, param string, tier vitals.Tier) (*models.Baseline, error) {
	if m.failFetch {
		return nil, errors.New("fetch failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.rows[storeKey(userID, param, tier)]; ok {
		copied := b
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) UpsertBaseline(_ context.Context, b *models.Baseline) error {
	if m.failWrite {
		return errors.New("write failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[storeKey(b.UserID, b.Parameter, vitals.Tier(b.ActivityLevel))] = *b
	return nil
}

func (m *memStore) ListBaselines(_ context.Context, userID string) ([]models.Baseline, error) {
	if m.failFetch {
		return nil, errors.New("fetch failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Baseline
	for _, b := range m.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) DeleteBaselines(_ context.Context, userID string) error {
	if m.failWrite {
		return errors.New("write failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, b := range m.rows {
		if b.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memStore) get(userID, param string, tier vitals.Tier) (models.Baseline, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[storeKey(userID, param, tier)]
	return b, ok
}

func (m *memStore) put(b models.Baseline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[storeKey(b.UserID, b.Parameter, vitals.Tier(b.ActivityLevel))] = b
}
