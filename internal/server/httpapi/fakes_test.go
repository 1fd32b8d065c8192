package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/server/models"
	"github.com/dmitrijs2005/placesync/internal/server/services"
)

type fakeAuth struct{}

// Authenticate accepts "token-<user>".
func (fakeAuth) Authenticate(ctx context.Context, token string) (string, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", common.ErrorUnauthorized
	}
	return token[len(prefix):], nil
}

// memPlaces keeps places per user and applies the same version rules as
// services.PlaceService.
type memPlaces struct {
	mu     sync.Mutex
	seq    map[string]int64
	places map[string]map[string]*models.Place
	synced map[string]models.SyncStatus
	err    error
	panics bool
}

// memNow is the clock of memPlaces.
var memNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMemPlaces() *memPlaces {
	return &memPlaces{
		seq:    map[string]int64{},
		places: map[string]map[string]*models.Place{},
		synced: map[string]models.SyncStatus{},
	}
}

func (m *memPlaces) List(ctx context.Context, userID string, since int64) ([]*models.Place, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("list exploded")
	}
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*models.Place
	for _, p := range m.places[userID] {
		if p.ChangeSeq > since {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, m.seq[userID], nil
}

func (m *memPlaces) Get(ctx context.Context, userID, id string) (*models.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[userID][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlaces) Put(ctx context.Context, userID string, p *models.Place) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.places[userID][p.ID]; ok {
		if stored.Version > p.Version || (stored.Version == p.Version && !stored.SameContent(p)) {
			cp := *stored
			return 0, &services.ConflictError{Current: &cp}
		}
	}
	m.store(userID, p)
	m.recordSync(ctx, userID)
	return p.Version, nil
}

func (m *memPlaces) Delete(ctx context.Context, userID, id string, version int64, modifiedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.places[userID][id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	if stored.Version > version {
		cp := *stored
		return 0, &services.ConflictError{Current: &cp}
	}
	if modifiedAt.IsZero() {
		modifiedAt = memNow
	}
	tomb := *stored
	tomb.IsDeleted = true
	tomb.Version = version
	tomb.LastModifiedAt = modifiedAt.UTC()
	m.store(userID, &tomb)
	m.recordSync(ctx, userID)
	return version, nil
}

func (m *memPlaces) Status(ctx context.Context, userID string) (*models.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	st := m.synced[userID]
	st.CurrentSeq = m.seq[userID]
	return &st, nil
}

func (m *memPlaces) recordSync(ctx context.Context, userID string) {
	at := memNow
	m.synced[userID] = models.SyncStatus{LastSyncAt: &at, LastSyncDevice: services.DeviceIDFromContext(ctx)}
}

func (m *memPlaces) store(userID string, p *models.Place) {
	if m.places[userID] == nil {
		m.places[userID] = map[string]*models.Place{}
	}
	m.seq[userID]++
	cp := *p
	cp.UserID = userID
	cp.ChangeSeq = m.seq[userID]
	m.places[userID][p.ID] = &cp
}

var errBoom = errors.New("boom")
