package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/models"
)

// fakeRemote is an in-memory places service with the same acceptance rules
// as the real one: a push is rejected when the stored version is newer, or
// equal with different content.
type fakeRemote struct {
	mu      sync.Mutex
	seq     int64
	places  map[string]*models.PlaceRecord
	changed map[string]int64

	hidden         map[string]bool
	pushErr        map[string]error
	alwaysConflict map[string]bool
	listErr        error
	listHook       func(ctx context.Context, call int)
	pushHook       func(ctx context.Context, id string)
	listPanic      bool

	listCalls   int
	pushCalls   int
	deleteCalls int
	getCalls    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		places:         make(map[string]*models.PlaceRecord),
		changed:        make(map[string]int64),
		hidden:         make(map[string]bool),
		pushErr:        make(map[string]error),
		alwaysConflict: make(map[string]bool),
	}
}

func (f *fakeRemote) put(p *models.PlaceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(p)
}

func (f *fakeRemote) store(p *models.PlaceRecord) {
	c := p.Clone()
	c.IsSynced = false
	c.ServerVersion = 0
	f.seq++
	f.places[c.ID] = c
	f.changed[c.ID] = f.seq
}

func (f *fakeRemote) get(id string) *models.PlaceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.places[id]; ok {
		return p.Clone()
	}
	return nil
}

func (f *fakeRemote) ListPlaces(ctx context.Context, since int64) ([]*models.PlaceRecord, int64, error) {
	f.mu.Lock()
	f.listCalls++
	call, hook := f.listCalls, f.listHook
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPanic {
		panic("list exploded")
	}
	if f.listErr != nil {
		return nil, 0, f.listErr
	}

	out := make([]*models.PlaceRecord, 0)
	for id, p := range f.places {
		if f.changed[id] > since && !f.hidden[id] {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.changed[out[i].ID] < f.changed[out[j].ID] })
	return out, f.seq, nil
}

func (f *fakeRemote) GetPlace(ctx context.Context, id string) (*models.PlaceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	p, ok := f.places[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	return p.Clone(), nil
}

func (f *fakeRemote) conflict(id string) *client.ConflictError {
	stored := f.places[id]
	return &client.ConflictError{ServerVersion: stored.SyncVersion, ServerRecord: stored.Clone()}
}

func (f *fakeRemote) CreateOrUpdatePlace(ctx context.Context, p *models.PlaceRecord) (int64, error) {
	if f.pushHook != nil {
		f.pushHook(ctx, p.ID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls++

	if err := f.pushErr[p.ID]; err != nil {
		return 0, err
	}
	stored, ok := f.places[p.ID]
	if ok && (f.alwaysConflict[p.ID] || stored.SyncVersion > p.SyncVersion ||
		(stored.SyncVersion == p.SyncVersion && !stored.SameContent(p))) {
		return 0, f.conflict(p.ID)
	}
	f.store(p)
	return p.SyncVersion, nil
}

func (f *fakeRemote) DeletePlace(ctx context.Context, id string, version int64, modifiedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++

	if err := f.pushErr[id]; err != nil {
		return 0, err
	}
	stored, ok := f.places[id]
	if !ok {
		return 0, client.ErrNotFound
	}
	if f.alwaysConflict[id] || stored.SyncVersion > version || (stored.SyncVersion == version && !stored.IsDeleted) {
		return 0, f.conflict(id)
	}
	c := stored.Clone()
	c.IsDeleted = true
	c.SyncVersion = version
	c.LastModifiedAt = modifiedAt.UTC()
	f.store(c)
	return version, nil
}

func (f *fakeRemote) Ping(ctx context.Context) error { return nil }
