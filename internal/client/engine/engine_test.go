package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/places"
	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// clock hands out strictly increasing times so tie-breaks are predictable.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(start time.Time) *clock { return &clock{now: start} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type device struct {
	eng   *Engine
	store places.Repository
	meta  *metadata.SyncState
}

func newDevice(t *testing.T, remote client.Client, clk *clock, purge bool) *device {
	t.Helper()
	return newDeviceWithStore(t, remote, clk, purge, nil)
}

// newDeviceWithStore lets wrap intercept what the engine sees of the store.
// The device helpers keep using the unwrapped store.
func newDeviceWithStore(t *testing.T, remote client.Client, clk *clock, purge bool, wrap func(places.Repository) places.Repository) *device {
	t.Helper()
	ctx := context.Background()

	db, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "places.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos := client.NewRepositories(db)
	store := repos.Places
	if wrap != nil {
		store = wrap(store)
	}
	eng := New(store, repos.Metadata, remote, logging.Discard(), Config{PurgeDeleted: purge, Now: clk.Now})
	return &device{eng: eng, store: repos.Places, meta: metadata.NewSyncState(repos.Metadata)}
}

func place(id string, rt models.RegionType, code string, version int64, at time.Time) *models.PlaceRecord {
	return &models.PlaceRecord{
		ID:             id,
		OwnerID:        "user-1",
		RegionType:     rt,
		RegionCode:     code,
		RegionName:     code,
		Status:         models.StatusVisited,
		VisitType:      models.VisitTypeVisited,
		SyncVersion:    version,
		LastModifiedAt: at,
	}
}

// editingStore writes a user edit to id right after the engine first reads
// it, the way the UI can save between the engine's read and its write.
type editingStore struct {
	places.Repository
	id   string
	edit func(p *models.PlaceRecord)
	once sync.Once
}

func (s *editingStore) GetByID(ctx context.Context, id string) (*models.PlaceRecord, error) {
	p, err := s.Repository.GetByID(ctx, id)
	if err != nil || id != s.id {
		return p, err
	}
	s.once.Do(func() {
		edited := p.Clone()
		s.edit(edited)
		err = s.Repository.Upsert(ctx, edited)
	})
	return p, err
}

func (d *device) put(t *testing.T, p *models.PlaceRecord) {
	t.Helper()
	require.NoError(t, d.store.Upsert(context.Background(), p))
}

func (d *device) get(t *testing.T, id string) *models.PlaceRecord {
	t.Helper()
	p, err := d.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (d *device) cursor(t *testing.T) int64 {
	t.Helper()
	c, err := d.meta.Cursor(context.Background())
	require.NoError(t, err)
	return c
}

func (d *device) sync(t *testing.T) Result {
	t.Helper()
	return d.eng.RunSyncPass(context.Background())
}

func TestRunSyncPass_FirstPushOfNewRecord(t *testing.T) {
	remote := newFakeRemote()
	dev := newDevice(t, remote, newClock(t0), false)
	dev.put(t, place("jp", models.RegionCountry, "JP", 1, t0))

	res := dev.sync(t)

	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Pushed)

	srv := remote.get("jp")
	require.NotNil(t, srv)
	assert.Equal(t, int64(1), srv.SyncVersion)

	local := dev.get(t, "jp")
	assert.True(t, local.IsSynced)
	assert.Equal(t, int64(1), local.SyncVersion)
	assert.Equal(t, int64(1), local.ServerVersion)
}

func TestRunSyncPass_Idempotent(t *testing.T) {
	remote := newFakeRemote()
	remote.put(place("de", models.RegionCountry, "DE", 2, t0))
	dev := newDevice(t, remote, newClock(t0), false)
	dev.put(t, place("jp", models.RegionCountry, "JP", 1, t0))

	first := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, first.Outcome)

	before, err := dev.store.ListAll(context.Background())
	require.NoError(t, err)
	pushes := remote.pushCalls

	second := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, second.Outcome)
	assert.Zero(t, second.Applied)
	assert.Zero(t, second.Pushed)
	assert.Zero(t, second.Conflicts)
	assert.Equal(t, pushes, remote.pushCalls)

	after, err := dev.store.ListAll(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("second pass changed the store (-before +after):\n%s", diff)
	}
}

func activeIDs(t *testing.T, d *device, rt models.RegionType, code string) []string {
	t.Helper()
	active, err := d.store.ListActive(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, p := range active {
		if p.RegionType == rt && strings.EqualFold(p.RegionCode, code) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func TestRunSyncPass_TwoDevicesConvergeOnSameRegion(t *testing.T) {
	tests := []struct {
		name   string
		aFirst bool
		// only a pushed a-fr leaves a tombstone on the server
		wantRemoteTombstone bool
	}{
		{name: "older device syncs first", aFirst: true, wantRemoteTombstone: true},
		{name: "newer device syncs first", aFirst: false, wantRemoteTombstone: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			clk := newClock(t0.Add(time.Hour))
			a := newDevice(t, remote, clk, false)
			b := newDevice(t, remote, clk, false)

			a.put(t, place("a-fr", models.RegionCountry, "FR", 1, t0))
			b.put(t, place("b-fr", models.RegionCountry, "fr", 1, t0.Add(time.Minute)))

			order := []*device{a, b}
			if !tt.aFirst {
				order = []*device{b, a}
			}

			for _, d := range order {
				require.Equal(t, OutcomeSucceeded, d.sync(t).Outcome)
				assert.Len(t, activeIDs(t, d, models.RegionCountry, "FR"), 1)
			}
			for _, d := range order {
				require.Equal(t, OutcomeSucceeded, d.sync(t).Outcome)
			}

			for _, d := range []*device{a, b} {
				if diff := cmp.Diff([]string{"b-fr"}, activeIDs(t, d, models.RegionCountry, "FR")); diff != "" {
					t.Errorf("active FR records mismatch (-want +got):\n%s", diff)
				}

				n, err := d.store.CountUnsynced(context.Background())
				require.NoError(t, err)
				assert.Zero(t, n)

				loser, err := d.store.GetByID(context.Background(), "a-fr")
				if err == nil {
					assert.True(t, loser.IsDeleted)
				} else {
					require.ErrorIs(t, err, common.ErrorNotFound)
				}
			}

			if tt.wantRemoteTombstone {
				require.NotNil(t, remote.get("a-fr"))
				assert.True(t, remote.get("a-fr").IsDeleted)
			} else {
				assert.Nil(t, remote.get("a-fr"))
			}
			assert.False(t, remote.get("b-fr").IsDeleted)
		})
	}
}

func TestRunSyncPass_DeletionPropagates(t *testing.T) {
	remote := newFakeRemote()
	clk := newClock(t0)
	a := newDevice(t, remote, clk, false)
	b := newDevice(t, remote, clk, false)

	a.put(t, place("jp", models.RegionCountry, "JP", 1, t0))
	a.sync(t)
	b.sync(t)
	require.False(t, b.get(t, "jp").IsDeleted)

	p := a.get(t, "jp")
	p.IsDeleted = true
	p.Touch(clk.Now())
	a.put(t, p)

	res := a.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, remote.deleteCalls)
	assert.True(t, p.LastModifiedAt.Equal(remote.get("jp").LastModifiedAt), "server tombstone keeps the delete time")

	b.sync(t)
	got := b.get(t, "jp")
	assert.True(t, got.IsDeleted)
	assert.True(t, got.IsSynced)
	assert.True(t, p.LastModifiedAt.Equal(got.LastModifiedAt))

	active, err := b.store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRunSyncPass_HigherRemoteVersionWins(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "IT", 5, t0)
	srv.Status = models.StatusBucketList
	remote.put(srv)

	dev := newDevice(t, remote, newClock(t0), false)
	local := place("x", models.RegionCountry, "IT", 3, t0.Add(time.Hour))
	local.ServerVersion = 2
	dev.put(t, local)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Conflicts)
	assert.Zero(t, remote.pushCalls)

	got := dev.get(t, "x")
	assert.Equal(t, models.StatusBucketList, got.Status)
	assert.Equal(t, int64(6), got.SyncVersion)
	assert.Equal(t, int64(5), got.ServerVersion)
	assert.True(t, got.IsSynced)
}

func TestRunSyncPass_LocalWinsConflictAndIsPushed(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "IT", 2, t0)
	srv.Status = models.StatusBucketList
	remote.put(srv)

	dev := newDevice(t, remote, newClock(t0), false)
	local := place("x", models.RegionCountry, "IT", 4, t0.Add(time.Hour))
	local.ServerVersion = 1
	dev.put(t, local)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, 1, res.Pushed)

	got := dev.get(t, "x")
	assert.Equal(t, models.StatusVisited, got.Status)
	assert.Equal(t, int64(5), got.SyncVersion)
	assert.True(t, got.IsSynced)
	assert.Equal(t, models.StatusVisited, remote.get("x").Status)
}

func TestRunSyncPass_EditDuringReconcileIsKept(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "NL", 2, t0.Add(time.Minute))
	srv.Status = models.StatusBucketList
	remote.put(srv)

	clk := newClock(t0.Add(time.Hour))
	notes := "canal tour"
	wrap := func(inner places.Repository) places.Repository {
		return &editingStore{Repository: inner, id: "x", edit: func(p *models.PlaceRecord) {
			p.Notes = &notes
			p.Touch(clk.Now())
		}}
	}
	dev := newDeviceWithStore(t, remote, clk, false, wrap)

	local := place("x", models.RegionCountry, "NL", 1, t0)
	local.ServerVersion = 1
	local.IsSynced = true
	dev.put(t, local)
	remote.pushErr["x"] = fmt.Errorf("gateway: %w", client.ErrUnavailable)

	res := dev.sync(t)
	require.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Applied)

	got := dev.get(t, "x")
	require.NotNil(t, got.Notes)
	assert.Equal(t, notes, *got.Notes)
	assert.Equal(t, models.StatusVisited, got.Status)
	assert.False(t, got.IsSynced)
	assert.Equal(t, int64(2), got.SyncVersion)
	assert.Equal(t, int64(1), got.ServerVersion)

	delete(remote.pushErr, "x")
	res = dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Zero(t, res.Skipped)

	got = dev.get(t, "x")
	assert.True(t, got.IsSynced)
	assert.Equal(t, int64(3), got.SyncVersion)

	stored := remote.get("x")
	require.NotNil(t, stored.Notes)
	assert.Equal(t, notes, *stored.Notes)
	assert.Equal(t, models.StatusVisited, stored.Status)
	assert.Equal(t, int64(3), stored.SyncVersion)
}

func TestRunSyncPass_EditDuringPushConflictIsKept(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "CZ", 6, t0)
	srv.Status = models.StatusBucketList
	remote.put(srv)
	remote.hidden["x"] = true

	clk := newClock(t0.Add(2 * time.Hour))
	dev := newDevice(t, remote, clk, false)
	local := place("x", models.RegionCountry, "CZ", 4, t0.Add(time.Hour))
	local.ServerVersion = 1
	dev.put(t, local)

	notes := "prague"
	remote.pushHook = func(ctx context.Context, id string) {
		p := dev.get(t, id)
		if p.Notes != nil {
			return
		}
		p.Notes = &notes
		p.Touch(clk.Now())
		dev.put(t, p)
	}

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, remote.pushCalls, "a skipped save must not be pushed again")

	got := dev.get(t, "x")
	require.NotNil(t, got.Notes)
	assert.Equal(t, notes, *got.Notes)
	assert.Equal(t, int64(5), got.SyncVersion)
	assert.False(t, got.IsSynced)
}

func TestRunSyncPass_PartialFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.put(place("other", models.RegionCountry, "NO", 1, t0))
	dev := newDevice(t, remote, newClock(t0), false)

	for i := 1; i <= 10; i++ {
		dev.put(t, place(fmt.Sprintf("p%02d", i), models.RegionUSState, fmt.Sprintf("S%d", i), 1, t0.Add(time.Duration(i)*time.Second)))
	}
	remote.pushErr["p05"] = fmt.Errorf("gateway: %w", client.ErrUnavailable)

	res := dev.sync(t)
	require.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 9, res.Pushed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "p05", res.Failures[0].ID)
	assert.ErrorIs(t, res.Error(), client.ErrUnavailable)

	assert.False(t, dev.get(t, "p05").IsSynced)
	assert.True(t, dev.get(t, "p06").IsSynced)
	assert.Zero(t, dev.cursor(t), "cursor must not advance after a network failure")

	last, err := dev.meta.LastSyncAt(context.Background())
	require.NoError(t, err)
	assert.False(t, last.IsZero())

	delete(remote.pushErr, "p05")
	res = dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Pushed)
	assert.True(t, dev.get(t, "p05").IsSynced)
	assert.Positive(t, dev.cursor(t))
}

func TestRunSyncPass_UnauthorizedAborts(t *testing.T) {
	remote := newFakeRemote()
	dev := newDevice(t, remote, newClock(t0), false)
	dev.put(t, place("a", models.RegionCountry, "AT", 1, t0))
	dev.put(t, place("b", models.RegionCountry, "BE", 1, t0.Add(time.Second)))
	remote.pushErr["a"] = client.ErrUnauthorized

	res := dev.sync(t)

	require.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, client.ErrUnauthorized)
	assert.Equal(t, 1, remote.pushCalls, "pass must stop at the first auth failure")
	assert.Zero(t, dev.cursor(t))

	last, err := dev.meta.LastSyncAt(context.Background())
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	st := dev.eng.Status(context.Background())
	assert.Equal(t, OutcomeAborted, st.LastOutcome)
	assert.Equal(t, 2, st.UnsyncedCount)
	assert.False(t, st.IsSyncing)
}

func TestRunSyncPass_PullFailureAborts(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = client.ErrUnavailable
	dev := newDevice(t, remote, newClock(t0), false)
	dev.put(t, place("a", models.RegionCountry, "AT", 1, t0))

	res := dev.sync(t)
	require.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, client.ErrUnavailable)
	assert.Zero(t, remote.pushCalls)
	assert.False(t, dev.get(t, "a").IsSynced)
}

func TestRunSyncPass_CancelledBeforePushMarksNothing(t *testing.T) {
	remote := newFakeRemote()
	remote.put(place("srv", models.RegionCountry, "PL", 1, t0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote.listHook = func(context.Context, int) { cancel() }

	dev := newDevice(t, remote, newClock(t0), false)
	dev.put(t, place("a", models.RegionCountry, "AT", 1, t0))

	res := dev.eng.RunSyncPass(ctx)
	require.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, remote.pushCalls)
	assert.False(t, dev.get(t, "a").IsSynced)
	assert.Zero(t, dev.cursor(t))
}

func TestRunSyncPass_CoalescesConcurrentTriggers(t *testing.T) {
	remote := newFakeRemote()
	started := make(chan struct{})
	release := make(chan struct{})
	remote.listHook = func(_ context.Context, call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	dev := newDevice(t, remote, newClock(t0), false)

	done := make(chan Result, 1)
	go func() { done <- dev.sync(t) }()
	<-started

	assert.True(t, dev.eng.Status(context.Background()).IsSyncing)
	assert.Equal(t, OutcomeCoalesced, dev.sync(t).Outcome)
	assert.Equal(t, OutcomeCoalesced, dev.sync(t).Outcome)

	close(release)
	res := <-done
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 2, remote.listCalls, "triggers during a pass collapse into one follow-up")
}

func TestRunSyncPass_PushConflictRetriedOnce(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "CZ", 4, t0)
	srv.Status = models.StatusBucketList
	remote.put(srv)
	remote.hidden["x"] = true

	dev := newDevice(t, remote, newClock(t0), false)
	local := place("x", models.RegionCountry, "CZ", 4, t0.Add(time.Hour))
	local.ServerVersion = 1
	dev.put(t, local)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 2, remote.pushCalls)

	got := dev.get(t, "x")
	assert.Equal(t, int64(5), got.SyncVersion)
	assert.True(t, got.IsSynced)

	stored := remote.get("x")
	assert.Equal(t, int64(5), stored.SyncVersion)
	assert.Equal(t, models.StatusVisited, stored.Status)
}

func TestRunSyncPass_PushConflictRemoteWins(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "CZ", 6, t0)
	srv.Status = models.StatusBucketList
	remote.put(srv)
	remote.hidden["x"] = true

	dev := newDevice(t, remote, newClock(t0), false)
	local := place("x", models.RegionCountry, "CZ", 4, t0.Add(time.Hour))
	local.ServerVersion = 1
	dev.put(t, local)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, remote.pushCalls)

	got := dev.get(t, "x")
	assert.Equal(t, models.StatusBucketList, got.Status)
	assert.Equal(t, int64(7), got.SyncVersion)
	assert.Equal(t, int64(6), got.ServerVersion)
	assert.True(t, got.IsSynced)
}

func TestRunSyncPass_PushConflictTwiceIsFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.put(place("x", models.RegionCountry, "CZ", 1, t0))
	remote.hidden["x"] = true
	remote.alwaysConflict["x"] = true

	dev := newDevice(t, remote, newClock(t0), false)
	local := place("x", models.RegionCountry, "CZ", 3, t0.Add(time.Hour))
	local.VisitType = models.VisitTypeTransit
	local.ServerVersion = 1
	dev.put(t, local)

	res := dev.sync(t)
	require.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, common.ErrVersionConflict)
	assert.False(t, dev.get(t, "x").IsSynced)
}

func TestRunSyncPass_RecoversLostAck(t *testing.T) {
	remote := newFakeRemote()
	srv := place("x", models.RegionCountry, "SE", 2, t0)
	remote.put(srv)

	dev := newDevice(t, remote, newClock(t0), false)
	local := srv.Clone()
	local.ServerVersion = 1
	dev.put(t, local)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Zero(t, res.Conflicts)
	assert.Zero(t, remote.pushCalls)

	got := dev.get(t, "x")
	assert.True(t, got.IsSynced)
	assert.Equal(t, int64(2), got.ServerVersion)
}

func TestRunSyncPass_DeleteOfUnknownIDIsAcknowledged(t *testing.T) {
	remote := newFakeRemote()
	dev := newDevice(t, remote, newClock(t0), false)
	p := place("gone", models.RegionCountry, "FI", 2, t0)
	p.IsDeleted = true
	dev.put(t, p)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Pushed)
	assert.True(t, dev.get(t, "gone").IsSynced)
}

func TestRunSyncPass_PurgesAcknowledgedTombstones(t *testing.T) {
	remote := newFakeRemote()
	dev := newDevice(t, remote, newClock(t0), true)
	p := place("gone", models.RegionCountry, "FI", 2, t0)
	p.IsDeleted = true
	dev.put(t, p)

	res := dev.sync(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, int64(1), res.Purged)

	all, err := dev.store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRunSyncPass_InvalidRemoteRecordDoesNotBlockCursor(t *testing.T) {
	remote := newFakeRemote()
	bad := place("bad", models.RegionType("galaxy"), "M31", 1, t0)
	remote.put(bad)
	remote.put(place("ok", models.RegionCountry, "PT", 1, t0))

	dev := newDevice(t, remote, newClock(t0), false)
	res := dev.sync(t)

	require.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad", res.Failures[0].ID)
	assert.True(t, dev.get(t, "ok").IsSynced)
	assert.Equal(t, int64(2), dev.cursor(t))
}

func TestRunSyncPass_PanicBecomesAbort(t *testing.T) {
	remote := newFakeRemote()
	remote.listPanic = true
	dev := newDevice(t, remote, newClock(t0), false)

	var res Result
	require.NotPanics(t, func() { res = dev.sync(t) })
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorContains(t, res.Err, "panicked")

	remote.listPanic = false
	assert.Equal(t, OutcomeSucceeded, dev.sync(t).Outcome)
}

func TestSubscribe_ReportsStateTransitions(t *testing.T) {
	remote := newFakeRemote()
	dev := newDevice(t, remote, newClock(t0), false)

	ch, cancel := dev.eng.Subscribe(16)
	defer cancel()

	dev.sync(t)

	var states []State
	for len(ch) > 0 {
		states = append(states, (<-ch).State)
	}
	assert.Equal(t, []State{StatePulling, StateReconciling, StatePushing, StateFinalizing, StateIdle}, states)

	st := dev.eng.Status(context.Background())
	assert.Equal(t, OutcomeSucceeded, st.LastOutcome)
	assert.False(t, st.LastSyncAt.IsZero())
	assert.NoError(t, st.LastError)
}
