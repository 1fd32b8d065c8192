package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/client"
	"github.com/dmitrijs2005/placesync/internal/client/config"
	"github.com/dmitrijs2005/placesync/internal/client/engine"
	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/client/services"
	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptAll stores every push and never conflicts.
type acceptAll struct {
	mu     sync.Mutex
	stored map[string]*models.PlaceRecord
}

func (a *acceptAll) ListPlaces(ctx context.Context, since int64) ([]*models.PlaceRecord, int64, error) {
	return nil, since, nil
}

func (a *acceptAll) GetPlace(ctx context.Context, id string) (*models.PlaceRecord, error) {
	return nil, client.ErrNotFound
}

func (a *acceptAll) CreateOrUpdatePlace(ctx context.Context, p *models.PlaceRecord) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stored[p.ID] = p.Clone()
	return p.SyncVersion, nil
}

func (a *acceptAll) DeletePlace(ctx context.Context, id string, version int64, modifiedAt time.Time) (int64, error) {
	return version, nil
}

func (a *acceptAll) Ping(ctx context.Context) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabasePath = filepath.Join(t.TempDir(), "app.db")
	c.Log.File = filepath.Join(t.TempDir(), "app.log")
	return c
}

func TestNewApp_MutateAndSync(t *testing.T) {
	ctx := context.Background()
	remote := &acceptAll{stored: make(map[string]*models.PlaceRecord)}

	a, err := NewApp(ctx, testConfig(t), remote)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	p, err := a.Places().MarkVisited(ctx, services.Region{Type: models.RegionCountry, Code: "JP", Name: "Japan"}, models.VisitTypeVisited, nil)
	require.NoError(t, err)

	res, err := a.Scheduler().SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Pushed)
	assert.Contains(t, remote.stored, p.ID)

	st := a.Engine().Status(ctx)
	assert.Zero(t, st.UnsyncedCount)
}

func TestNewApp_DeviceIDIsStable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	remote := &acceptAll{stored: make(map[string]*models.PlaceRecord)}

	a, err := NewApp(ctx, cfg, remote)
	require.NoError(t, err)
	first := a.DeviceID()
	require.NoError(t, a.Close())

	b, err := NewApp(ctx, cfg, remote)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEmpty(t, first)
	assert.Equal(t, first, b.DeviceID())
}

func TestServerStatus_SendsDeviceID(t *testing.T) {
	var gotDevice string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/status", r.URL.Path)
		gotDevice = r.Header.Get(common.DeviceIDHeaderName)
		_, _ = w.Write([]byte(`{"current_seq":3,"last_sync_device":"` + gotDevice + `"}`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.ServerEndpointAddr = srv.URL
	a, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	st, err := a.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.DeviceID(), gotDevice)
	assert.Equal(t, int64(3), st.CurrentSeq)
	assert.Equal(t, a.DeviceID(), st.LastSyncDevice)
}

func TestServerStatus_UnsupportedRemote(t *testing.T) {
	remote := &acceptAll{stored: make(map[string]*models.PlaceRecord)}
	a, err := NewApp(context.Background(), testConfig(t), remote)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.ServerStatus(context.Background())
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestNewApp_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "app.db")

	_, err := NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	remote := &acceptAll{stored: make(map[string]*models.PlaceRecord)}
	a, err := NewApp(context.Background(), testConfig(t), remote)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
