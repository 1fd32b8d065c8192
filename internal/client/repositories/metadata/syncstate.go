package metadata

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	KeySyncCursor = "sync_cursor"
	KeyLastSyncAt = "last_sync_at"
	KeyDeviceID   = "device_id"
)

// SyncState is a typed view over the metadata keys used by the sync engine.
type SyncState struct {
	repo Repository
}

func NewSyncState(repo Repository) *SyncState {
	return &SyncState{repo: repo}
}

// Cursor returns the last pull cursor, 0 when none was stored.
func (s *SyncState) Cursor(ctx context.Context) (int64, error) {
	v, err := s.repo.Get(ctx, KeySyncCursor)
	if err != nil || v == nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s: %w", KeySyncCursor, err)
	}
	return n, nil
}

func (s *SyncState) SetCursor(ctx context.Context, cursor int64) error {
	return s.repo.Set(ctx, KeySyncCursor, []byte(strconv.FormatInt(cursor, 10)))
}

// LastSyncAt returns the zero time when no pass has finished yet.
func (s *SyncState) LastSyncAt(ctx context.Context) (time.Time, error) {
	v, err := s.repo.Get(ctx, KeyLastSyncAt)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt %s: %w", KeyLastSyncAt, err)
	}
	return t, nil
}

func (s *SyncState) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return s.repo.Set(ctx, KeyLastSyncAt, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// DeviceID returns the stored device id, generating and saving one with gen
// on first use.
func (s *SyncState) DeviceID(ctx context.Context, gen func() string) (string, error) {
	v, err := s.repo.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if v != nil {
		return string(v), nil
	}
	id := gen()
	if err := s.repo.Set(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
