// Package places is the local store of one owner's PlaceRecords. It is the
// only shared mutable resource on the client: writes are serialised, reads
// run concurrently against SQLite.
package places

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/placesync/internal/client/models"
)

// ErrDuplicateActive is returned by Upsert when another active record already
// holds the same region.
var ErrDuplicateActive = errors.New("active record for region already exists")

// ErrStaleWrite is returned by UpsertIfUnchanged when the stored record is no
// longer at the expected sync version.
var ErrStaleWrite = errors.New("place changed since it was read")

// FindMode selects which records FindByRegion may return.
type FindMode int

const (
	// ActiveOnly ignores soft-deleted records.
	ActiveOnly FindMode = iota
	// IncludeDeleted prefers the active record and otherwise returns the most
	// recently modified tombstone, so a re-toggle can revive it.
	IncludeDeleted
)

type Repository interface {
	// Upsert inserts or replaces a record by id. The write is atomic.
	Upsert(ctx context.Context, p *models.PlaceRecord) error

	// UpsertIfUnchanged is Upsert guarded by the stored sync version: the
	// write goes through only while the record is still at expectedVersion,
	// or absent when expectedVersion is 0. Otherwise it returns ErrStaleWrite.
	UpsertIfUnchanged(ctx context.Context, p *models.PlaceRecord, expectedVersion int64) error

	// GetByID returns common.ErrorNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.PlaceRecord, error)

	// FindByRegion returns (nil, nil) when nothing matches.
	FindByRegion(ctx context.Context, regionType models.RegionType, regionCode string, mode FindMode) (*models.PlaceRecord, error)

	// ListUnsynced returns every record with pending changes, tombstones included.
	ListUnsynced(ctx context.Context) ([]*models.PlaceRecord, error)
	ListAll(ctx context.Context) ([]*models.PlaceRecord, error)
	ListActive(ctx context.Context) ([]*models.PlaceRecord, error)
	CountUnsynced(ctx context.Context) (int, error)

	// MarkSynced records serverVersion as accepted for ids. A record whose
	// syncVersion moved past serverVersion in the meantime stays unsynced.
	MarkSynced(ctx context.Context, ids []string, serverVersion int64) error

	// PurgeDeleted physically removes acknowledged tombstones.
	PurgeDeleted(ctx context.Context) (int64, error)

	// Subscribe registers a change listener. The returned func unsubscribes.
	Subscribe(buffer int) (<-chan ChangeEvent, func())
}
