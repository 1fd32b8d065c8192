package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/models"
)

// Client is the remote side of synchronization.
type Client interface {
	// ListPlaces returns records changed after the since cursor, tombstones
	// included, and the cursor to use next time.
	ListPlaces(ctx context.Context, since int64) ([]*models.PlaceRecord, int64, error)
	GetPlace(ctx context.Context, id string) (*models.PlaceRecord, error)
	// CreateOrUpdatePlace returns the version the server accepted or a
	// *ConflictError.
	CreateOrUpdatePlace(ctx context.Context, p *models.PlaceRecord) (int64, error)
	// DeletePlace tombstones id at version. modifiedAt is when the user
	// deleted it, so the server copy keeps the client's timestamp.
	DeletePlace(ctx context.Context, id string, version int64, modifiedAt time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// StatusReader is implemented by remotes that report the account's sync state.
type StatusReader interface {
	SyncStatus(ctx context.Context) (*SyncStatus, error)
}

// SyncStatus is the server's view of the account: the newest change
// sequence and the last write it accepted from any device.
type SyncStatus struct {
	CurrentSeq     int64      `json:"current_seq"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncDevice string     `json:"last_sync_device,omitempty"`
}

// RemotePlace is the JSON form of a place on the wire.
type RemotePlace struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id,omitempty"`
	RegionType     string    `json:"region_type"`
	RegionCode     string    `json:"region_code"`
	RegionName     string    `json:"region_name"`
	Status         string    `json:"status"`
	VisitType      string    `json:"visit_type"`
	VisitedDate    *string   `json:"visited_date,omitempty"`
	DepartureDate  *string   `json:"departure_date,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	IsDeleted      bool      `json:"is_deleted"`
	SyncVersion    int64     `json:"sync_version"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

func FromRecord(p *models.PlaceRecord) RemotePlace {
	return RemotePlace{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		RegionType:     string(p.RegionType),
		RegionCode:     p.RegionCode,
		RegionName:     p.RegionName,
		Status:         string(p.Status),
		VisitType:      string(p.VisitType),
		VisitedDate:    p.VisitedDate,
		DepartureDate:  p.DepartureDate,
		Notes:          p.Notes,
		IsDeleted:      p.IsDeleted,
		SyncVersion:    p.SyncVersion,
		LastModifiedAt: p.LastModifiedAt.UTC(),
	}
}

// ToRecord converts a wire place into a record. The result is not marked as
// synced; that is the engine's call.
func (r RemotePlace) ToRecord() *models.PlaceRecord {
	return &models.PlaceRecord{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		RegionType:     models.RegionType(r.RegionType),
		RegionCode:     r.RegionCode,
		RegionName:     r.RegionName,
		Status:         models.PlaceStatus(r.Status),
		VisitType:      models.VisitType(r.VisitType),
		VisitedDate:    r.VisitedDate,
		DepartureDate:  r.DepartureDate,
		Notes:          r.Notes,
		IsDeleted:      r.IsDeleted,
		SyncVersion:    r.SyncVersion,
		LastModifiedAt: r.LastModifiedAt.UTC(),
	}
}
