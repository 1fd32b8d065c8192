package httpapi

import (
	"time"

	"github.com/dmitrijs2005/placesync/internal/server/models"
)

// placeDTO is the JSON form of a place shared with the sync client.
type placeDTO struct {
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

func toDTO(p *models.Place) *placeDTO {
	return &placeDTO{
		ID:             p.ID,
		OwnerID:        p.UserID,
		RegionType:     p.RegionType,
		RegionCode:     p.RegionCode,
		RegionName:     p.RegionName,
		Status:         p.Status,
		VisitType:      p.VisitType,
		VisitedDate:    p.VisitedDate,
		DepartureDate:  p.DepartureDate,
		Notes:          p.Notes,
		IsDeleted:      p.IsDeleted,
		SyncVersion:    p.Version,
		LastModifiedAt: p.LastModifiedAt.UTC(),
	}
}

// toModel ignores OwnerID; ownership always comes from the token.
func (d *placeDTO) toModel() *models.Place {
	return &models.Place{
		ID:             d.ID,
		RegionType:     d.RegionType,
		RegionCode:     d.RegionCode,
		RegionName:     d.RegionName,
		Status:         d.Status,
		VisitType:      d.VisitType,
		VisitedDate:    d.VisitedDate,
		DepartureDate:  d.DepartureDate,
		Notes:          d.Notes,
		IsDeleted:      d.IsDeleted,
		Version:        d.SyncVersion,
		LastModifiedAt: d.LastModifiedAt.UTC(),
	}
}

type listResponse struct {
	Places []*placeDTO `json:"places"`
	Cursor int64       `json:"cursor"`
}

type acceptedResponse struct {
	AcceptedVersion int64 `json:"accepted_version"`
}

type conflictResponse struct {
	ServerVersion int64     `json:"server_version"`
	Place         *placeDTO `json:"place"`
}

type statusResponse struct {
	CurrentSeq     int64      `json:"current_seq"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncDevice string     `json:"last_sync_device,omitempty"`
}

func toStatusResponse(st *models.SyncStatus) statusResponse {
	return statusResponse{
		CurrentSeq:     st.CurrentSeq,
		LastSyncAt:     st.LastSyncAt,
		LastSyncDevice: st.LastSyncDevice,
	}
}

type pingResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
