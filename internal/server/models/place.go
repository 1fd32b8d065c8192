package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
)

// Place is the server copy of one user's place record. Version is the
// client-assigned sync version; ChangeSeq orders writes per user for
// incremental pulls.
type Place struct {
	ID             string
	UserID         string
	RegionType     string
	RegionCode     string
	RegionName     string
	Status         string
	VisitType      string
	VisitedDate    *string
	DepartureDate  *string
	Notes          *string
	IsDeleted      bool
	Version        int64
	ChangeSeq      int64
	LastModifiedAt time.Time
}

// SameContent compares the user-visible fields and the deletion flag.
func (p *Place) SameContent(o *Place) bool {
	return p.RegionType == o.RegionType &&
		p.RegionCode == o.RegionCode &&
		p.RegionName == o.RegionName &&
		p.Status == o.Status &&
		p.VisitType == o.VisitType &&
		p.IsDeleted == o.IsDeleted &&
		eq(p.VisitedDate, o.VisitedDate) &&
		eq(p.DepartureDate, o.DepartureDate) &&
		eq(p.Notes, o.Notes)
}

func eq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Validate checks the fields the server relies on. Enumerations are checked
// loosely so newer clients can add region types.
func (p *Place) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", common.ErrInvalidRecord)
	case p.RegionType == "" || p.RegionCode == "":
		return fmt.Errorf("%w: empty region", common.ErrInvalidRecord)
	case p.Status != "visited" && p.Status != "bucket_list":
		return fmt.Errorf("%w: unknown status %q", common.ErrInvalidRecord, p.Status)
	case p.VisitType != "visited" && p.VisitType != "transit":
		return fmt.Errorf("%w: unknown visit type %q", common.ErrInvalidRecord, p.VisitType)
	case p.Version < 1:
		return fmt.Errorf("%w: version must be positive", common.ErrInvalidRecord)
	}
	return nil
}
