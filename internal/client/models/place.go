// Package models defines the client-side place record and its enumerations.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
)

// RegionType classifies the geographic region a record refers to.
type RegionType string

const (
	RegionCountry               RegionType = "country"
	RegionUSState               RegionType = "us_state"
	RegionCanadianProvince      RegionType = "canadian_province"
	RegionAustralianState       RegionType = "australian_state"
	RegionMexicanState          RegionType = "mexican_state"
	RegionBrazilianState        RegionType = "brazilian_state"
	RegionGermanState           RegionType = "german_state"
	RegionFrenchRegion          RegionType = "french_region"
	RegionSpanishCommunity      RegionType = "spanish_community"
	RegionItalianRegion         RegionType = "italian_region"
	RegionDutchProvince         RegionType = "dutch_province"
	RegionBelgianProvince       RegionType = "belgian_province"
	RegionUKCountry             RegionType = "uk_country"
	RegionRussianFederalSubject RegionType = "russian_federal_subject"
	RegionArgentineProvince     RegionType = "argentine_province"
)

// regionTotals is the number of regions of each type, used for stats.
var regionTotals = map[RegionType]int{
	RegionCountry:               195,
	RegionUSState:               51,
	RegionCanadianProvince:      13,
	RegionAustralianState:       8,
	RegionMexicanState:          32,
	RegionBrazilianState:        27,
	RegionGermanState:           16,
	RegionFrenchRegion:          18,
	RegionSpanishCommunity:      19,
	RegionItalianRegion:         20,
	RegionDutchProvince:         12,
	RegionBelgianProvince:       11,
	RegionUKCountry:             4,
	RegionRussianFederalSubject: 83,
	RegionArgentineProvince:     24,
}

// RegionTypes lists every supported region type in a stable order.
func RegionTypes() []RegionType {
	return []RegionType{
		RegionCountry, RegionUSState, RegionCanadianProvince, RegionAustralianState,
		RegionMexicanState, RegionBrazilianState, RegionGermanState, RegionFrenchRegion,
		RegionSpanishCommunity, RegionItalianRegion, RegionDutchProvince,
		RegionBelgianProvince, RegionUKCountry, RegionRussianFederalSubject,
		RegionArgentineProvince,
	}
}

func (t RegionType) Valid() bool {
	_, ok := regionTotals[t]
	return ok
}

// Total returns the number of regions of this type, 0 when unknown.
func (t RegionType) Total() int { return regionTotals[t] }

type PlaceStatus string

const (
	StatusVisited    PlaceStatus = "visited"
	StatusBucketList PlaceStatus = "bucket_list"
)

func (s PlaceStatus) Valid() bool {
	return s == StatusVisited || s == StatusBucketList
}

type VisitType string

const (
	VisitTypeVisited VisitType = "visited"
	VisitTypeTransit VisitType = "transit"
)

func (v VisitType) Valid() bool {
	return v == VisitTypeVisited || v == VisitTypeTransit
}

// MaxNotesLength bounds the free-form notes field.
const MaxNotesLength = 500

// DateLayout is the wire and storage layout of visit dates.
const DateLayout = "2006-01-02"

// PlaceRecord is one user's relationship to one geographic region.
//
// SyncVersion grows on every local mutation and is the conflict-resolution
// version. ServerVersion is the last version the server confirmed for this id
// (0 if never confirmed). IsSynced is true only when the local state equals the
// server-acknowledged state.
type PlaceRecord struct {
	ID             string
	OwnerID        string
	RegionType     RegionType
	RegionCode     string
	RegionName     string
	Status         PlaceStatus
	VisitType      VisitType
	VisitedDate    *string
	DepartureDate  *string
	Notes          *string
	IsDeleted      bool
	SyncVersion    int64
	ServerVersion  int64
	LastModifiedAt time.Time
	IsSynced       bool
}

// Validate checks enumerations, required fields and date formats.
func (p *PlaceRecord) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", common.ErrInvalidRecord)
	case !p.RegionType.Valid():
		return fmt.Errorf("%w: unknown region type %q", common.ErrInvalidRecord, p.RegionType)
	case strings.TrimSpace(p.RegionCode) == "":
		return fmt.Errorf("%w: empty region code", common.ErrInvalidRecord)
	case !p.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", common.ErrInvalidRecord, p.Status)
	case !p.VisitType.Valid():
		return fmt.Errorf("%w: unknown visit type %q", common.ErrInvalidRecord, p.VisitType)
	case p.SyncVersion < 1:
		return fmt.Errorf("%w: sync version must be positive", common.ErrInvalidRecord)
	case p.Notes != nil && len([]rune(*p.Notes)) > MaxNotesLength:
		return fmt.Errorf("%w: notes longer than %d characters", common.ErrInvalidRecord, MaxNotesLength)
	}
	for _, d := range []*string{p.VisitedDate, p.DepartureDate} {
		if d == nil {
			continue
		}
		if _, err := time.Parse(DateLayout, *d); err != nil {
			return fmt.Errorf("%w: bad date %q", common.ErrInvalidRecord, *d)
		}
	}
	return nil
}

// SameRegion reports whether both records point at the same region.
func (p *PlaceRecord) SameRegion(o *PlaceRecord) bool {
	return p.RegionType == o.RegionType && strings.EqualFold(p.RegionCode, o.RegionCode)
}

// SameContent compares the user-visible fields and the deletion flag,
// ignoring versions, timestamps and sync bookkeeping.
func (p *PlaceRecord) SameContent(o *PlaceRecord) bool {
	return p.SameRegion(o) &&
		p.RegionName == o.RegionName &&
		p.Status == o.Status &&
		p.VisitType == o.VisitType &&
		p.IsDeleted == o.IsDeleted &&
		eqPtr(p.VisitedDate, o.VisitedDate) &&
		eqPtr(p.DepartureDate, o.DepartureDate) &&
		eqPtr(p.Notes, o.Notes)
}

// Clone returns a deep copy.
func (p *PlaceRecord) Clone() *PlaceRecord {
	c := *p
	c.VisitedDate = clonePtr(p.VisitedDate)
	c.DepartureDate = clonePtr(p.DepartureDate)
	c.Notes = clonePtr(p.Notes)
	return &c
}

// Touch records a local mutation: bumps the version, marks the record as
// pending and stamps the modification time.
func (p *PlaceRecord) Touch(now time.Time) {
	p.SyncVersion++
	p.IsSynced = false
	p.LastModifiedAt = now.UTC()
}

func eqPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
