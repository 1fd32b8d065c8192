// Package services contains application services for the placesync client.
// PlaceService is the only writer of user edits: every mutation goes to the
// local store first and is left unsynced for the sync engine to push.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/client/repositories/places"
	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/google/uuid"
)

// Region identifies the place a user toggles.
type Region struct {
	Type models.RegionType
	Code string
	Name string
}

// ListFilter narrows List; zero fields match everything.
type ListFilter struct {
	RegionType models.RegionType
	Status     models.PlaceStatus
}

// PlaceService defines the user-facing place operations.
//
// Contract:
//   - MarkVisited / MarkBucketList: create the region's record or revive and
//     update the existing one (tombstones included), never a second record.
//   - SetVisitType / UpdateNotes / Remove: edit an active record by id.
//   - List / Stats: read active records only.
//
// Every effective mutation bumps syncVersion, clears isSynced and stamps
// lastModifiedAt. A call that changes nothing leaves the record alone.
type PlaceService interface {
	MarkVisited(ctx context.Context, region Region, visitType models.VisitType, visitedDate *string) (*models.PlaceRecord, error)
	MarkBucketList(ctx context.Context, region Region) (*models.PlaceRecord, error)
	SetVisitType(ctx context.Context, id string, visitType models.VisitType) (*models.PlaceRecord, error)
	UpdateNotes(ctx context.Context, id string, notes *string) (*models.PlaceRecord, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*models.PlaceRecord, error)
	Stats(ctx context.Context) (models.PlaceStats, error)
}

type Option func(*placeService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *placeService) { s.now = now }
}

// WithOnChange registers a callback run after every effective mutation,
// typically the sync scheduler's Trigger.
func WithOnChange(fn func()) Option {
	return func(s *placeService) { s.onChange = fn }
}

type placeService struct {
	repo     places.Repository
	ownerID  string
	now      func() time.Time
	onChange func()
}

func NewPlaceService(repo places.Repository, ownerID string, opts ...Option) PlaceService {
	s := &placeService{repo: repo, ownerID: ownerID, now: time.Now, onChange: func() {}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *placeService) MarkVisited(ctx context.Context, region Region, visitType models.VisitType, visitedDate *string) (*models.PlaceRecord, error) {
	return s.mark(ctx, region, func(p *models.PlaceRecord) {
		p.Status = models.StatusVisited
		p.VisitType = visitType
		p.VisitedDate = visitedDate
	})
}

func (s *placeService) MarkBucketList(ctx context.Context, region Region) (*models.PlaceRecord, error) {
	return s.mark(ctx, region, func(p *models.PlaceRecord) {
		p.Status = models.StatusBucketList
		p.VisitType = models.VisitTypeVisited
		p.VisitedDate = nil
		p.DepartureDate = nil
	})
}

func (s *placeService) mark(ctx context.Context, region Region, apply func(*models.PlaceRecord)) (*models.PlaceRecord, error) {
	region.Code = strings.ToUpper(strings.TrimSpace(region.Code))

	existing, err := s.repo.FindByRegion(ctx, region.Type, region.Code, places.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("error looking up region: %w", err)
	}

	if existing == nil {
		p := &models.PlaceRecord{
			ID:         uuid.NewString(),
			OwnerID:    s.ownerID,
			RegionType: region.Type,
			RegionCode: region.Code,
			RegionName: region.Name,
		}
		apply(p)
		p.Touch(s.now())
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	p := existing.Clone()
	p.IsDeleted = false
	if region.Name != "" {
		p.RegionName = region.Name
	}
	apply(p)
	return s.commit(ctx, existing, p)
}

func (s *placeService) SetVisitType(ctx context.Context, id string, visitType models.VisitType) (*models.PlaceRecord, error) {
	return s.edit(ctx, id, func(p *models.PlaceRecord) { p.VisitType = visitType })
}

func (s *placeService) UpdateNotes(ctx context.Context, id string, notes *string) (*models.PlaceRecord, error) {
	if notes != nil && strings.TrimSpace(*notes) == "" {
		notes = nil
	}
	return s.edit(ctx, id, func(p *models.PlaceRecord) { p.Notes = notes })
}

// Remove soft-deletes the record so the deletion can be synced. Removing an
// already removed record is a no-op.
func (s *placeService) Remove(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error retrieving place: %w", err)
	}
	if p.IsDeleted {
		return nil
	}
	next := p.Clone()
	next.IsDeleted = true
	_, err = s.commit(ctx, p, next)
	return err
}

func (s *placeService) List(ctx context.Context, filter ListFilter) ([]*models.PlaceRecord, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing places: %w", err)
	}

	result := make([]*models.PlaceRecord, 0, len(rows))
	for _, p := range rows {
		if filter.RegionType != "" && p.RegionType != filter.RegionType {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *placeService) Stats(ctx context.Context) (models.PlaceStats, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return models.PlaceStats{}, fmt.Errorf("error listing places: %w", err)
	}
	return models.ComputeStats(rows), nil
}

func (s *placeService) edit(ctx context.Context, id string, apply func(*models.PlaceRecord)) (*models.PlaceRecord, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving place: %w", err)
	}
	if p.IsDeleted {
		return nil, fmt.Errorf("place %s was removed: %w", id, common.ErrorNotFound)
	}
	next := p.Clone()
	apply(next)
	return s.commit(ctx, p, next)
}

// commit stores next when it differs from prev.
func (s *placeService) commit(ctx context.Context, prev, next *models.PlaceRecord) (*models.PlaceRecord, error) {
	if next.SameContent(prev) {
		return prev, nil
	}
	next.Touch(s.now())
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *placeService) save(ctx context.Context, p *models.PlaceRecord) error {
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	s.onChange()
	return nil
}
