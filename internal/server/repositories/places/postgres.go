// Package places provides the PostgreSQL-backed store of server-side places.
package places

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/dbx"
	"github.com/dmitrijs2005/placesync/internal/server/models"
)

var columns = []string{
	"id", "user_id", "region_type", "region_code", "region_name", "status", "visit_type",
	"visited_date", "departure_date", "notes", "is_deleted", "version", "change_seq", "last_modified_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListChangedSince(ctx context.Context, userID string, since int64) ([]*models.Place, error) {
	query, args, err := psql.Select(columns...).
		From("places").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"change_seq": since}).
		OrderBy("change_seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select places: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Place, 0)
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Place, error) {
	return r.get(ctx, userID, id, "")
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID, id string) (*models.Place, error) {
	return r.get(ctx, userID, id, "FOR UPDATE")
}

func (r *PostgresRepository) get(ctx context.Context, userID, id, suffix string) (*models.Place, error) {
	b := psql.Select(columns...).
		From("places").
		Where(sq.Eq{"id": id, "user_id": userID})
	if suffix != "" {
		b = b.Suffix(suffix)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	p, err := scanPlace(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Upsert inserts or replaces a place by id. Rows owned by another user are
// left untouched and reported as ErrForeignID.
func (r *PostgresRepository) Upsert(ctx context.Context, p *models.Place) error {
	query, args, err := psql.Insert("places").
		Columns(columns...).
		Values(p.ID, p.UserID, p.RegionType, p.RegionCode, p.RegionName, p.Status, p.VisitType,
			p.VisitedDate, p.DepartureDate, p.Notes, p.IsDeleted, p.Version, p.ChangeSeq, p.LastModifiedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			region_type = EXCLUDED.region_type,
			region_code = EXCLUDED.region_code,
			region_name = EXCLUDED.region_name,
			status = EXCLUDED.status,
			visit_type = EXCLUDED.visit_type,
			visited_date = EXCLUDED.visited_date,
			departure_date = EXCLUDED.departure_date,
			notes = EXCLUDED.notes,
			is_deleted = EXCLUDED.is_deleted,
			version = EXCLUDED.version,
			change_seq = EXCLUDED.change_seq,
			last_modified_at = EXCLUDED.last_modified_at
			WHERE places.user_id = EXCLUDED.user_id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectRows(res, 1); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return ErrForeignID
		}
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(s scanner) (*models.Place, error) {
	var p models.Place
	var visited, departure, notes sql.NullString
	if err := s.Scan(
		&p.ID, &p.UserID, &p.RegionType, &p.RegionCode, &p.RegionName, &p.Status, &p.VisitType,
		&visited, &departure, &notes, &p.IsDeleted, &p.Version, &p.ChangeSeq, &p.LastModifiedAt,
	); err != nil {
		return nil, err
	}
	p.VisitedDate = nullable(visited)
	p.DepartureDate = nullable(departure)
	p.Notes = nullable(notes)
	p.LastModifiedAt = p.LastModifiedAt.UTC()
	return &p, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
