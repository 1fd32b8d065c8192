package places

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/dbx"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const placeColumns = `id, owner_id, region_type, region_code, region_name, status, visit_type,
	visited_date, departure_date, notes, is_deleted, sync_version, server_version,
	last_modified_at, is_synced`

// SQLiteRepository implements Repository on top of a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
	mu sync.Mutex // single writer
	n  *notifier
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, n: newNotifier()}
}

func (r *SQLiteRepository) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	return r.n.subscribe(buffer)
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.PlaceRecord) error {
	return r.upsert(ctx, p, nil)
}

func (r *SQLiteRepository) UpsertIfUnchanged(ctx context.Context, p *models.PlaceRecord, expectedVersion int64) error {
	return r.upsert(ctx, p, &expectedVersion)
}

func (r *SQLiteRepository) upsert(ctx context.Context, p *models.PlaceRecord, expect *int64) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if expect != nil {
			var current int64
			err := tx.QueryRowContext(ctx, `SELECT sync_version FROM places WHERE id = ?`, p.ID).Scan(&current)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return common.NewStorageError("check version", err)
			}
			if current != *expect {
				return fmt.Errorf("%w: %s is at version %d, expected %d", ErrStaleWrite, p.ID, current, *expect)
			}
		}

		if !p.IsDeleted {
			var other string
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM places
				WHERE region_type = ? AND region_code = ? AND is_deleted = 0 AND id <> ?
				LIMIT 1`,
				p.RegionType, p.RegionCode, p.ID).Scan(&other)
			switch {
			case err == nil:
				return fmt.Errorf("%w: %s %s held by %s", ErrDuplicateActive, p.RegionType, p.RegionCode, other)
			case !errors.Is(err, sql.ErrNoRows):
				return common.NewStorageError("check duplicate", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO places (`+placeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				owner_id = excluded.owner_id,
				region_type = excluded.region_type,
				region_code = excluded.region_code,
				region_name = excluded.region_name,
				status = excluded.status,
				visit_type = excluded.visit_type,
				visited_date = excluded.visited_date,
				departure_date = excluded.departure_date,
				notes = excluded.notes,
				is_deleted = excluded.is_deleted,
				sync_version = excluded.sync_version,
				server_version = excluded.server_version,
				last_modified_at = excluded.last_modified_at,
				is_synced = excluded.is_synced`,
			p.ID, p.OwnerID, p.RegionType, p.RegionCode, p.RegionName, p.Status, p.VisitType,
			p.VisitedDate, p.DepartureDate, p.Notes, p.IsDeleted, p.SyncVersion, p.ServerVersion,
			p.LastModifiedAt.UTC().Format(timeLayout), p.IsSynced)
		if err != nil {
			return common.NewStorageError("upsert place", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateActive) || errors.Is(err, ErrStaleWrite) || errors.Is(err, common.ErrStorage) {
			return err
		}
		return common.NewStorageError("upsert place", err)
	}

	r.n.publish(ChangeEvent{Kind: ChangeUpserted, IDs: []string{p.ID}})
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.PlaceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+placeColumns+` FROM places WHERE id = ?`, id)
	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, common.NewStorageError("get place", err)
	}
	return p, nil
}

func (r *SQLiteRepository) FindByRegion(ctx context.Context, regionType models.RegionType, regionCode string, mode FindMode) (*models.PlaceRecord, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE region_type = ? AND region_code = ?`
	if mode == ActiveOnly {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY is_deleted ASC, last_modified_at DESC LIMIT 1`

	p, err := scanPlace(r.db.QueryRowContext(ctx, query, regionType, regionCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewStorageError("find place", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.PlaceRecord, error) {
	return r.list(ctx, "list unsynced", `WHERE is_synced = 0 ORDER BY last_modified_at`)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]*models.PlaceRecord, error) {
	return r.list(ctx, "list all", `ORDER BY region_type, region_code, last_modified_at`)
}

func (r *SQLiteRepository) ListActive(ctx context.Context) ([]*models.PlaceRecord, error) {
	return r.list(ctx, "list active", `WHERE is_deleted = 0 ORDER BY region_type, region_code`)
}

func (r *SQLiteRepository) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places WHERE is_synced = 0`).Scan(&n); err != nil {
		return 0, common.NewStorageError("count unsynced", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []string, serverVersion int64) error {
	if len(ids) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	args := make([]any, 0, len(ids)+2)
	args = append(args, serverVersion, serverVersion)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `
		UPDATE places SET
			server_version = ?,
			is_synced = CASE WHEN sync_version <= ? THEN 1 ELSE is_synced END
		WHERE id IN (` + placeholders(len(ids)) + `)`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewStorageError("mark synced", err)
	}

	r.n.publish(ChangeEvent{Kind: ChangeSynced, IDs: append([]string(nil), ids...)})
	return nil
}

func (r *SQLiteRepository) PurgeDeleted(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM places WHERE is_deleted = 1 AND is_synced = 1`)
	if err != nil {
		return 0, common.NewStorageError("purge deleted", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.NewStorageError("purge deleted", err)
	}
	if n > 0 {
		r.n.publish(ChangeEvent{Kind: ChangePurged})
	}
	return n, nil
}

func (r *SQLiteRepository) list(ctx context.Context, op, tail string) ([]*models.PlaceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+placeColumns+` FROM places `+tail)
	if err != nil {
		return nil, common.NewStorageError(op, err)
	}
	defer rows.Close()

	result := make([]*models.PlaceRecord, 0)
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, common.NewStorageError(op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError(op, err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(s scanner) (*models.PlaceRecord, error) {
	var (
		p                         models.PlaceRecord
		visited, departure, notes sql.NullString
		lastModified              string
	)
	err := s.Scan(&p.ID, &p.OwnerID, &p.RegionType, &p.RegionCode, &p.RegionName, &p.Status, &p.VisitType,
		&visited, &departure, &notes, &p.IsDeleted, &p.SyncVersion, &p.ServerVersion,
		&lastModified, &p.IsSynced)
	if err != nil {
		return nil, err
	}

	p.LastModifiedAt, err = time.Parse(timeLayout, lastModified)
	if err != nil {
		return nil, fmt.Errorf("bad last_modified_at %q: %w", lastModified, err)
	}
	p.VisitedDate = nullString(visited)
	p.DepartureDate = nullString(departure)
	p.Notes = nullString(notes)
	return &p, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
