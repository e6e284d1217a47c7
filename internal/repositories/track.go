package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/query"
	"github.com/desertthunder/crux/internal/shared"
)

const trackColumns = `id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at, deleted_at`

// TrackRepository implements crud.Repository[*models.Track, string] over SQLite.
//
// Removal is a soft delete; deleted tracks are invisible to every read.
// Unsorted reads come back in sequence order.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// FindByID retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) FindByID(ctx context.Context, id string) (*models.Track, bool, error) {
	q := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`

	track, err := r.scanOne(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return track, true, nil
}

// FindByIDs retrieves the live tracks among ids, in the order the ids were given.
func (r *TrackRepository) FindByIDs(ctx context.Context, ids []string) ([]*models.Track, error) {
	if len(ids) == 0 {
		return []*models.Track{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL AND id IN (` + placeholders(len(ids)) + `)`

	found, err := r.list(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Track, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	tracks := make([]*models.Track, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			tracks = append(tracks, t)
			delete(byID, id)
		}
	}
	return tracks, nil
}

func (r *TrackRepository) PageAll(ctx context.Context, p models.Pagination, s models.Sort) (models.Page[*models.Track], error) {
	return r.page(ctx, "", "", p, s)
}

func (r *TrackRepository) PageSearch(ctx context.Context, search string, p models.Pagination, s models.Sort) (models.Page[*models.Track], error) {
	return r.page(ctx, search, "", p, s)
}

func (r *TrackRepository) PageSearchQuery(ctx context.Context, search, filter string, p models.Pagination, s models.Sort) (models.Page[*models.Track], error) {
	return r.page(ctx, search, filter, p, s)
}

func (r *TrackRepository) CountAll(ctx context.Context) (int64, error) {
	return r.count(ctx, "", "")
}

func (r *TrackRepository) CountSearch(ctx context.Context, search string) (int64, error) {
	return r.count(ctx, search, "")
}

func (r *TrackRepository) CountSearchQuery(ctx context.Context, search, filter string) (int64, error) {
	return r.count(ctx, search, filter)
}

// ExistsByID reports whether a live track with id exists.
func (r *TrackRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS(SELECT 1 FROM tracks WHERE id = ? AND deleted_at IS NULL)`
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check track: %w", err)
	}
	return exists, nil
}

// Persist inserts a new [models.Track] into the database with generated ID and sequence
func (r *TrackRepository) Persist(ctx context.Context, track *models.Track) (*models.Track, error) {
	sequence, err := NextSequence(ctx, r.db, "tracks")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	if track.ID == "" {
		track.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	track.Sequence = sequence
	track.CreatedAt = now
	track.UpdatedAt = now

	q := `
		INSERT INTO tracks (id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = conn(ctx, r.db).ExecContext(ctx, q,
		track.ID,
		track.Sequence,
		track.Service,
		track.ServiceID,
		track.Title,
		track.Artist,
		track.Album,
		track.Duration,
		track.ISRC,
		track.CreatedAt,
		track.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert track: %w", wrapDuplicate(err))
	}

	return track, nil
}

// Merge writes the editable fields of an existing track
func (r *TrackRepository) Merge(ctx context.Context, track *models.Track) (*models.Track, error) {
	now := time.Now().UTC()

	q := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, duration = ?, isrc = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, q,
		track.Title,
		track.Artist,
		track.Album,
		track.Duration,
		track.ISRC,
		now,
		track.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, models.NewNotFoundError("Track", track.ID)
	}

	track.UpdatedAt = now
	return track, nil
}

// Remove soft-deletes a track
func (r *TrackRepository) Remove(ctx context.Context, track *models.Track) error {
	now := time.Now().UTC()

	q := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, q, now, track.ID)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError("Track", track.ID)
	}

	return nil
}

// condition builds the WHERE clause shared by page and count.
func (r *TrackRepository) condition(search, filter string) (query.SQLCondition, error) {
	cond := query.SQLCondition{Clause: "deleted_at IS NULL"}
	if search != "" {
		cond = cond.And(TrackSchema.SearchCondition(search))
	}
	if filter != "" {
		f, err := TrackSchema.Parse(filter)
		if err != nil {
			return query.SQLCondition{}, err
		}
		fc, err := f.SQL()
		if err != nil {
			return query.SQLCondition{}, err
		}
		cond = cond.And(fc)
	}
	return cond, nil
}

func (r *TrackRepository) page(ctx context.Context, search, filter string, p models.Pagination, s models.Sort) (models.Page[*models.Track], error) {
	cond, err := r.condition(search, filter)
	if err != nil {
		return models.Page[*models.Track]{}, err
	}

	order, err := TrackSchema.OrderClause(s)
	if err != nil {
		return models.Page[*models.Track]{}, err
	}
	if order == "" {
		order = "sequence ASC"
	}

	q := `SELECT ` + trackColumns + ` FROM tracks WHERE ` + cond.Clause + ` ORDER BY ` + order
	args := cond.Params
	if p.IsPaged() {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, p.Size, p.Offset())
	}

	tracks, err := r.list(ctx, q, args...)
	if err != nil {
		return models.Page[*models.Track]{}, err
	}

	total := int64(len(tracks))
	if p.IsPaged() {
		if total, err = r.count(ctx, search, filter); err != nil {
			return models.Page[*models.Track]{}, err
		}
	}

	return models.NewPage(tracks, p, s, total), nil
}

func (r *TrackRepository) count(ctx context.Context, search, filter string) (int64, error) {
	cond, err := r.condition(search, filter)
	if err != nil {
		return 0, err
	}

	var n int64
	q := `SELECT COUNT(*) FROM tracks WHERE ` + cond.Clause
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, cond.Params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

func (r *TrackRepository) list(ctx context.Context, q string, args ...any) ([]*models.Track, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []*models.Track{}
	for rows.Next() {
		track, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.Track]; a missing row yields [sql.ErrNoRows]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	var track models.Track
	err := row.Scan(&track.ID, &track.Sequence, &track.Service, &track.ServiceID, &track.Title, &track.Artist,
		&track.Album, &track.Duration, &track.ISRC, &track.CreatedAt, &track.UpdatedAt, &track.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return &track, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Track]
func (r *TrackRepository) scanRow(rows *sql.Rows) (*models.Track, error) {
	var track models.Track
	err := rows.Scan(&track.ID, &track.Sequence, &track.Service, &track.ServiceID, &track.Title, &track.Artist,
		&track.Album, &track.Duration, &track.ISRC, &track.CreatedAt, &track.UpdatedAt, &track.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return &track, nil
}
