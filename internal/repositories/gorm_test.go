package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/desertthunder/crux/internal/models"
)

func setupGorm(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := OpenGorm(GormConfig{Dialect: GormSQLite, Path: ":memory:", MaxOpenConns: 1}, &models.Track{})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newGormTracks(t *testing.T, db *gorm.DB) *GormRepository[*models.Track, string] {
	t.Helper()
	repo, err := NewGormRepository[*models.Track, string](db, TrackSchema, "sequence ASC")
	require.NoError(t, err)
	return repo
}

func TestGormRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("persist assigns id and sequence", func(t *testing.T) {
		repo := newGormTracks(t, setupGorm(t))
		saved := seed(t, repo)

		for i, track := range saved {
			assert.NotEmpty(t, track.ID)
			assert.Equal(t, i+1, track.Sequence)
			assert.False(t, track.CreatedAt.IsZero())
		}
	})

	t.Run("find", func(t *testing.T) {
		repo := newGormTracks(t, setupGorm(t))
		saved := seed(t, repo)

		found, ok, err := repo.FindByID(ctx, saved[2].ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Hyperballad", found.Title)

		_, ok, err = repo.FindByID(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		many, err := repo.FindByIDs(ctx, []string{saved[3].ID, saved[0].ID})
		require.NoError(t, err)
		assert.Equal(t, []string{"Windowlicker", "Paranoid Android"}, titles(many))
	})

	t.Run("page, search and query", func(t *testing.T) {
		repo := newGormTracks(t, setupGorm(t))
		seed(t, repo)

		page, err := repo.PageAll(ctx, models.PageOf(1, 2), models.Unsorted())
		require.NoError(t, err)
		assert.Equal(t, []string{"Hyperballad", "Windowlicker"}, titles(page.Content))
		assert.EqualValues(t, 4, page.TotalElements)

		page, err = repo.PageSearchQuery(ctx, "radiohead", "duration < 300", models.Unpaged(), models.Unsorted())
		require.NoError(t, err)
		assert.Equal(t, []string{"Karma Police"}, titles(page.Content))

		page, err = repo.PageSearch(ctx, "", models.Unpaged(), models.SortBy(models.Asc("title")))
		require.NoError(t, err)
		assert.Equal(t, []string{"Hyperballad", "Karma Police", "Paranoid Android", "Windowlicker"}, titles(page.Content))

		n, err := repo.CountSearch(ctx, "radiohead")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("merge and soft delete", func(t *testing.T) {
		db := setupGorm(t)
		repo := newGormTracks(t, db)
		saved := seed(t, repo)

		saved[0].Title = "Paranoid Android (Live)"
		_, err := repo.Merge(ctx, saved[0])
		require.NoError(t, err)

		found, _, err := repo.FindByID(ctx, saved[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Paranoid Android (Live)", found.Title)

		require.NoError(t, repo.Remove(ctx, saved[0]))
		exists, err := repo.ExistsByID(ctx, saved[0].ID)
		require.NoError(t, err)
		assert.False(t, exists)

		var raw int64
		require.NoError(t, db.Unscoped().Model(&models.Track{}).Count(&raw).Error)
		assert.EqualValues(t, 4, raw)

		assert.True(t, models.IsNotFound(repo.Remove(ctx, saved[0])))
		_, err = repo.Merge(ctx, &models.Track{ID: "missing"})
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("rejects non-pointer entity", func(t *testing.T) {
		_, err := NewGormRepository[models.Track, string](setupGorm(t), nil, "")
		assert.Error(t, err)
	})
}

func TestGormTransactor(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback", func(t *testing.T) {
		db := setupGorm(t)
		repo := newGormTracks(t, db)
		tx := NewGormTransactor(db)
		boom := errors.New("boom")

		err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := repo.Persist(ctx, sampleTracks(t)[0]); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := repo.CountAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("commit with nested call", func(t *testing.T) {
		db := setupGorm(t)
		repo := newGormTracks(t, db)
		tx := NewGormTransactor(db)

		err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			return tx.WithTransaction(ctx, func(ctx context.Context) error {
				_, err := repo.Persist(ctx, sampleTracks(t)[1])
				return err
			})
		})
		require.NoError(t, err)

		n, err := repo.CountAll(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestOpenGormErrors(t *testing.T) {
	_, err := OpenGorm(GormConfig{Dialect: "oracle"})
	assert.Error(t, err)

	_, err = OpenGorm(GormConfig{Dialect: GormSQLite})
	assert.Error(t, err)

	_, err = OpenGorm(GormConfig{Dialect: GormPostgres})
	assert.Error(t, err)
}
