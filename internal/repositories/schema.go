package repositories

import (
	"time"

	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/query"
)

// TrackSchema declares the fields of [models.Track] available to search, filters and sorting.
//
// Free-text search covers title, artist and album.
var TrackSchema = query.MustSchema(
	query.String("id", "id", func(t *models.Track) string { return t.ID }),
	query.Int("sequence", "sequence", func(t *models.Track) int { return t.Sequence }),
	query.String("service", "service", func(t *models.Track) string { return t.Service }),
	query.String("service_id", "service_id", func(t *models.Track) string { return t.ServiceID }),
	query.String("title", "title", func(t *models.Track) string { return t.Title }).Search(),
	query.String("artist", "artist", func(t *models.Track) string { return t.Artist }).Search(),
	query.String("album", "album", func(t *models.Track) string { return t.Album }).Search(),
	query.Int("duration", "duration", func(t *models.Track) int { return t.Duration }),
	query.String("isrc", "isrc", func(t *models.Track) string { return t.ISRC }),
	query.Timestamp("created_at", "created_at", func(t *models.Track) time.Time { return t.CreatedAt }),
	query.Timestamp("updated_at", "updated_at", func(t *models.Track) time.Time { return t.UpdatedAt }),
)
