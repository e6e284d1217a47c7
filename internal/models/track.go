package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Track is a cached song from a music service.
//
// ISRC enables cross-service matching. Sequence is assigned by the storage adapter and
// gives a stable, human-readable order independent of the UUID.
type Track struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Sequence  int            `gorm:"index" json:"sequence"`
	Service   string         `gorm:"size:32;index:idx_tracks_service" json:"service"`
	ServiceID string         `gorm:"column:service_id;size:128;index:idx_tracks_service" json:"service_id"`
	Title     string         `gorm:"size:512" json:"title"`
	Artist    string         `gorm:"size:512" json:"artist"`
	Album     string         `gorm:"size:512" json:"album"`
	Duration  int            `json:"duration"`
	ISRC      string         `gorm:"column:isrc;size:12;index" json:"isrc"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName pins the GORM table to the one created by the SQL migrations.
func (Track) TableName() string { return "tracks" }

// BeforeCreate assigns the next sequence number when a track is created through GORM.
// Soft-deleted rows keep their numbers.
func (t *Track) BeforeCreate(tx *gorm.DB) error {
	if t.Sequence != 0 {
		return nil
	}
	var last int
	if err := tx.Session(&gorm.Session{NewDB: true}).Model(&Track{}).Unscoped().Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}
	t.Sequence = last + 1
	return nil
}

// IsDeleted reports whether the track has been soft-deleted.
func (t *Track) IsDeleted() bool { return t.DeletedAt.Valid }

// TrackInput is the payload accepted by create and update.
type TrackInput struct {
	Service   string `json:"service" validate:"required,oneof=spotify youtube local"`
	ServiceID string `json:"service_id" validate:"omitempty,max=128"`
	Title     string `json:"title" validate:"required,max=512"`
	Artist    string `json:"artist" validate:"required,max=512"`
	Album     string `json:"album" validate:"max=512"`
	Duration  int    `json:"duration" validate:"gte=0"`
	ISRC      string `json:"isrc" validate:"omitempty,len=12,alphanum"`
}

// Validate checks the input against its struct tags.
func (in TrackInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// TrackView is the read model handed back to callers.
type TrackView struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	ServiceID string    `json:"service_id,omitempty"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album,omitempty"`
	Duration  int       `json:"duration"`
	ISRC      string    `json:"isrc,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Length formats the duration as m:ss.
func (v TrackView) Length() string {
	return fmt.Sprintf("%d:%02d", v.Duration/60, v.Duration%60)
}

// TrackMapper converts [TrackInput] into [Track] and [Track] into [TrackView].
type TrackMapper struct{}

// ToEntity validates in and copies it onto target.
//
// Service and ServiceID identify the upstream record and are only written on creation.
func (TrackMapper) ToEntity(_ context.Context, in TrackInput, target *Track, isNew bool) (*Track, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if isNew {
		target.Service = in.Service
		target.ServiceID = strings.TrimSpace(in.ServiceID)
	}
	target.Title = strings.TrimSpace(in.Title)
	target.Artist = strings.TrimSpace(in.Artist)
	target.Album = strings.TrimSpace(in.Album)
	target.Duration = in.Duration
	target.ISRC = strings.ToUpper(in.ISRC)
	return target, nil
}

// ToOutput builds the read model for t.
func (TrackMapper) ToOutput(_ context.Context, t *Track) (TrackView, error) {
	return TrackView{
		ID:        t.ID,
		Service:   t.Service,
		ServiceID: t.ServiceID,
		Title:     t.Title,
		Artist:    t.Artist,
		Album:     t.Album,
		Duration:  t.Duration,
		ISRC:      t.ISRC,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}
