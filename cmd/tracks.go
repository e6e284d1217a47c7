package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crux/internal/async"
	"github.com/desertthunder/crux/internal/formatter"
	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/repositories"
	"github.com/desertthunder/crux/internal/shared"
)

// ListTracks prints a page of tracks, or writes it to a file with --output or --export.
func (r *Runner) ListTracks(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}

	sort, err := repositories.TrackSchema.ParseSort(cmd.String("sort"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}

	pagination := models.Unpaged()
	if size := int(cmd.Int("size")); size != 0 {
		pagination = models.PageOf(int(cmd.Int("page")), size)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	page, err := app.Reader.Page(ctx, cmd.String("search"), cmd.String("query"), pagination, sort)
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}
	r.logger.Debug("listed tracks", "count", page.Len(), "total", page.TotalElements)

	if output := cmd.String("output"); output != "" || cmd.Bool("export") {
		path, err := formatter.WriteExport(page, output, format)
		if err != nil {
			return err
		}
		r.logger.Info("exported tracks", "path", path, "count", page.Len())
		r.writePlain("✓ Exported %d tracks to %s\n", page.Len(), path)
		return nil
	}

	return formatter.Write(r.output, page, format)
}

// GetTracks prints the tracks with the given IDs. A single missing ID is an error; when several
// IDs are given, missing ones are skipped.
func (r *Runner) GetTracks(ctx context.Context, cmd *cli.Command) error {
	ids := uniqueIDs(cmd.Args().Slice())
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track ID is required", shared.ErrMissingArgument)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	if len(ids) == 1 {
		track, err := app.Reader.Find(ctx, ids[0])
		if err != nil {
			return err
		}
		return r.writeTrack(cmd, track)
	}

	tracks, err := app.Reader.FindMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to find tracks: %w", err)
	}
	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	for _, track := range tracks {
		r.writeTrackLine(track)
	}
	if missing := len(ids) - len(tracks); missing > 0 {
		r.writePlainln("%d of %d tracks not found", missing, len(ids))
	}
	return nil
}

// CreateTrack adds a track built from the command flags.
func (r *Runner) CreateTrack(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	track, err := app.Tracks.Create(ctx, trackInput(cmd, models.TrackView{}))
	if err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}

	r.logger.Info("created track", "id", track.ID, "title", track.Title)
	return r.writeTrack(cmd, track)
}

// UpdateTrack overwrites the fields given as flags and keeps the others.
func (r *Runner) UpdateTrack(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track ID is required", shared.ErrMissingArgument)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	current, err := app.Tracks.Find(ctx, id)
	if err != nil {
		return err
	}

	track, err := app.Tracks.Update(ctx, id, trackInput(cmd, current))
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	r.logger.Info("updated track", "id", track.ID)
	return r.writeTrack(cmd, track)
}

// DeleteTrack removes a track.
func (r *Runner) DeleteTrack(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track ID is required", shared.ErrMissingArgument)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	if err := app.Tracks.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("deleted track", "id", id)
	r.writePlain("✓ Deleted %s\n", id)
	return nil
}

// CountTracks prints the number of matching tracks.
func (r *Runner) CountTracks(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	n, err := app.Reader.Count(ctx, cmd.String("search"), cmd.String("query"))
	if err != nil {
		return fmt.Errorf("failed to count tracks: %w", err)
	}
	r.writePlain("%d\n", n)
	return nil
}

// TrackExists prints true or false.
func (r *Runner) TrackExists(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track ID is required", shared.ErrMissingArgument)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	ok, err := app.Reader.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check track: %w", err)
	}
	r.writePlain("%t\n", ok)
	return nil
}

// ImportTracks creates every track in a JSON array of inputs.
//
// Creates run concurrently through the deferred provider; each one commits or rolls back on
// its own, so a failed input does not undo the others.
func (r *Runner) ImportTracks(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to a JSON file is required", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	var inputs []models.TrackInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("failed to parse import file: %w", err)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	futures := make([]*async.Future[models.TrackView], len(inputs))
	for i, in := range inputs {
		futures[i] = app.AsyncTracks.Create(ctx, in)
	}

	imported := 0
	for i, f := range futures {
		track, err := f.Await(ctx)
		if err != nil {
			r.logger.Warn("failed to import track", "index", i, "title", inputs[i].Title, "error", err)
			continue
		}
		imported++
		r.logger.Debug("imported track", "id", track.ID, "title", track.Title)
	}

	r.writePlain("✓ Imported %d of %d tracks\n", imported, len(inputs))
	if imported < len(inputs) {
		return fmt.Errorf("%d tracks failed to import", len(inputs)-imported)
	}
	return nil
}

// uniqueIDs drops repeated IDs, keeping the first occurrence of each.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// trackInput starts from base and overlays the flags that were set.
func trackInput(cmd *cli.Command, base models.TrackView) models.TrackInput {
	in := models.TrackInput{
		Service:   base.Service,
		ServiceID: base.ServiceID,
		Title:     base.Title,
		Artist:    base.Artist,
		Album:     base.Album,
		Duration:  base.Duration,
		ISRC:      base.ISRC,
	}

	if in.Service == "" || cmd.IsSet("service") {
		in.Service = cmd.String("service")
	}
	if cmd.IsSet("service-id") {
		in.ServiceID = cmd.String("service-id")
	}
	if cmd.IsSet("title") {
		in.Title = cmd.String("title")
	}
	if cmd.IsSet("artist") {
		in.Artist = cmd.String("artist")
	}
	if cmd.IsSet("album") {
		in.Album = cmd.String("album")
	}
	if cmd.IsSet("duration") {
		in.Duration = int(cmd.Int("duration"))
	}
	if cmd.IsSet("isrc") {
		in.ISRC = cmd.String("isrc")
	}
	return in
}

func (r *Runner) writeTrack(cmd *cli.Command, track models.TrackView) error {
	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", track.Artist, track.Title))
	r.writePlain("ID:       %s\n", track.ID)
	r.writePlain("Service:  %s\n", track.Service)
	if track.ServiceID != "" {
		r.writePlain("Remote:   %s\n", track.ServiceID)
	}
	if track.Album != "" {
		r.writePlain("Album:    %s\n", track.Album)
	}
	r.writePlain("Length:   %s\n", track.Length())
	if track.ISRC != "" {
		r.writePlain("ISRC:     %s\n", track.ISRC)
	}
	return nil
}

func (r *Runner) writeTrackLine(track models.TrackView) {
	r.writePlain("%s  %s - %s [%s]\n", track.ID, track.Artist, track.Title, track.Length())
}
