package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"skytune/internal/shared"
)

func lsCommand(r *Runner) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "Emit JSON instead of plain text",
	}

	return &cli.Command{
		Name:  "ls",
		Usage: "List library entities",
		Commands: []*cli.Command{
			{
				Name:   "artists",
				Usage:  "List artists",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.ListArtists,
			},
			{
				Name:  "albums",
				Usage: "List albums, optionally for one artist",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "artist", Usage: "Artist id to filter by"},
				},
				Action: r.ListAlbums,
			},
			{
				Name:  "tracks",
				Usage: "List the tracks of one album",
				Flags: []cli.Flag{jsonFlag},
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "album"},
				},
				Action: r.ListTracks,
			},
			{
				Name:   "playlists",
				Usage:  "List playlists",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.ListPlaylists,
			},
			{
				Name:   "stations",
				Usage:  "List radio stations",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.ListStations,
			},
			{
				Name:   "genres",
				Usage:  "List root genres",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.ListGenres,
			},
		},
	}
}

type entityRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Extra string `json:"extra,omitempty"`
}

func (r *Runner) writeRows(rows []entityRow, asJSON bool) error {
	if asJSON {
		return r.writeJSON(rows, true)
	}
	for _, row := range rows {
		if row.Extra != "" {
			if err := r.writePlain("%s\t%s\t%s\n", row.ID, row.Name, row.Extra); err != nil {
				return err
			}
			continue
		}
		if err := r.writePlain("%s\t%s\n", row.ID, row.Name); err != nil {
			return err
		}
	}
	return nil
}

// ListArtists prints every artist in the library.
func (r *Runner) ListArtists(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	rows := []entityRow{}
	for _, artist := range lib.Artists() {
		rows = append(rows, entityRow{ID: artist.ID, Name: artist.Name})
	}
	return r.writeRows(rows, cmd.Bool("json"))
}

// ListAlbums prints albums, filtered to one artist when requested.
func (r *Runner) ListAlbums(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	albums := lib.Albums()
	if artistID := cmd.String("artist"); artistID != "" {
		if albums, err = lib.AlbumsByArtist(artistID); err != nil {
			return err
		}
	}

	rows := []entityRow{}
	for _, album := range albums {
		extra := ""
		if artist, err := lib.ArtistByID(album.ArtistID); err == nil {
			extra = artist.Name
		}
		rows = append(rows, entityRow{ID: album.ID, Name: album.Name, Extra: extra})
	}
	return r.writeRows(rows, cmd.Bool("json"))
}

// ListTracks prints one album's tracks in disc/track order.
func (r *Runner) ListTracks(ctx context.Context, cmd *cli.Command) error {
	albumID := cmd.StringArg("album")
	if albumID == "" {
		return fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}

	lib, err := r.library()
	if err != nil {
		return err
	}

	tracks, err := lib.TracksInAlbum(albumID)
	if err != nil {
		return err
	}

	rows := []entityRow{}
	for _, track := range tracks {
		duration := time.Duration(track.DurationMillis) * time.Millisecond
		rows = append(rows, entityRow{
			ID:    track.ID,
			Name:  track.Title,
			Extra: fmt.Sprintf("%d.%02d\t%s", track.DiscNumber, track.TrackNumber, duration.Round(time.Second)),
		})
	}
	return r.writeRows(rows, cmd.Bool("json"))
}

// ListPlaylists prints every playlist.
func (r *Runner) ListPlaylists(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	rows := []entityRow{}
	for _, playlist := range lib.Playlists() {
		rows = append(rows, entityRow{
			ID:    playlist.ID,
			Name:  playlist.Name,
			Extra: fmt.Sprintf("%d tracks", len(playlist.TrackIDs)),
		})
	}
	return r.writeRows(rows, cmd.Bool("json"))
}

// ListStations prints every library station.
func (r *Runner) ListStations(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	rows := []entityRow{}
	for _, station := range lib.Stations() {
		rows = append(rows, entityRow{ID: station.ID, Name: station.Name})
	}
	return r.writeRows(rows, cmd.Bool("json"))
}

// ListGenres prints the root genres.
func (r *Runner) ListGenres(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	rows := []entityRow{}
	for _, genre := range lib.Genres() {
		rows = append(rows, entityRow{ID: genre.ID, Name: genre.Name, Extra: genre.Kind.String()})
	}
	return r.writeRows(rows, cmd.Bool("json"))
}
