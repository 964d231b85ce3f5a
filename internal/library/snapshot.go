package library

import (
	"encoding/json"
	"fmt"
	"sort"

	"skytune/internal/shared"
)

// SnapshotSchema versions the persisted snapshot format. A blob written
// under any other version is discarded wholesale; there is no migration.
const SnapshotSchema = 1

// The snapshot flattens the graph to id-keyed records. Cross-references are
// serialized as ids only and membership sets are rebuilt on load, so forward
// references between entities never matter.
type snapshotFile struct {
	Schema   int    `json:"schema"`
	DeviceID string `json:"deviceId,omitempty"`

	Artists   []snapshotArtist   `json:"artists"`
	Albums    []snapshotAlbum    `json:"albums"`
	Tracks    []snapshotTrack    `json:"tracks"`
	Genres    []snapshotGenre    `json:"genres"`
	Playlists []snapshotPlaylist `json:"playlists"`
	Stations  []snapshotStation  `json:"stations"`
}

type snapshotArtist struct {
	ID   string   `json:"id"`
	Kind Kind     `json:"kind"`
	Name string   `json:"name"`
	Art  []string `json:"art,omitempty"`
}

type snapshotAlbum struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	ArtistID string   `json:"artistId"`
	Art      []string `json:"art,omitempty"`
}

type snapshotTrack struct {
	ID              string          `json:"id"`
	LID             string          `json:"lid,omitempty"`
	Kind            Kind            `json:"kind"`
	Title           string          `json:"title"`
	DiscNumber      int             `json:"discNumber,omitempty"`
	TrackNumber     int             `json:"trackNumber,omitempty"`
	DurationMillis  int64           `json:"durationMillis,omitempty"`
	AlbumID         string          `json:"albumId"`
	GenreID         string          `json:"genreId,omitempty"`
	AlbumName       string          `json:"albumName,omitempty"`
	AlbumArtistName string          `json:"albumArtistName,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

type snapshotGenre struct {
	ID              string   `json:"id"`
	Kind            Kind     `json:"kind"`
	Name            string   `json:"name"`
	ParentID        string   `json:"parentId,omitempty"`
	ChildIDs        []string `json:"childIds,omitempty"`
	Art             []string `json:"art,omitempty"`
	ExampleTrackIDs []string `json:"exampleTrackIds,omitempty"`
}

type snapshotPlaylist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ShareToken string   `json:"shareToken,omitempty"`
	TrackIDs   []string `json:"trackIds,omitempty"`
}

type snapshotStation struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Art   string `json:"art,omitempty"`
	Thumb string `json:"thumb,omitempty"`
}

// encodeSnapshot serializes the graph. Records are emitted in sorted id
// order so the same graph always produces the same bytes.
func (g *graph) encodeSnapshot() ([]byte, error) {
	file := snapshotFile{
		Schema:    SnapshotSchema,
		DeviceID:  g.deviceID,
		Artists:   []snapshotArtist{},
		Albums:    []snapshotAlbum{},
		Tracks:    []snapshotTrack{},
		Genres:    []snapshotGenre{},
		Playlists: []snapshotPlaylist{},
		Stations:  []snapshotStation{},
	}

	for _, a := range g.artists {
		file.Artists = append(file.Artists, snapshotArtist{ID: a.ID, Kind: a.Kind, Name: a.Name, Art: a.Art})
	}
	for _, a := range g.albums {
		file.Albums = append(file.Albums, snapshotAlbum{ID: a.ID, Kind: a.Kind, Name: a.Name, ArtistID: a.ArtistID, Art: a.Art})
	}
	for _, t := range g.tracks {
		file.Tracks = append(file.Tracks, snapshotTrack{
			ID:              t.ID,
			LID:             t.LID,
			Kind:            t.Kind,
			Title:           t.Title,
			DiscNumber:      t.DiscNumber,
			TrackNumber:     t.TrackNumber,
			DurationMillis:  t.DurationMillis,
			AlbumID:         t.AlbumID,
			GenreID:         t.GenreID,
			AlbumName:       t.AlbumName,
			AlbumArtistName: t.AlbumArtistName,
			Payload:         t.Payload,
		})
	}
	for _, gen := range g.genres {
		file.Genres = append(file.Genres, snapshotGenre{
			ID:              gen.ID,
			Kind:            gen.Kind,
			Name:            gen.Name,
			ParentID:        gen.ParentID,
			ChildIDs:        gen.ChildIDs,
			Art:             gen.Art,
			ExampleTrackIDs: gen.ExampleTrackIDs,
		})
	}
	for _, p := range g.playlists {
		file.Playlists = append(file.Playlists, snapshotPlaylist{ID: p.ID, Name: p.Name, ShareToken: p.ShareToken, TrackIDs: p.TrackIDs})
	}
	for _, s := range g.stations {
		file.Stations = append(file.Stations, snapshotStation{ID: s.ID, Name: s.Name, Art: s.Art, Thumb: s.Thumb})
	}

	sort.Slice(file.Artists, func(i, j int) bool { return file.Artists[i].ID < file.Artists[j].ID })
	sort.Slice(file.Albums, func(i, j int) bool { return file.Albums[i].ID < file.Albums[j].ID })
	sort.Slice(file.Tracks, func(i, j int) bool { return file.Tracks[i].ID < file.Tracks[j].ID })
	sort.Slice(file.Genres, func(i, j int) bool { return file.Genres[i].ID < file.Genres[j].ID })
	sort.Slice(file.Playlists, func(i, j int) bool { return file.Playlists[i].ID < file.Playlists[j].ID })
	sort.Slice(file.Stations, func(i, j int) bool { return file.Stations[i].ID < file.Stations[j].ID })

	blob, err := json.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return blob, nil
}

// decodeSnapshot rebuilds a graph from a persisted blob in two passes:
// entities first, then relinking. Records whose cross-references do not
// resolve are dropped, and entities drained by the drops are pruned, so a
// damaged snapshot degrades to a smaller valid graph instead of a broken one.
func decodeSnapshot(blob []byte) (*graph, error) {
	var file snapshotFile
	if err := json.Unmarshal(blob, &file); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if file.Schema != SnapshotSchema {
		return nil, fmt.Errorf("%w: snapshot schema %d, expected %d", shared.ErrSchemaMismatch, file.Schema, SnapshotSchema)
	}

	g := newGraph()
	g.deviceID = file.DeviceID

	for _, rec := range file.Artists {
		g.artists[rec.ID] = &Artist{ID: rec.ID, Kind: rec.Kind, Name: rec.Name, AlbumIDs: map[string]struct{}{}, Art: rec.Art}
	}
	g.seedVariousArtists()

	for _, rec := range file.Albums {
		artist, ok := g.artists[rec.ArtistID]
		if !ok {
			continue
		}
		g.albums[rec.ID] = &Album{ID: rec.ID, Kind: rec.Kind, Name: rec.Name, ArtistID: rec.ArtistID, TrackIDs: map[string]struct{}{}, Art: rec.Art}
		artist.AlbumIDs[rec.ID] = struct{}{}
	}

	for _, rec := range file.Tracks {
		album, ok := g.albums[rec.AlbumID]
		if !ok {
			continue
		}
		track := &Track{
			ID:              rec.ID,
			LID:             rec.LID,
			Kind:            rec.Kind,
			Title:           rec.Title,
			DiscNumber:      rec.DiscNumber,
			TrackNumber:     rec.TrackNumber,
			DurationMillis:  rec.DurationMillis,
			AlbumID:         rec.AlbumID,
			GenreID:         rec.GenreID,
			AlbumName:       rec.AlbumName,
			AlbumArtistName: rec.AlbumArtistName,
			Payload:         rec.Payload,
		}
		g.tracks[rec.ID] = track
		if rec.LID != "" {
			g.trackByLID[rec.LID] = rec.ID
		}
		album.TrackIDs[rec.ID] = struct{}{}
	}

	// Prune entities drained by dropped references.
	for id, album := range g.albums {
		if len(album.TrackIDs) > 0 {
			continue
		}
		delete(g.albums, id)
		if artist, ok := g.artists[album.ArtistID]; ok {
			delete(artist.AlbumIDs, id)
		}
	}
	for id, artist := range g.artists {
		if len(artist.AlbumIDs) == 0 && !artist.IsVariousArtists() {
			delete(g.artists, id)
		}
	}
	for id, album := range g.albums {
		if artist, ok := g.artists[album.ArtistID]; ok {
			g.albumByKey[albumKey(artist.Name, album.Name)] = id
		}
	}

	for _, rec := range file.Genres {
		g.genres[rec.ID] = &Genre{
			ID:              rec.ID,
			Kind:            rec.Kind,
			Name:            rec.Name,
			ParentID:        rec.ParentID,
			ChildIDs:        rec.ChildIDs,
			Art:             rec.Art,
			ExampleTrackIDs: rec.ExampleTrackIDs,
		}
		g.genreByName[rec.Name] = rec.ID
		if rec.ParentID == "" {
			g.rootGenreIDs = append(g.rootGenreIDs, rec.ID)
		}
	}
	sort.Strings(g.rootGenreIDs)

	for _, rec := range file.Playlists {
		g.playlists[rec.ID] = &Playlist{ID: rec.ID, Name: rec.Name, ShareToken: rec.ShareToken, TrackIDs: rec.TrackIDs}
	}
	for _, rec := range file.Stations {
		g.stations[rec.ID] = &Station{ID: rec.ID, Name: rec.Name, Art: rec.Art, Thumb: rec.Thumb}
	}

	return g, nil
}

// Snapshot serializes the committed graph.
func (l *Library) Snapshot() ([]byte, error) {
	return l.graph.Load().encodeSnapshot()
}

// Restore replaces the graph with one decoded from a persisted snapshot.
// A schema mismatch surfaces as [shared.ErrSchemaMismatch] and leaves the
// library on an empty graph.
func (l *Library) Restore(blob []byte) error {
	g, err := decodeSnapshot(blob)
	if err != nil {
		l.graph.Store(newGraph())
		return err
	}
	l.graph.Store(g)
	l.logger.Info("snapshot restored",
		"tracks", len(g.tracks), "albums", len(g.albums), "artists", len(g.artists))
	return nil
}
