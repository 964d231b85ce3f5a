package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"skytune/internal/remote"
	"skytune/internal/shared"
)

// PersistFunc receives the serialized snapshot at the end of each refresh
// cycle. The host owns the storage; the library only produces the blob.
type PersistFunc func(blob []byte) error

// Library is the root aggregate for one account: the committed entity graph,
// the authenticated remote client, and the refresh machinery.
//
// Reads are lock-free: accessors load the committed graph pointer and walk an
// immutable structure. Refreshes serialize on an internal mutex and publish
// by swapping the pointer.
type Library struct {
	client  remote.Client
	config  *shared.Config
	logger  *log.Logger
	persist PersistFunc

	graph     atomic.Pointer[graph]
	refreshMu sync.Mutex
}

// NewLibrary creates a Library over an authenticated (or authenticatable)
// remote client. persist may be nil when the host does not keep snapshots.
func NewLibrary(client remote.Client, config *shared.Config, persist PersistFunc, logger *log.Logger) *Library {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if config == nil {
		config = shared.DefaultConfig()
	}

	lib := &Library{
		client:  client,
		config:  config,
		logger:  shared.WithLogger(logger, "component", "library"),
		persist: persist,
	}
	lib.graph.Store(newGraph())
	return lib
}

// Close logs out the remote session and clears the graph. The Library must
// not be used afterwards.
func (l *Library) Close() error {
	l.graph.Store(newGraph())
	return l.client.Logout()
}

// Artists returns every artist owning at least one album, sorted by name.
// The Various Artists sentinel appears only once it owns albums.
func (l *Library) Artists() []*Artist {
	g := l.graph.Load()
	artists := make([]*Artist, 0, len(g.artists))
	for _, a := range g.artists {
		if len(a.AlbumIDs) > 0 {
			artists = append(artists, a)
		}
	}
	sortByName(artists, func(a *Artist) (string, string) { return a.Name, a.ID })
	return artists
}

// ArtistByID looks up a single artist.
func (l *Library) ArtistByID(id string) (*Artist, error) {
	if artist, ok := l.graph.Load().artists[id]; ok {
		return artist, nil
	}
	return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, id)
}

// Albums returns every album, sorted by name.
func (l *Library) Albums() []*Album {
	g := l.graph.Load()
	albums := make([]*Album, 0, len(g.albums))
	for _, a := range g.albums {
		albums = append(albums, a)
	}
	sortByName(albums, func(a *Album) (string, string) { return a.Name, a.ID })
	return albums
}

// AlbumByID looks up a single album.
func (l *Library) AlbumByID(id string) (*Album, error) {
	if album, ok := l.graph.Load().albums[id]; ok {
		return album, nil
	}
	return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, id)
}

// AlbumsByArtist returns the albums owned by one artist, sorted by name.
func (l *Library) AlbumsByArtist(artistID string) ([]*Album, error) {
	g := l.graph.Load()
	artist, ok := g.artists[artistID]
	if !ok {
		return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, artistID)
	}

	albums := make([]*Album, 0, len(artist.AlbumIDs))
	for id := range artist.AlbumIDs {
		if album, ok := g.albums[id]; ok {
			albums = append(albums, album)
		}
	}
	sortByName(albums, func(a *Album) (string, string) { return a.Name, a.ID })
	return albums, nil
}

// Tracks returns every track, sorted by title.
func (l *Library) Tracks() []*Track {
	g := l.graph.Load()
	tracks := make([]*Track, 0, len(g.tracks))
	for _, t := range g.tracks {
		tracks = append(tracks, t)
	}
	sortByName(tracks, func(t *Track) (string, string) { return t.Title, t.ID })
	return tracks
}

// TrackByID looks up a track by its stable id or its library row id.
func (l *Library) TrackByID(id string) (*Track, error) {
	g := l.graph.Load()
	if track, ok := g.tracks[id]; ok {
		return track, nil
	}
	if stable, ok := g.trackByLID[id]; ok {
		return g.tracks[stable], nil
	}
	return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
}

// TracksInAlbum returns an album's tracks ordered by (discNumber, trackNumber).
func (l *Library) TracksInAlbum(albumID string) ([]*Track, error) {
	g := l.graph.Load()
	album, ok := g.albums[albumID]
	if !ok {
		return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, albumID)
	}

	ids := g.sortedTrackIDs(album)
	tracks := make([]*Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, g.tracks[id])
	}
	return tracks, nil
}

// TracksInGenre returns the tracks tagged with one genre, sorted by title.
func (l *Library) TracksInGenre(genreID string) ([]*Track, error) {
	g := l.graph.Load()
	if _, ok := g.genres[genreID]; !ok {
		return nil, fmt.Errorf("%w: genre %s", shared.ErrNotFound, genreID)
	}

	var tracks []*Track
	for _, t := range g.tracks {
		if t.GenreID == genreID {
			tracks = append(tracks, t)
		}
	}
	sortByName(tracks, func(t *Track) (string, string) { return t.Title, t.ID })
	return tracks, nil
}

// Genres returns the root genres, sorted by name.
func (l *Library) Genres() []*Genre {
	g := l.graph.Load()
	genres := make([]*Genre, 0, len(g.rootGenreIDs))
	for _, id := range g.rootGenreIDs {
		if genre, ok := g.genres[id]; ok {
			genres = append(genres, genre)
		}
	}
	sortByName(genres, func(g *Genre) (string, string) { return g.Name, g.ID })
	return genres
}

// GenreByID looks up a single genre.
func (l *Library) GenreByID(id string) (*Genre, error) {
	if genre, ok := l.graph.Load().genres[id]; ok {
		return genre, nil
	}
	return nil, fmt.Errorf("%w: genre %s", shared.ErrNotFound, id)
}

// GenreChildren returns a genre's direct children, sorted by name.
func (l *Library) GenreChildren(id string) ([]*Genre, error) {
	g := l.graph.Load()
	genre, ok := g.genres[id]
	if !ok {
		return nil, fmt.Errorf("%w: genre %s", shared.ErrNotFound, id)
	}

	children := make([]*Genre, 0, len(genre.ChildIDs))
	for _, child := range genre.ChildIDs {
		if c, ok := g.genres[child]; ok {
			children = append(children, c)
		}
	}
	sortByName(children, func(g *Genre) (string, string) { return g.Name, g.ID })
	return children, nil
}

// GenreThumb derives a thumbnail URL for a genre: catalog art when the genre
// is real, else the album art of one of its example tracks.
func (l *Library) GenreThumb(id string) (string, error) {
	g := l.graph.Load()
	genre, ok := g.genres[id]
	if !ok {
		return "", fmt.Errorf("%w: genre %s", shared.ErrNotFound, id)
	}

	if len(genre.Art) > 0 {
		return genre.Art[0], nil
	}
	for _, trackID := range genre.ExampleTrackIDs {
		track, ok := g.tracks[trackID]
		if !ok {
			continue
		}
		if album, ok := g.albums[track.AlbumID]; ok && album.Thumb() != "" {
			return album.Thumb(), nil
		}
	}
	return "", nil
}

// Playlists returns every playlist, sorted by name.
func (l *Library) Playlists() []*Playlist {
	g := l.graph.Load()
	playlists := make([]*Playlist, 0, len(g.playlists))
	for _, p := range g.playlists {
		playlists = append(playlists, p)
	}
	sortByName(playlists, func(p *Playlist) (string, string) { return p.Name, p.ID })
	return playlists
}

// PlaylistByID looks up a single playlist.
func (l *Library) PlaylistByID(id string) (*Playlist, error) {
	if playlist, ok := l.graph.Load().playlists[id]; ok {
		return playlist, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
}

// PlaylistTracks resolves a playlist's entries in playlist order. Entries
// whose track vanished from the library are skipped.
func (l *Library) PlaylistTracks(id string) ([]*Track, error) {
	g := l.graph.Load()
	playlist, ok := g.playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}

	tracks := make([]*Track, 0, len(playlist.TrackIDs))
	for _, trackID := range playlist.TrackIDs {
		if track, ok := g.tracks[trackID]; ok {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

// Stations returns every station, sorted by name.
func (l *Library) Stations() []*Station {
	g := l.graph.Load()
	stations := make([]*Station, 0, len(g.stations))
	for _, s := range g.stations {
		stations = append(stations, s)
	}
	sortByName(stations, func(s *Station) (string, string) { return s.Name, s.ID })
	return stations
}

// StationByID looks up a single station.
func (l *Library) StationByID(id string) (*Station, error) {
	if station, ok := l.graph.Load().stations[id]; ok {
		return station, nil
	}
	return nil, fmt.Errorf("%w: station %s", shared.ErrNotFound, id)
}

// StationTracks fetches a station's current track list live from the remote
// service. The result is ephemeral and never enters the graph.
func (l *Library) StationTracks(ctx context.Context, id string, count int) ([]*Track, error) {
	if _, err := l.StationByID(id); err != nil {
		return nil, err
	}

	raws, err := l.client.StationTracks(ctx, id, count)
	if err != nil {
		return nil, err
	}

	tracks := make([]*Track, 0, len(raws))
	for _, raw := range raws {
		tracks = append(tracks, trackFromRaw(&raw))
	}
	return tracks, nil
}

// CreateStation creates a station on the remote service and registers it in
// the committed graph without waiting for the next refresh.
func (l *Library) CreateStation(ctx context.Context, seedKind, seedID string) (*Station, error) {
	seedName := l.seedName(seedKind, seedID)
	name := stationName(seedName, "")

	raw, err := l.client.CreateStation(ctx, name, seedKind, seedID)
	if err != nil {
		return nil, err
	}

	station := stationFromRaw(raw, seedName)

	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()
	next := l.graph.Load().clone()
	next.stations[station.ID] = station
	l.graph.Store(next)

	return station, nil
}

func (l *Library) seedName(seedKind, seedID string) string {
	g := l.graph.Load()
	switch seedKind {
	case "track":
		if t, ok := g.tracks[seedID]; ok {
			return t.Title
		}
	case "album":
		if a, ok := g.albums[seedID]; ok {
			return a.Name
		}
	case "artist":
		if a, ok := g.artists[seedID]; ok {
			return a.Name
		}
	case "genre":
		if gen, ok := g.genres[seedID]; ok {
			return gen.Name
		}
	}
	return ""
}

// ResolveStreamURL resolves a short-lived streaming URL for a track.
//
// The remote service requires a registered device identifier. When none is
// configured, the account's device list is queried once per session: the
// first Android device wins with its 2-character type prefix stripped, then
// the first iOS device verbatim. No compatible device is a hard failure.
func (l *Library) ResolveStreamURL(ctx context.Context, trackID, quality string) (string, error) {
	if !l.client.IsAuthenticated() {
		return "", shared.ErrNotAuthenticated
	}

	track, err := l.TrackByID(trackID)
	if err != nil {
		return "", err
	}

	deviceID, err := l.streamDeviceID(ctx)
	if err != nil {
		return "", err
	}

	if quality == "" {
		quality = l.config.Library.StreamQuality
	}

	// The service streams by library row id when the track has one.
	streamID := track.ID
	if track.LID != "" {
		streamID = track.LID
	}

	return l.client.StreamURL(ctx, streamID, deviceID, quality)
}

func (l *Library) streamDeviceID(ctx context.Context) (string, error) {
	if configured := l.config.Credentials.DeviceID; configured != "" && configured != remote.AutoDeviceID {
		return configured, nil
	}
	if cached := l.graph.Load().deviceID; cached != "" {
		return cached, nil
	}

	devices, err := l.client.RegisteredDevices(ctx)
	if err != nil {
		return "", err
	}

	deviceID := ""
	for _, d := range devices {
		if d.Type == remote.DeviceAndroid && len(d.ID) > 2 {
			deviceID = d.ID[2:]
			break
		}
	}
	if deviceID == "" {
		for _, d := range devices {
			if d.Type == remote.DeviceIOS {
				deviceID = d.ID
				break
			}
		}
	}
	if deviceID == "" {
		return "", shared.ErrDeviceUnavailable
	}

	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()
	next := l.graph.Load().clone()
	next.deviceID = deviceID
	l.graph.Store(next)

	l.logger.Debug("discovered streaming device", "device_id", deviceID)
	return deviceID, nil
}

// stationName derives a display name for a station: "<seed name> Radio" when
// the seed resolves, else the name the service reported.
func stationName(seedName, remoteName string) string {
	if seedName != "" {
		return seedName + " Radio"
	}
	return remoteName
}

func sortByName[T any](items []T, key func(T) (string, string)) {
	sort.Slice(items, func(i, j int) bool {
		ni, ii := key(items[i])
		nj, ij := key(items[j])
		if c := strings.Compare(strings.ToLower(ni), strings.ToLower(nj)); c != 0 {
			return c < 0
		}
		return ii < ij
	})
}
