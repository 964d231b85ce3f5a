package library

import (
	"encoding/json"
	"sort"

	"skytune/internal/shared"
)

// graph is one immutable-after-commit view of the entity indices. Refreshes
// build a new graph from a deep clone of the committed one and swap it in
// atomically, so readers never observe a half-applied cycle.
type graph struct {
	tracks     map[string]*Track
	trackByLID map[string]string
	albums     map[string]*Album
	artists    map[string]*Artist
	genres     map[string]*Genre
	playlists  map[string]*Playlist
	stations   map[string]*Station

	// albumByKey indexes albums by "artistName\x00albumName" so tracks
	// without trustworthy catalog ids land in the album a store track
	// already created instead of a duplicate synthetic one.
	albumByKey map[string]string

	genreByName  map[string]string
	rootGenreIDs []string

	// deviceID is the streaming device discovered for this session, cached
	// in the graph so it survives a snapshot round-trip.
	deviceID string
}

// newGraph returns an empty graph with the Various Artists sentinel seeded.
func newGraph() *graph {
	g := &graph{
		tracks:      map[string]*Track{},
		trackByLID:  map[string]string{},
		albums:      map[string]*Album{},
		artists:     map[string]*Artist{},
		genres:      map[string]*Genre{},
		playlists:   map[string]*Playlist{},
		stations:    map[string]*Station{},
		albumByKey:  map[string]string{},
		genreByName: map[string]string{},
	}
	g.seedVariousArtists()
	return g
}

func (g *graph) seedVariousArtists() {
	if _, ok := g.artists[shared.VariousArtistsID]; ok {
		return
	}
	g.artists[shared.VariousArtistsID] = &Artist{
		ID:       shared.VariousArtistsID,
		Kind:     Synthetic,
		Name:     shared.VariousArtistsName,
		AlbumIDs: map[string]struct{}{},
	}
}

// clone deep-copies the graph. Entity structs are copied by value so the new
// graph can be mutated without the committed one observing it.
func (g *graph) clone() *graph {
	next := &graph{
		tracks:       make(map[string]*Track, len(g.tracks)),
		trackByLID:   make(map[string]string, len(g.trackByLID)),
		albums:       make(map[string]*Album, len(g.albums)),
		artists:      make(map[string]*Artist, len(g.artists)),
		genres:       make(map[string]*Genre, len(g.genres)),
		playlists:    make(map[string]*Playlist, len(g.playlists)),
		stations:     make(map[string]*Station, len(g.stations)),
		albumByKey:   make(map[string]string, len(g.albumByKey)),
		genreByName:  make(map[string]string, len(g.genreByName)),
		rootGenreIDs: append([]string(nil), g.rootGenreIDs...),
		deviceID:     g.deviceID,
	}

	for id, t := range g.tracks {
		c := *t
		c.Payload = append(json.RawMessage(nil), t.Payload...)
		next.tracks[id] = &c
	}
	for lid, id := range g.trackByLID {
		next.trackByLID[lid] = id
	}
	for id, a := range g.albums {
		c := *a
		c.TrackIDs = cloneSet(a.TrackIDs)
		c.Art = append([]string(nil), a.Art...)
		next.albums[id] = &c
	}
	for id, a := range g.artists {
		c := *a
		c.AlbumIDs = cloneSet(a.AlbumIDs)
		c.Art = append([]string(nil), a.Art...)
		next.artists[id] = &c
	}
	for id, gen := range g.genres {
		c := *gen
		c.ChildIDs = append([]string(nil), gen.ChildIDs...)
		c.Art = append([]string(nil), gen.Art...)
		c.ExampleTrackIDs = append([]string(nil), gen.ExampleTrackIDs...)
		next.genres[id] = &c
	}
	for key, id := range g.albumByKey {
		next.albumByKey[key] = id
	}
	for name, id := range g.genreByName {
		next.genreByName[name] = id
	}
	for id, p := range g.playlists {
		c := *p
		c.TrackIDs = append([]string(nil), p.TrackIDs...)
		next.playlists[id] = &c
	}
	for id, s := range g.stations {
		c := *s
		next.stations[id] = &c
	}

	return next
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// insertTrack registers a fully resolved track and wires it into its album's
// membership set.
func (g *graph) insertTrack(t *Track) {
	g.tracks[t.ID] = t
	if t.LID != "" {
		g.trackByLID[t.LID] = t.ID
	}
	if album, ok := g.albums[t.AlbumID]; ok {
		album.TrackIDs[t.ID] = struct{}{}
	}
}

// removeTrack deletes a track and cascades: an album drained to zero tracks
// is removed and detached from its artist, an artist drained to zero albums
// is removed. The Various Artists sentinel is never removed.
func (g *graph) removeTrack(id string) {
	track, ok := g.tracks[id]
	if !ok {
		return
	}
	delete(g.tracks, id)
	if track.LID != "" {
		delete(g.trackByLID, track.LID)
	}

	album, ok := g.albums[track.AlbumID]
	if !ok {
		return
	}
	delete(album.TrackIDs, id)
	if len(album.TrackIDs) > 0 {
		return
	}
	delete(g.albums, album.ID)

	artist, ok := g.artists[album.ArtistID]
	if !ok {
		return
	}
	delete(g.albumByKey, albumKey(artist.Name, album.Name))
	delete(artist.AlbumIDs, album.ID)
	if len(artist.AlbumIDs) == 0 && !artist.IsVariousArtists() {
		delete(g.artists, artist.ID)
	}
}

// ensureAlbum returns the album with the given id, creating it when absent
// and attaching it to its artist and the attribution index.
func (g *graph) ensureAlbum(id string, kind Kind, name, artistID string) *Album {
	if album, ok := g.albums[id]; ok {
		return album
	}
	album := &Album{
		ID:       id,
		Kind:     kind,
		Name:     name,
		ArtistID: artistID,
		TrackIDs: map[string]struct{}{},
	}
	g.albums[id] = album
	if artist, ok := g.artists[artistID]; ok {
		artist.AlbumIDs[id] = struct{}{}
		g.albumByKey[albumKey(artist.Name, name)] = id
	}
	return album
}

// albumByAttribution finds an existing album by artist and album name.
func (g *graph) albumByAttribution(artistName, albumName string) *Album {
	if id, ok := g.albumByKey[albumKey(artistName, albumName)]; ok {
		return g.albums[id]
	}
	return nil
}

func albumKey(artistName, albumName string) string {
	return artistName + "\x00" + albumName
}

// ensureArtist returns the artist with the given id, creating it when absent.
func (g *graph) ensureArtist(id string, kind Kind, name string) *Artist {
	if artist, ok := g.artists[id]; ok {
		return artist
	}
	artist := &Artist{
		ID:       id,
		Kind:     kind,
		Name:     name,
		AlbumIDs: map[string]struct{}{},
	}
	g.artists[id] = artist
	return artist
}

// addArt appends a URL to an art list unless it is empty or already known.
// First-seen art wins; later refreshes never displace it.
func addArt(art []string, url string) []string {
	if url == "" {
		return art
	}
	for _, known := range art {
		if known == url {
			return art
		}
	}
	return append(art, url)
}

// collectGarbageGenres drops every genre not referenced by any track,
// keeping the ancestors of referenced genres so the tree stays walkable.
func (g *graph) collectGarbageGenres() {
	keep := map[string]struct{}{}
	for _, t := range g.tracks {
		for id := t.GenreID; id != ""; {
			if _, seen := keep[id]; seen {
				break
			}
			keep[id] = struct{}{}
			genre, ok := g.genres[id]
			if !ok {
				break
			}
			id = genre.ParentID
		}
	}

	for id, genre := range g.genres {
		if _, ok := keep[id]; ok {
			continue
		}
		delete(g.genres, id)
		delete(g.genreByName, genre.Name)
	}

	// Prune dropped children and roots.
	for _, genre := range g.genres {
		kept := genre.ChildIDs[:0]
		for _, child := range genre.ChildIDs {
			if _, ok := g.genres[child]; ok {
				kept = append(kept, child)
			}
		}
		genre.ChildIDs = kept
	}
	roots := g.rootGenreIDs[:0]
	for _, id := range g.rootGenreIDs {
		if _, ok := g.genres[id]; ok {
			roots = append(roots, id)
		}
	}
	g.rootGenreIDs = roots
}

// sortedTrackIDs returns an album's member track ids ordered by the track
// ordering key (discNumber, trackNumber).
func (g *graph) sortedTrackIDs(album *Album) []string {
	ids := make([]string, 0, len(album.TrackIDs))
	for id := range album.TrackIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.tracks[ids[i]], g.tracks[ids[j]]
		if a.DiscNumber != b.DiscNumber {
			return a.DiscNumber < b.DiscNumber
		}
		if a.TrackNumber != b.TrackNumber {
			return a.TrackNumber < b.TrackNumber
		}
		return a.ID < b.ID
	})
	return ids
}
