package library

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"skytune/internal/remote"
	"skytune/internal/shared"
)

// Phase identifies where a refresh cycle currently is. Failed returns the
// cycle to Idle without touching the committed graph.
type Phase int

const (
	Idle Phase = iota
	Authenticating
	Fetching
	Diffing
	Applying
	Persisting
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Authenticating:
		return "authenticating"
	case Fetching:
		return "fetching"
	case Diffing:
		return "diffing"
	case Applying:
		return "applying"
	case Persisting:
		return "persisting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// A synthetic genre keeps at most this many example tracks for thumbnails.
const maxGenreExamples = 10

// Refresh runs one full refresh cycle, blocking if another is in progress.
func (l *Library) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()
	return l.refresh(ctx)
}

// TryRefresh runs a refresh cycle unless one is already in progress, in
// which case the tick is skipped. Used by the periodic scheduler so ticks
// never pile up behind a slow cycle.
func (l *Library) TryRefresh(ctx context.Context) error {
	if !l.refreshMu.TryLock() {
		l.logger.Debug("refresh in progress, skipping tick")
		return nil
	}
	defer l.refreshMu.Unlock()
	return l.refresh(ctx)
}

// refresh is the cycle body. Callers must hold refreshMu. The committed
// graph is only replaced after every step succeeded; any cycle-level error
// leaves readers on the last good graph.
func (l *Library) refresh(ctx context.Context) error {
	fail := func(p Phase, err error) error {
		l.logger.Error("refresh aborted", "phase", p.String(), "err", err)
		return fmt.Errorf("refresh aborted while %s: %w", p, err)
	}

	if !l.client.IsAuthenticated() {
		creds := l.config.Credentials
		if err := l.client.Login(ctx, creds.Username, creds.Password, creds.DeviceID); err != nil {
			return fail(Authenticating, err)
		}
	}

	raws, err := l.client.AllTracks(ctx)
	if err != nil {
		return fail(Fetching, err)
	}
	l.logger.Debug("fetched track list", "count", len(raws))

	next := l.graph.Load().clone()

	if err := l.refreshGenres(ctx, next); err != nil {
		return fail(Fetching, err)
	}

	incoming := make(map[string]*remote.RawTrack, len(raws))
	for i := range raws {
		raw := &raws[i]
		lid := raw.ID
		if lid == "" {
			lid = raw.NID
		}
		incoming[lid] = raw
	}

	var added, retained, removed []string
	for lid := range incoming {
		if _, ok := next.trackByLID[lid]; ok {
			retained = append(retained, lid)
		} else {
			added = append(added, lid)
		}
	}
	for lid := range next.trackByLID {
		if _, ok := incoming[lid]; !ok {
			removed = append(removed, lid)
		}
	}
	l.logger.Info("catalog diff computed", "added", len(added), "retained", len(retained), "removed", len(removed))

	// Additions first so retained albums never look empty mid-cycle, and
	// store tracks first since their album/artist metadata is trustworthy
	// and uploaded tracks fall back on it.
	sort.Slice(added, func(i, j int) bool {
		a, b := incoming[added[i]], incoming[added[j]]
		if (a.NID != "") != (b.NID != "") {
			return a.NID != ""
		}
		return added[i] < added[j]
	})
	for _, lid := range added {
		l.ingestTrack(ctx, next, incoming[lid])
	}

	sort.Strings(retained)
	for _, lid := range retained {
		l.applyRetained(ctx, next, incoming[lid])
	}

	sort.Strings(removed)
	for _, lid := range removed {
		next.removeTrack(next.trackByLID[lid])
	}

	if err := l.refreshPlaylists(ctx, next); err != nil {
		return fail(Applying, err)
	}
	if err := l.refreshStations(ctx, next); err != nil {
		return fail(Applying, err)
	}
	next.collectGarbageGenres()

	l.graph.Store(next)
	l.logger.Info("refresh committed",
		"tracks", len(next.tracks), "albums", len(next.albums), "artists", len(next.artists),
		"playlists", len(next.playlists), "stations", len(next.stations), "genres", len(next.genres))

	if l.persist != nil {
		blob, err := next.encodeSnapshot()
		if err != nil {
			return fail(Persisting, err)
		}
		if err := l.persist(blob); err != nil {
			// The graph is already committed; losing the snapshot only
			// costs a cold start after the next process restart.
			l.logger.Error("snapshot persist failed", "err", err)
			return fmt.Errorf("snapshot persist failed: %w", err)
		}
	}

	return nil
}

// stableTrackID canonicalizes on the permanent store id when present, else a
// content-derived synthetic id.
func stableTrackID(raw *remote.RawTrack) string {
	if raw.NID != "" {
		return raw.NID
	}
	return shared.FakeTrackID(raw.Title, raw.Album, raw.AlbumArtist)
}

// albumArtistName picks the attribution name for album/artist resolution.
func albumArtistName(raw *remote.RawTrack) string {
	if raw.AlbumArtist != "" {
		return raw.AlbumArtist
	}
	return raw.Artist
}

// ingestTrack resolves one raw record into the graph: canonical track id,
// album, artist, genre, art. Metadata mismatches downgrade to synthetic
// entities and never fail the cycle.
func (l *Library) ingestTrack(ctx context.Context, g *graph, raw *remote.RawTrack) *Track {
	id := stableTrackID(raw)

	if existing, ok := g.tracks[id]; ok {
		// Known already, e.g. pulled in earlier through a playlist.
		// Adopt the library row id and the fresher payload.
		if raw.ID != "" && existing.LID == "" {
			existing.LID = raw.ID
			g.trackByLID[raw.ID] = id
		}
		existing.Payload = append(json.RawMessage(nil), raw.Payload...)
		return existing
	}

	album := l.resolveAlbum(ctx, g, raw)
	genreID := g.ensureGenre(raw.Genre, id)

	kind := Real
	if raw.NID == "" {
		kind = Synthetic
	}
	track := &Track{
		ID:              id,
		LID:             raw.ID,
		Kind:            kind,
		Title:           raw.Title,
		DiscNumber:      raw.DiscNumber,
		TrackNumber:     raw.TrackNumber,
		DurationMillis:  raw.DurationMillis,
		AlbumID:         album.ID,
		GenreID:         genreID,
		AlbumName:       raw.Album,
		AlbumArtistName: raw.AlbumArtist,
		Payload:         append(json.RawMessage(nil), raw.Payload...),
	}
	g.insertTrack(track)

	for _, ref := range raw.AlbumArtRefs {
		album.Art = addArt(album.Art, ref.URL)
	}
	if artist, ok := g.artists[album.ArtistID]; ok {
		for _, ref := range raw.ArtistArtRefs {
			artist.Art = addArt(artist.Art, ref.URL)
		}
	}

	return track
}

// applyRetained updates a track that survived the diff. A changed album or
// album-artist attribution means the track's place in the graph is wrong, so
// it churns through a full remove and re-add; anything else patches in place.
func (l *Library) applyRetained(ctx context.Context, g *graph, raw *remote.RawTrack) {
	id, ok := g.trackByLID[raw.ID]
	if !ok {
		l.ingestTrack(ctx, g, raw)
		return
	}
	track := g.tracks[id]

	if track.AlbumName != raw.Album || track.AlbumArtistName != raw.AlbumArtist {
		l.logger.Debug("track attribution changed, re-adding", "track", track.Title)
		g.removeTrack(id)
		l.ingestTrack(ctx, g, raw)
		return
	}

	track.Title = raw.Title
	track.DiscNumber = raw.DiscNumber
	track.TrackNumber = raw.TrackNumber
	track.DurationMillis = raw.DurationMillis
	track.GenreID = g.ensureGenre(raw.Genre, id)
	track.Payload = append(json.RawMessage(nil), raw.Payload...)

	if album, ok := g.albums[track.AlbumID]; ok {
		for _, ref := range raw.AlbumArtRefs {
			album.Art = addArt(album.Art, ref.URL)
		}
	}
}

// resolveAlbum maps a raw track to its album. A catalog album id is only
// trusted on store tracks, and only when the catalog's record agrees with the
// track's own album field; everything else falls back to a synthetic album
// keyed by hashed attribution.
func (l *Library) resolveAlbum(ctx context.Context, g *graph, raw *remote.RawTrack) *Album {
	if raw.NID != "" && raw.AlbumID != "" {
		if album, ok := g.albums[raw.AlbumID]; ok {
			return album
		}

		info, err := l.client.AlbumInfo(ctx, raw.AlbumID)
		switch {
		case err != nil:
			l.logger.Warn("album lookup failed, using synthetic album", "album_id", raw.AlbumID, "err", err)
		case info.Name != raw.Album:
			l.logger.Warn("album metadata mismatch, using synthetic album",
				"album_id", raw.AlbumID, "catalog", info.Name, "track", raw.Album, "err", shared.ErrMetadataMismatch)
		default:
			artist := l.resolveArtist(ctx, g, raw, info)
			album := g.ensureAlbum(raw.AlbumID, Real, info.Name, artist.ID)
			album.Art = addArt(album.Art, info.AlbumArtRef)
			return album
		}
	}
	return l.syntheticAlbum(g, raw)
}

// syntheticAlbum fabricates an album from track metadata alone. An album a
// trustworthy track already created under the same attribution is reused, so
// uploaded tracks join their store siblings instead of splitting the album.
func (l *Library) syntheticAlbum(g *graph, raw *remote.RawTrack) *Album {
	if album := g.albumByAttribution(albumArtistName(raw), raw.Album); album != nil {
		return album
	}
	artist := l.syntheticArtist(g, raw)
	if album := g.albumByAttribution(artist.Name, raw.Album); album != nil {
		return album
	}
	id := shared.FakeAlbumID(albumArtistName(raw), raw.Album)
	return g.ensureAlbum(id, Synthetic, raw.Album, artist.ID)
}

func (l *Library) syntheticArtist(g *graph, raw *remote.RawTrack) *Artist {
	name := albumArtistName(raw)
	if raw.Compilation || name == "" {
		return g.artists[shared.VariousArtistsID]
	}
	return g.ensureArtist(shared.FakeArtistID(name), Synthetic, name)
}

// resolveArtist maps a verified catalog album to its artist, with the same
// trust-but-verify rule as resolveAlbum.
func (l *Library) resolveArtist(ctx context.Context, g *graph, raw *remote.RawTrack, album *remote.RawAlbum) *Artist {
	if raw.Compilation {
		return g.artists[shared.VariousArtistsID]
	}

	ids := album.ArtistIDs
	if len(ids) == 0 {
		ids = raw.ArtistIDs
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if artist, ok := g.artists[id]; ok {
			return artist
		}

		info, err := l.client.ArtistInfo(ctx, id)
		switch {
		case err != nil:
			l.logger.Warn("artist lookup failed, using synthetic artist", "artist_id", id, "err", err)
		case info.Name != albumArtistName(raw):
			l.logger.Warn("artist metadata mismatch, using synthetic artist",
				"artist_id", id, "catalog", info.Name, "track", albumArtistName(raw), "err", shared.ErrMetadataMismatch)
		default:
			artist := g.ensureArtist(id, Real, info.Name)
			artist.Art = addArt(artist.Art, info.ArtistArtRef)
			return artist
		}
		break
	}
	return l.syntheticArtist(g, raw)
}

// ensureGenre resolves a free-text genre name to a genre id, creating a
// synthetic genre on first sight and collecting example tracks on it for
// thumbnail derivation.
func (g *graph) ensureGenre(name, exampleTrackID string) string {
	if name == "" {
		return ""
	}

	if id, ok := g.genreByName[name]; ok {
		genre := g.genres[id]
		if genre.Kind == Synthetic && len(genre.ExampleTrackIDs) < maxGenreExamples && exampleTrackID != "" {
			for _, known := range genre.ExampleTrackIDs {
				if known == exampleTrackID {
					return id
				}
			}
			genre.ExampleTrackIDs = append(genre.ExampleTrackIDs, exampleTrackID)
		}
		return id
	}

	id := shared.FakeGenreID(name)
	genre := &Genre{ID: id, Kind: Synthetic, Name: name}
	if exampleTrackID != "" {
		genre.ExampleTrackIDs = []string{exampleTrackID}
	}
	g.genres[id] = genre
	g.genreByName[name] = id
	g.rootGenreIDs = append(g.rootGenreIDs, id)
	return id
}

// refreshGenres rebuilds the real genre tree by walking the catalog parent by
// parent. Synthetic genres carry over; a real genre with the same name takes
// over the name index so new tracks link to the catalog node.
func (l *Library) refreshGenres(ctx context.Context, g *graph) error {
	fresh := map[string]*Genre{}
	byName := map[string]string{}
	var roots []string

	for id, genre := range g.genres {
		if genre.Kind != Synthetic {
			continue
		}
		fresh[id] = genre
		byName[genre.Name] = id
		roots = append(roots, id)
	}

	var walk func(parentID string) error
	walk = func(parentID string) error {
		raws, err := l.client.Genres(ctx, parentID)
		if err != nil {
			return err
		}
		for _, raw := range raws {
			genre := &Genre{ID: raw.ID, Kind: Real, Name: raw.Name, ParentID: parentID}
			for _, img := range raw.Images {
				genre.Art = addArt(genre.Art, img.URL)
			}
			fresh[raw.ID] = genre
			byName[raw.Name] = raw.ID
			if parentID == "" {
				roots = append(roots, raw.ID)
			} else {
				fresh[parentID].ChildIDs = append(fresh[parentID].ChildIDs, raw.ID)
			}
			if err := walk(raw.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return err
	}

	sort.Strings(roots)
	g.genres = fresh
	g.genreByName = byName
	g.rootGenreIDs = roots
	return nil
}

// refreshPlaylists replaces the playlist index wholesale. Entries resolve
// through the track indices first, then the embedded record, then an
// on-demand catalog fetch; an entry failing all three is skipped with a
// warning rather than failing the playlist.
func (l *Library) refreshPlaylists(ctx context.Context, g *graph) error {
	raws, err := l.client.AllPlaylists(ctx)
	if err != nil {
		return err
	}

	playlists := make(map[string]*Playlist, len(raws))
	for _, raw := range raws {
		entries, err := l.client.PlaylistEntries(ctx, raw.ID)
		if err != nil && raw.ShareToken != "" {
			entries, err = l.client.SharedPlaylistEntries(ctx, raw.ShareToken)
		}
		if err != nil {
			return err
		}

		playlist := &Playlist{ID: raw.ID, Name: raw.Name, ShareToken: raw.ShareToken}
		for i := range entries {
			id, ok := l.resolveEntry(ctx, g, &entries[i])
			if !ok {
				l.logger.Warn("skipping unresolvable playlist entry", "playlist", raw.Name, "track_ref", entries[i].TrackID)
				continue
			}
			playlist.TrackIDs = append(playlist.TrackIDs, id)
		}
		playlists[raw.ID] = playlist
	}

	g.playlists = playlists
	return nil
}

func (l *Library) resolveEntry(ctx context.Context, g *graph, entry *remote.RawPlaylistEntry) (string, bool) {
	if id, ok := g.trackByLID[entry.TrackID]; ok {
		return id, true
	}
	if _, ok := g.tracks[entry.TrackID]; ok {
		return entry.TrackID, true
	}
	if entry.Track != nil {
		return l.ingestTrack(ctx, g, entry.Track).ID, true
	}

	info, err := l.client.TrackInfo(ctx, entry.TrackID)
	if err != nil {
		return "", false
	}
	return l.ingestTrack(ctx, g, info).ID, true
}

// refreshStations replaces the station index with the stations currently in
// the user's library.
func (l *Library) refreshStations(ctx context.Context, g *graph) error {
	raws, err := l.client.AllStations(ctx)
	if err != nil {
		return err
	}

	stations := make(map[string]*Station, len(raws))
	for i := range raws {
		raw := &raws[i]
		if !raw.InLibrary {
			continue
		}
		stations[raw.ID] = stationFromRaw(raw, seedNameFromGraph(g, raw.Seed))
	}

	g.stations = stations
	return nil
}

// stationFromRaw builds a station header. Composite art in aspect ratio 1 is
// a thumbnail; wider ratios are banner art.
func stationFromRaw(raw *remote.RawStation, seedName string) *Station {
	station := &Station{ID: raw.ID, Name: stationName(seedName, raw.Name)}
	for _, ref := range raw.CompositeArtRefs {
		ratio, err := strconv.ParseFloat(ref.AspectRatio, 64)
		if err != nil {
			continue
		}
		if ratio > 1 {
			if station.Art == "" {
				station.Art = ref.URL
			}
		} else if station.Thumb == "" {
			station.Thumb = ref.URL
		}
	}
	return station
}

func seedNameFromGraph(g *graph, seed remote.StationSeed) string {
	switch {
	case seed.TrackID != "":
		if id, ok := g.trackByLID[seed.TrackID]; ok {
			return g.tracks[id].Title
		}
		if t, ok := g.tracks[seed.TrackID]; ok {
			return t.Title
		}
	case seed.AlbumID != "":
		if a, ok := g.albums[seed.AlbumID]; ok {
			return a.Name
		}
	case seed.ArtistID != "":
		if a, ok := g.artists[seed.ArtistID]; ok {
			return a.Name
		}
	case seed.GenreID != "":
		if gen, ok := g.genres[seed.GenreID]; ok {
			return gen.Name
		}
	}
	return ""
}

// trackFromRaw builds an ephemeral track view that never enters the graph,
// used for live station track listings.
func trackFromRaw(raw *remote.RawTrack) *Track {
	kind := Real
	if raw.NID == "" {
		kind = Synthetic
	}
	return &Track{
		ID:              stableTrackID(raw),
		LID:             raw.ID,
		Kind:            kind,
		Title:           raw.Title,
		DiscNumber:      raw.DiscNumber,
		TrackNumber:     raw.TrackNumber,
		DurationMillis:  raw.DurationMillis,
		AlbumName:       raw.Album,
		AlbumArtistName: raw.AlbumArtist,
		Payload:         append(json.RawMessage(nil), raw.Payload...),
	}
}
