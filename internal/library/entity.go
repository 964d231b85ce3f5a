// package library implements the in-memory library cache and sync engine.
//
// A [Library] owns one account's entity graph (artists, albums, tracks,
// playlists, stations, genres) and keeps it current by diffing the remote
// catalog against the cached state on every refresh cycle. Readers always see
// a complete, committed graph; a failed refresh leaves the previous graph
// untouched.
package library

import (
	"encoding/json"

	"skytune/internal/shared"
)

// Kind tags an entity as catalog-backed or locally fabricated.
type Kind int

const (
	// Real entities carry an identifier assigned by the remote catalog.
	Real Kind = iota
	// Synthetic entities were fabricated from track metadata because no
	// catalog id was available or trustworthy.
	Synthetic
)

func (k Kind) String() string {
	switch k {
	case Real:
		return "real"
	case Synthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// Track is one playable song in the library.
//
// ID is stable across refreshes: the permanent store id when the catalog
// assigned one, otherwise a content-derived synthetic id. LID is the
// per-account library row id the track feed is keyed by; tracks pulled in
// through playlists may have none. AlbumName and AlbumArtistName duplicate
// the attribution fields from the source record so a later refresh can detect
// attribution changes without reparsing the payload.
type Track struct {
	ID              string
	LID             string
	Kind            Kind
	Title           string
	DiscNumber      int
	TrackNumber     int
	DurationMillis  int64
	AlbumID         string
	GenreID         string
	AlbumName       string
	AlbumArtistName string
	Payload         json.RawMessage
}

// Album groups tracks under one artist. TrackIDs is the membership set; an
// album whose set drains to empty is garbage and gets removed by the cascade.
type Album struct {
	ID       string
	Kind     Kind
	Name     string
	ArtistID string
	TrackIDs map[string]struct{}
	Art      []string
}

// Thumb returns the first known art URL, or empty when none was ever seen.
func (a *Album) Thumb() string {
	if len(a.Art) == 0 {
		return ""
	}
	return a.Art[0]
}

// Artist owns albums. The "Various Artists" sentinel is an Artist like any
// other except it survives garbage collection with zero albums.
type Artist struct {
	ID       string
	Kind     Kind
	Name     string
	AlbumIDs map[string]struct{}
	Art      []string
}

func (a *Artist) Thumb() string {
	if len(a.Art) == 0 {
		return ""
	}
	return a.Art[0]
}

// IsVariousArtists reports whether this is the compilation sentinel.
func (a *Artist) IsVariousArtists() bool {
	return a.ID == shared.VariousArtistsID
}

// Genre is a node of the genre forest. Real genres come from the catalog's
// genre tree; synthetic ones exist only because some track named them in
// free-text metadata. Synthetic genres keep a few example tracks so a
// thumbnail can be derived from their album art.
type Genre struct {
	ID              string
	Kind            Kind
	Name            string
	ParentID        string
	ChildIDs        []string
	Art             []string
	ExampleTrackIDs []string
}

// Playlist is an ordered list of track references. Order is playlist-defined,
// never disc/track order.
type Playlist struct {
	ID         string
	Name       string
	ShareToken string
	TrackIDs   []string
}

// Station is a radio station header. Track lists are generated server-side
// per request and fetched live, never cached.
type Station struct {
	ID    string
	Name  string
	Art   string
	Thumb string
}
