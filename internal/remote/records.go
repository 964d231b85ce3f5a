package remote

import (
	"encoding/json"
	"strconv"
)

// ArtRef is an image reference attached to catalog entities.
type ArtRef struct {
	URL         string `json:"url"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// RawTrack is a track record as returned by the service.
//
// Tracks carry two identifiers: ID is the per-account library row id, NID the
// permanent store id. Uploaded tracks have no NID and their album/artist ids
// cannot be trusted. Payload retains the undecoded source JSON so fields the
// cache does not model (art variants, ratings, play counts) survive a
// snapshot round-trip.
type RawTrack struct {
	ID             string
	NID            string
	Title          string
	Album          string
	Artist         string
	AlbumArtist    string
	AlbumID        string
	ArtistIDs      []string
	Genre          string
	DiscNumber     int
	TrackNumber    int
	DurationMillis int64
	Compilation    bool
	AlbumArtRefs   []ArtRef
	ArtistArtRefs  []ArtRef
	Payload        json.RawMessage
}

type rawTrackJSON struct {
	ID             string      `json:"id"`
	NID            string      `json:"nid"`
	Title          string      `json:"title"`
	Album          string      `json:"album"`
	Artist         string      `json:"artist"`
	AlbumArtist    string      `json:"albumArtist"`
	AlbumID        string      `json:"albumId"`
	ArtistIDs      []string    `json:"artistId"`
	Genre          string      `json:"genre"`
	DiscNumber     int         `json:"discNumber"`
	TrackNumber    int         `json:"trackNumber"`
	DurationMillis json.Number `json:"durationMillis"`
	Compilation    bool        `json:"isCompilation"`
	AlbumArtRefs   []ArtRef    `json:"albumArtRef"`
	ArtistArtRefs  []ArtRef    `json:"artistArtRef"`
}

// UnmarshalJSON decodes the modelled fields and keeps the raw bytes as the
// provenance payload. The service sends durations as decimal strings.
func (t *RawTrack) UnmarshalJSON(data []byte) error {
	var aux rawTrackJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	millis, _ := aux.DurationMillis.Int64()

	*t = RawTrack{
		ID:             aux.ID,
		NID:            aux.NID,
		Title:          aux.Title,
		Album:          aux.Album,
		Artist:         aux.Artist,
		AlbumArtist:    aux.AlbumArtist,
		AlbumID:        aux.AlbumID,
		ArtistIDs:      aux.ArtistIDs,
		Genre:          aux.Genre,
		DiscNumber:     aux.DiscNumber,
		TrackNumber:    aux.TrackNumber,
		DurationMillis: millis,
		Compilation:    aux.Compilation,
		AlbumArtRefs:   aux.AlbumArtRefs,
		ArtistArtRefs:  aux.ArtistArtRefs,
		Payload:        append(json.RawMessage(nil), data...),
	}
	return nil
}

// MarshalJSON writes the provenance payload back out verbatim when present.
func (t RawTrack) MarshalJSON() ([]byte, error) {
	if len(t.Payload) > 0 {
		return t.Payload, nil
	}
	return json.Marshal(rawTrackJSON{
		ID:             t.ID,
		NID:            t.NID,
		Title:          t.Title,
		Album:          t.Album,
		Artist:         t.Artist,
		AlbumArtist:    t.AlbumArtist,
		AlbumID:        t.AlbumID,
		ArtistIDs:      t.ArtistIDs,
		Genre:          t.Genre,
		DiscNumber:     t.DiscNumber,
		TrackNumber:    t.TrackNumber,
		DurationMillis: json.Number(strconv.FormatInt(t.DurationMillis, 10)),
		Compilation:    t.Compilation,
		AlbumArtRefs:   t.AlbumArtRefs,
		ArtistArtRefs:  t.ArtistArtRefs,
	})
}

// RawArtist is an artist record as returned by the service.
type RawArtist struct {
	ArtistID      string   `json:"artistId"`
	Name          string   `json:"name"`
	ArtistArtRef  string   `json:"artistArtRef,omitempty"`
	ArtistArtRefs []ArtRef `json:"artistArtRefs,omitempty"`

	Payload json.RawMessage `json:"-"`
}

func (a *RawArtist) UnmarshalJSON(data []byte) error {
	type alias RawArtist
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = RawArtist(aux)
	a.Payload = append(json.RawMessage(nil), data...)
	return nil
}

// RawAlbum is an album record as returned by the service. Artist holds the
// album artist's display name; ArtistIDs the candidate artist catalog ids.
type RawAlbum struct {
	AlbumID     string   `json:"albumId"`
	Name        string   `json:"name"`
	Artist      string   `json:"albumArtist"`
	ArtistIDs   []string `json:"artistId,omitempty"`
	AlbumArtRef string   `json:"albumArtRef,omitempty"`

	Payload json.RawMessage `json:"-"`
}

func (a *RawAlbum) UnmarshalJSON(data []byte) error {
	type alias RawAlbum
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = RawAlbum(aux)
	a.Payload = append(json.RawMessage(nil), data...)
	return nil
}

// RawGenre is a catalog genre. Root genres have an empty ParentID.
type RawGenre struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parentId,omitempty"`
	Images   []ArtRef `json:"images,omitempty"`
}

// RawPlaylist is a playlist header; entries are fetched separately.
type RawPlaylist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ShareToken string `json:"shareToken,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
}

// RawPlaylistEntry is one ordered slot of a playlist. TrackID references the
// library or store track; shared playlists embed the full track record since
// the subscriber's library cannot resolve it.
type RawPlaylistEntry struct {
	ID      string    `json:"id"`
	TrackID string    `json:"trackId"`
	Track   *RawTrack `json:"track,omitempty"`
}

// RawStation is a radio station record. Composite art comes in several aspect
// ratios; ratio 1 images are thumbnails, wider ones banner art.
type RawStation struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	InLibrary        bool        `json:"inLibrary"`
	Seed             StationSeed `json:"seed"`
	CompositeArtRefs []ArtRef    `json:"compositeArtRefs,omitempty"`
}

// StationSeed identifies the entity a station was created from.
type StationSeed struct {
	Kind     string `json:"kind,omitempty"`
	TrackID  string `json:"trackId,omitempty"`
	AlbumID  string `json:"albumId,omitempty"`
	ArtistID string `json:"artistId,omitempty"`
	GenreID  string `json:"genreId,omitempty"`
}

// RawDevice is a device registered to the account.
type RawDevice struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	FriendlyName string `json:"friendlyName,omitempty"`
}
