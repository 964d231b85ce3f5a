// package remote wraps the cloud music service's mobile API.
//
// The Client interface is the boundary the library cache depends on; the
// MobileClient implementation speaks the service's HTTP protocol. Failures
// always surface as typed errors from [skytune/internal/shared], never as
// silent zero values.
package remote

import (
	"context"
)

// AutoDeviceID asks Login to register a locally generated device identifier
// instead of an id the user supplied.
const AutoDeviceID = "auto"

// Registered device types relevant for stream resolution.
const (
	DeviceAndroid = "ANDROID"
	DeviceIOS     = "IOS"
)

// Client defines the capabilities the library cache needs from the cloud
// music service.
type Client interface {
	// Login authenticates the account session. deviceID may be a registered
	// device identifier or [AutoDeviceID].
	Login(ctx context.Context, username, password, deviceID string) error

	// IsAuthenticated reports whether the session holds a valid token.
	IsAuthenticated() bool

	// Logout invalidates the session.
	Logout() error

	// AllTracks retrieves the complete track list of the user's library.
	AllTracks(ctx context.Context) ([]RawTrack, error)

	// TrackInfo retrieves catalog metadata for a single store track.
	TrackInfo(ctx context.Context, nid string) (*RawTrack, error)

	// ArtistInfo retrieves catalog metadata for an artist.
	ArtistInfo(ctx context.Context, id string) (*RawArtist, error)

	// AlbumInfo retrieves catalog metadata for an album.
	AlbumInfo(ctx context.Context, id string) (*RawAlbum, error)

	// Genres retrieves the genres under parentID, or the root genres when
	// parentID is empty.
	Genres(ctx context.Context, parentID string) ([]RawGenre, error)

	// AllPlaylists retrieves the user's playlists.
	AllPlaylists(ctx context.Context) ([]RawPlaylist, error)

	// PlaylistEntries retrieves the ordered entries of one playlist.
	PlaylistEntries(ctx context.Context, playlistID string) ([]RawPlaylistEntry, error)

	// SharedPlaylistEntries retrieves the entries of a playlist shared by
	// another user, addressed by its share token.
	SharedPlaylistEntries(ctx context.Context, shareToken string) ([]RawPlaylistEntry, error)

	// AllStations retrieves the user's radio stations.
	AllStations(ctx context.Context) ([]RawStation, error)

	// CreateStation creates a station from a seed entity and returns it.
	CreateStation(ctx context.Context, name, seedKind, seedID string) (*RawStation, error)

	// StationTracks retrieves up to count tracks for a station. Station
	// track lists are generated server-side per request and are never cached.
	StationTracks(ctx context.Context, stationID string, count int) ([]RawTrack, error)

	// StreamURL resolves a short-lived streaming URL for a track.
	StreamURL(ctx context.Context, trackID, deviceID, quality string) (string, error)

	// RegisteredDevices lists the devices registered to the account.
	RegisteredDevices(ctx context.Context) ([]RawDevice, error)
}
