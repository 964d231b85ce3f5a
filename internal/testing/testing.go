// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"

	"skytune/internal/remote"
	"skytune/internal/shared"
)

// FakeClient is a configurable test double for [remote.Client]. The zero
// value behaves as an authenticated account with an empty library.
type FakeClient struct {
	Tracks         []remote.RawTrack
	Albums         map[string]*remote.RawAlbum
	Artists        map[string]*remote.RawArtist
	TrackInfoByID  map[string]*remote.RawTrack
	GenresByParent map[string][]remote.RawGenre
	Playlists      []remote.RawPlaylist
	Entries        map[string][]remote.RawPlaylistEntry
	SharedEntries  map[string][]remote.RawPlaylistEntry
	Stations       []remote.RawStation
	StationFeeds   map[string][]remote.RawTrack
	Devices        []remote.RawDevice
	StreamURLs     map[string]string

	// LoginErr, when set, is returned by Login; TracksErr fails AllTracks.
	// EntriesErr fails PlaylistEntries for the playlist ids it names.
	LoginErr   error
	TracksErr  error
	EntriesErr map[string]error

	LoggedOut      bool
	LoginCalls     int
	TrackInfoCalls int
	ArtistCalls    int
	AlbumCalls     int
}

func (f *FakeClient) Login(ctx context.Context, username, password, deviceID string) error {
	f.LoginCalls++
	if f.LoginErr != nil {
		return f.LoginErr
	}
	f.LoggedOut = false
	return nil
}

func (f *FakeClient) IsAuthenticated() bool { return !f.LoggedOut }

func (f *FakeClient) Logout() error {
	f.LoggedOut = true
	return nil
}

func (f *FakeClient) AllTracks(ctx context.Context) ([]remote.RawTrack, error) {
	if f.TracksErr != nil {
		return nil, f.TracksErr
	}
	return f.Tracks, nil
}

func (f *FakeClient) TrackInfo(ctx context.Context, nid string) (*remote.RawTrack, error) {
	f.TrackInfoCalls++
	if track, ok := f.TrackInfoByID[nid]; ok {
		return track, nil
	}
	return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, nid)
}

func (f *FakeClient) ArtistInfo(ctx context.Context, id string) (*remote.RawArtist, error) {
	f.ArtistCalls++
	if artist, ok := f.Artists[id]; ok {
		return artist, nil
	}
	return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, id)
}

func (f *FakeClient) AlbumInfo(ctx context.Context, id string) (*remote.RawAlbum, error) {
	f.AlbumCalls++
	if album, ok := f.Albums[id]; ok {
		return album, nil
	}
	return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, id)
}

func (f *FakeClient) Genres(ctx context.Context, parentID string) ([]remote.RawGenre, error) {
	return f.GenresByParent[parentID], nil
}

func (f *FakeClient) AllPlaylists(ctx context.Context) ([]remote.RawPlaylist, error) {
	return f.Playlists, nil
}

func (f *FakeClient) PlaylistEntries(ctx context.Context, playlistID string) ([]remote.RawPlaylistEntry, error) {
	if err, ok := f.EntriesErr[playlistID]; ok {
		return nil, err
	}
	return f.Entries[playlistID], nil
}

func (f *FakeClient) SharedPlaylistEntries(ctx context.Context, shareToken string) ([]remote.RawPlaylistEntry, error) {
	return f.SharedEntries[shareToken], nil
}

func (f *FakeClient) AllStations(ctx context.Context) ([]remote.RawStation, error) {
	return f.Stations, nil
}

func (f *FakeClient) CreateStation(ctx context.Context, name, seedKind, seedID string) (*remote.RawStation, error) {
	station := remote.RawStation{
		ID:        "fake-station-" + seedID,
		Name:      name,
		InLibrary: true,
		Seed:      remote.StationSeed{Kind: seedKind},
	}
	f.Stations = append(f.Stations, station)
	return &station, nil
}

func (f *FakeClient) StationTracks(ctx context.Context, stationID string, count int) ([]remote.RawTrack, error) {
	return f.StationFeeds[stationID], nil
}

func (f *FakeClient) StreamURL(ctx context.Context, trackID, deviceID, quality string) (string, error) {
	if url, ok := f.StreamURLs[trackID]; ok {
		return url, nil
	}
	return "", fmt.Errorf("%w: no stream for %s", shared.ErrNotFound, trackID)
}

func (f *FakeClient) RegisteredDevices(ctx context.Context) ([]remote.RawDevice, error) {
	return f.Devices, nil
}

var _ remote.Client = (*FakeClient)(nil)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MemoryStore is an in-memory snapshot store for manager tests.
type MemoryStore struct {
	Blobs     map[string][]byte
	SaveCalls int
	LoadErr   error
	SaveErr   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Blobs: map[string][]byte{}}
}

func (s *MemoryStore) Load(account string) ([]byte, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	blob, ok := s.Blobs[account]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot for %s", shared.ErrNotFound, account)
	}
	return blob, nil
}

func (s *MemoryStore) Save(account string, blob []byte) error {
	s.SaveCalls++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Blobs[account] = append([]byte(nil), blob...)
	return nil
}

var _ io.Writer = (*FWriter)(nil)
