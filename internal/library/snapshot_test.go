package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"skytune/internal/remote"
	"skytune/internal/shared"
)

func TestSnapshotRoundTrip(t *testing.T) {
	fc := catalogFixture()
	fc.Tracks = []remote.RawTrack{
		storeTrack("l1", "c1", "A", "X", "Art1", "alb1", 1),
		uploadedTrack("l2", "B", "Z", "Art2", 1),
	}
	fc.Playlists = []remote.RawPlaylist{{ID: "pl-1", Name: "Mix"}}
	fc.Entries = map[string][]remote.RawPlaylistEntry{
		"pl-1": {{ID: "e1", TrackID: "l1"}},
	}

	lib := newTestLibrary(fc)
	if err := lib.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	blob, err := lib.Snapshot()
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	restored := newTestLibrary(fc)
	if err := restored.Restore(blob); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}

	reblob, err := restored.Snapshot()
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	if !bytes.Equal(blob, reblob) {
		t.Error("expected a restored library to serialize to the same bytes")
	}

	if len(restored.Tracks()) != 2 {
		t.Errorf("expected 2 tracks after restore, got %d", len(restored.Tracks()))
	}
	tracks, err := restored.TracksInAlbum("alb1")
	if err != nil || len(tracks) != 1 {
		t.Errorf("expected album membership to be rebuilt, got %d (%v)", len(tracks), err)
	}
	playlist, err := restored.PlaylistByID("pl-1")
	if err != nil || len(playlist.TrackIDs) != 1 {
		t.Errorf("expected playlist to survive the round trip, got %v (%v)", playlist, err)
	}
}

func TestSnapshotKeepsDeviceID(t *testing.T) {
	fc := catalogFixture()
	fc.Tracks = []remote.RawTrack{
		storeTrack("l1", "c1", "A", "X", "Art1", "alb1", 1),
	}
	fc.Devices = []remote.RawDevice{
		{ID: "0xabcdef", Type: remote.DeviceAndroid},
	}
	fc.StreamURLs = map[string]string{"l1": "https://media/l1"}

	lib := newTestLibrary(fc)
	if err := lib.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if _, err := lib.ResolveStreamURL(context.Background(), "c1", "hi"); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	blob, err := lib.Snapshot()
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	// A warm-started library reuses the discovered device without asking the
	// remote again.
	fc.Devices = nil
	restored := newTestLibrary(fc)
	if err := restored.Restore(blob); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	if got := restored.graph.Load().deviceID; got != "abcdef" {
		t.Errorf("expected the device id to survive the snapshot, got %q", got)
	}
	if _, err := restored.ResolveStreamURL(context.Background(), "c1", "hi"); err != nil {
		t.Errorf("expected streaming to work without device discovery: %v", err)
	}
}

func TestSnapshotSchemaMismatch(t *testing.T) {
	blob, err := json.Marshal(map[string]any{"schema": SnapshotSchema + 1})
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}

	lib := newTestLibrary(catalogFixture())
	err = lib.Restore(blob)
	if !errors.Is(err, shared.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}

	// The mismatched blob is discarded wholesale; the library starts empty.
	if len(lib.Tracks()) != 0 || len(lib.Albums()) != 0 {
		t.Error("expected an empty graph after a schema mismatch")
	}
	if _, err := lib.ArtistByID(shared.VariousArtistsID); err != nil {
		t.Errorf("Various Artists must be seeded even on an empty graph: %v", err)
	}
}

func TestSnapshotDropsDanglingReferences(t *testing.T) {
	file := snapshotFile{
		Schema: SnapshotSchema,
		Artists: []snapshotArtist{
			{ID: "art1", Kind: Real, Name: "Art1"},
		},
		Albums: []snapshotAlbum{
			{ID: "alb1", Kind: Real, Name: "X", ArtistID: "art1"},
			{ID: "alb2", Kind: Real, Name: "Orphan", ArtistID: "missing-artist"},
		},
		Tracks: []snapshotTrack{
			{ID: "c1", LID: "l1", Kind: Real, Title: "A", AlbumID: "alb1"},
			{ID: "c2", LID: "l2", Kind: Real, Title: "B", AlbumID: "missing-album"},
		},
	}
	blob, err := json.Marshal(file)
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}

	lib := newTestLibrary(catalogFixture())
	if err := lib.Restore(blob); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}

	if len(lib.Tracks()) != 1 {
		t.Errorf("expected the track with a dangling album to be dropped, got %d tracks", len(lib.Tracks()))
	}
	if _, err := lib.AlbumByID("alb2"); !errors.Is(err, shared.ErrNotFound) {
		t.Error("expected the album with a dangling artist to be dropped")
	}
	if _, err := lib.AlbumByID("alb1"); err != nil {
		t.Errorf("expected the intact album to survive: %v", err)
	}
}
