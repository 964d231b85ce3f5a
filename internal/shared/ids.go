package shared

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Synthetic identifier prefixes. Entities the remote catalog does not key get
// a local id built from a content hash, tagged so the namespaces never collide
// with real catalog ids.
const (
	FakeArtistPrefix = "FA"
	FakeAlbumPrefix  = "FB"
	FakeGenrePrefix  = "FG"
	FakeTrackPrefix  = "FT"
)

// VariousArtistsName is the display name of the compilation sentinel artist.
const VariousArtistsName = "Various Artists"

// VariousArtistsID is the pre-seeded sentinel artist id. It is never
// garbage-collected.
var VariousArtistsID = FakeArtistID(VariousArtistsName)

// Hash returns the base64url encoding (unpadded) of the SHA-256 digest of data.
//
// The result is deterministic and safe to embed in URLs and filenames.
func Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// FakeArtistID derives a synthetic artist id from the artist name.
func FakeArtistID(name string) string {
	return FakeArtistPrefix + Hash(name)
}

// idSep joins discriminator fields before hashing so field boundaries never
// blur into each other.
const idSep = "\x00"

// FakeAlbumID derives a synthetic album id from the owning artist and album
// names. Both fields are freely available in track metadata, so the same album
// referenced from different tracks resolves to the same id.
func FakeAlbumID(artist, album string) string {
	return FakeAlbumPrefix + Hash(artist+idSep+album)
}

// FakeGenreID derives a synthetic genre id from the genre name.
func FakeGenreID(name string) string {
	return FakeGenrePrefix + Hash(name)
}

// FakeTrackID derives a synthetic track id for tracks the catalog never
// assigned a permanent id.
func FakeTrackID(title, album, albumArtist string) string {
	return FakeTrackPrefix + Hash(title+idSep+album+idSep+albumArtist)
}

// IsSynthetic reports whether id was fabricated locally rather than assigned
// by the remote catalog.
func IsSynthetic(id string) bool {
	for _, p := range []string{FakeArtistPrefix, FakeAlbumPrefix, FakeGenrePrefix, FakeTrackPrefix} {
		if strings.HasPrefix(id, p) && len(id) > len(p) {
			return true
		}
	}
	return false
}
