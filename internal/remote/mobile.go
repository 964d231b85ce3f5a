// HTTP implementation of [Client] against the service's mobile API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"skytune/internal/shared"
)

const (
	defaultBaseURL = "https://mobileclient.googleapis.com/music/v2.5"
	defaultAuthURL = "https://android.clients.google.com/auth/oauth2"

	// Page size for feed endpoints.
	feedPageSize = 250
)

// MobileClient implements [Client] over the service's mobile HTTP API.
//
// Authentication exchanges the account password for an OAuth2 token; all
// subsequent calls go through an [oauth2] transport that refreshes the token
// as needed. Calls are rate limited and bounded by the configured timeout.
type MobileClient struct {
	conf       *oauth2.Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	token    *oauth2.Token
	deviceID string
}

// NewMobileClient creates a MobileClient from the application configuration.
// A nil logger defaults to a stderr logger.
func NewMobileClient(config *shared.Config, logger *log.Logger) *MobileClient {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if config == nil {
		config = shared.DefaultConfig()
	}

	baseURL := config.Remote.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	authURL := config.Remote.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}

	limit := rate.Limit(config.Remote.RateLimit)
	if config.Remote.RateLimit <= 0 {
		limit = rate.Inf
	}

	client := &http.Client{Timeout: config.RemoteTimeout()}

	return &MobileClient{
		conf: &oauth2.Config{
			Endpoint: oauth2.Endpoint{TokenURL: authURL},
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(logger, "component", "remote"),
	}
}

// Login performs the password grant and installs the authenticated transport.
func (c *MobileClient) Login(ctx context.Context, username, password, deviceID string) error {
	if username == "" || password == "" {
		return shared.ErrMissingCredentials
	}

	timeout := c.httpClient.Timeout
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, retrieveErr)
		}
		return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}

	c.httpClient = c.conf.Client(ctx, token)
	c.httpClient.Timeout = timeout
	c.token = token

	if deviceID == AutoDeviceID || deviceID == "" {
		deviceID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	c.deviceID = deviceID

	c.logger.Info("session established", "username", username)
	return nil
}

// IsAuthenticated reports whether the session holds a usable token.
func (c *MobileClient) IsAuthenticated() bool {
	return c.token != nil && c.token.Valid()
}

// Logout drops the session token.
func (c *MobileClient) Logout() error {
	c.token = nil
	c.deviceID = ""
	return nil
}

// doRequest performs a rate-limited, authenticated request and decodes the
// JSON response into result when non-nil.
func (c *MobileClient) doRequest(ctx context.Context, method, path string, query url.Values, body, result any) error {
	if c.token == nil {
		return shared.ErrNotAuthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader *strings.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = strings.NewReader(string(payload))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrRemoteUnavailable, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// feed is the envelope shape of paged endpoints.
type feed[T any] struct {
	Data struct {
		Items []T `json:"items"`
	} `json:"data"`
	NextPageToken string `json:"nextPageToken"`
}

// fetchFeed drains a paged feed endpoint.
func fetchFeed[T any](ctx context.Context, c *MobileClient, path string) ([]T, error) {
	var all []T
	pageToken := ""

	for {
		body := map[string]any{"max-results": feedPageSize}
		if pageToken != "" {
			body["start-token"] = pageToken
		}

		var page feed[T]
		if err := c.doRequest(ctx, http.MethodPost, path, nil, body, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Data.Items...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return all, nil
}

// AllTracks drains the library track feed.
func (c *MobileClient) AllTracks(ctx context.Context) ([]RawTrack, error) {
	return fetchFeed[RawTrack](ctx, c, "/trackfeed")
}

// TrackInfo retrieves a single store track by its permanent id.
func (c *MobileClient) TrackInfo(ctx context.Context, nid string) (*RawTrack, error) {
	var track RawTrack
	query := url.Values{"nid": {nid}}
	if err := c.doRequest(ctx, http.MethodGet, "/fetchtrack", query, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// ArtistInfo retrieves a single artist by catalog id.
func (c *MobileClient) ArtistInfo(ctx context.Context, id string) (*RawArtist, error) {
	var artist RawArtist
	query := url.Values{"nid": {id}, "include-albums": {"false"}}
	if err := c.doRequest(ctx, http.MethodGet, "/fetchartist", query, nil, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// AlbumInfo retrieves a single album by catalog id.
func (c *MobileClient) AlbumInfo(ctx context.Context, id string) (*RawAlbum, error) {
	var album RawAlbum
	query := url.Values{"nid": {id}, "include-tracks": {"false"}}
	if err := c.doRequest(ctx, http.MethodGet, "/fetchalbum", query, nil, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// Genres retrieves genres under a parent, or the roots for an empty parent.
func (c *MobileClient) Genres(ctx context.Context, parentID string) ([]RawGenre, error) {
	query := url.Values{}
	if parentID != "" {
		query.Set("parent-genre-id", parentID)
	}

	var resp struct {
		Genres []RawGenre `json:"genres"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/explore/genres", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

// AllPlaylists drains the playlist feed, dropping deleted entries.
func (c *MobileClient) AllPlaylists(ctx context.Context) ([]RawPlaylist, error) {
	items, err := fetchFeed[RawPlaylist](ctx, c, "/playlistfeed")
	if err != nil {
		return nil, err
	}

	playlists := make([]RawPlaylist, 0, len(items))
	for _, pl := range items {
		if !pl.Deleted {
			playlists = append(playlists, pl)
		}
	}
	return playlists, nil
}

// PlaylistEntries retrieves the ordered entries of one playlist.
func (c *MobileClient) PlaylistEntries(ctx context.Context, playlistID string) ([]RawPlaylistEntry, error) {
	var resp struct {
		Entries []RawPlaylistEntry `json:"entries"`
	}
	query := url.Values{"plid": {playlistID}}
	if err := c.doRequest(ctx, http.MethodGet, "/plentryfeed", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// SharedPlaylistEntries retrieves the entries of a shared playlist.
func (c *MobileClient) SharedPlaylistEntries(ctx context.Context, shareToken string) ([]RawPlaylistEntry, error) {
	body := map[string]any{"shareToken": shareToken, "max-results": feedPageSize}

	var resp struct {
		Entries []RawPlaylistEntry `json:"entries"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/plentries/shared", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// AllStations drains the radio station feed.
func (c *MobileClient) AllStations(ctx context.Context) ([]RawStation, error) {
	return fetchFeed[RawStation](ctx, c, "/radio/station")
}

// CreateStation creates a station seeded from a track, album, artist or genre.
func (c *MobileClient) CreateStation(ctx context.Context, name, seedKind, seedID string) (*RawStation, error) {
	seed := StationSeed{Kind: seedKind}
	switch seedKind {
	case "track":
		seed.TrackID = seedID
	case "album":
		seed.AlbumID = seedID
	case "artist":
		seed.ArtistID = seedID
	case "genre":
		seed.GenreID = seedID
	default:
		return nil, fmt.Errorf("%w: unknown seed kind %q", shared.ErrInvalidInput, seedKind)
	}

	body := map[string]any{
		"name":     name,
		"seed":     seed,
		"clientId": shared.GenerateID(),
	}

	var station RawStation
	if err := c.doRequest(ctx, http.MethodPost, "/radio/createstation", nil, body, &station); err != nil {
		return nil, err
	}
	return &station, nil
}

// StationTracks retrieves a fresh batch of tracks for a station.
func (c *MobileClient) StationTracks(ctx context.Context, stationID string, count int) ([]RawTrack, error) {
	if count <= 0 {
		count = 25
	}

	body := map[string]any{
		"id":         stationID,
		"numEntries": count,
	}

	var resp struct {
		Tracks []RawTrack `json:"tracks"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/radio/stationfeed", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// StreamURL resolves a signed streaming URL. The endpoint answers with a
// redirect to the media server; the Location header is the result.
func (c *MobileClient) StreamURL(ctx context.Context, trackID, deviceID, quality string) (string, error) {
	if c.token == nil {
		return "", shared.ErrNotAuthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}

	query := url.Values{
		"songid":  {trackID},
		"quality": {quality},
		"pt":      {"e"},
	}
	fullURL := c.baseURL + "/mplay?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Device-ID", deviceID)

	// The signed URL arrives as a redirect that must not be followed.
	client := *c.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("%w: empty stream location", shared.ErrRemoteUnavailable)
		}
		return location, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: status %d", shared.ErrRemoteUnavailable, resp.StatusCode)
	}
}

// RegisteredDevices lists the account's registered devices.
func (c *MobileClient) RegisteredDevices(ctx context.Context) ([]RawDevice, error) {
	var resp feed[RawDevice]
	if err := c.doRequest(ctx, http.MethodGet, "/devicemanagementinfo", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Items, nil
}

var _ Client = (*MobileClient)(nil)
