package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"skytune/internal/shared"
)

func testClient(t *testing.T, serverURL string) *MobileClient {
	t.Helper()

	config := shared.DefaultConfig()
	config.Remote.BaseURL = serverURL
	config.Remote.AuthURL = serverURL + "/auth"
	config.Remote.RateLimit = 0

	client := NewMobileClient(config, nil)
	client.token = &oauth2.Token{
		AccessToken: "test-token",
		Expiry:      time.Now().Add(time.Hour),
	}
	client.deviceID = "testdevice"
	return client
}

func TestLogin(t *testing.T) {
	t.Run("MissingCredentials", func(t *testing.T) {
		client := NewMobileClient(nil, nil)
		err := client.Login(context.Background(), "", "", AutoDeviceID)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("RejectedCredentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		defer server.Close()

		config := shared.DefaultConfig()
		config.Remote.AuthURL = server.URL
		client := NewMobileClient(config, nil)

		err := client.Login(context.Background(), "user@example.com", "wrong", AutoDeviceID)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if client.IsAuthenticated() {
			t.Error("expected client to remain unauthenticated after rejected login")
		}
	})

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "granted",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		}))
		defer server.Close()

		config := shared.DefaultConfig()
		config.Remote.AuthURL = server.URL
		client := NewMobileClient(config, nil)

		if err := client.Login(context.Background(), "user@example.com", "secret", AutoDeviceID); err != nil {
			t.Fatalf("unexpected login error: %v", err)
		}
		if !client.IsAuthenticated() {
			t.Error("expected client to be authenticated after login")
		}
		if client.deviceID == "" || client.deviceID == AutoDeviceID {
			t.Errorf("expected generated device id, got %q", client.deviceID)
		}
		if strings.Contains(client.deviceID, "-") {
			t.Errorf("expected device id without dashes, got %q", client.deviceID)
		}
	})

	t.Run("ExplicitDeviceID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "granted",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		}))
		defer server.Close()

		config := shared.DefaultConfig()
		config.Remote.AuthURL = server.URL
		client := NewMobileClient(config, nil)

		if err := client.Login(context.Background(), "user@example.com", "secret", "3d4e5f"); err != nil {
			t.Fatalf("unexpected login error: %v", err)
		}
		if client.deviceID != "3d4e5f" {
			t.Errorf("expected explicit device id to be kept, got %q", client.deviceID)
		}
	})
}

func TestLogout(t *testing.T) {
	client := testClient(t, "http://unused")
	if !client.IsAuthenticated() {
		t.Fatal("expected authenticated test client")
	}

	if err := client.Logout(); err != nil {
		t.Fatalf("unexpected logout error: %v", err)
	}
	if client.IsAuthenticated() {
		t.Error("expected client to be unauthenticated after logout")
	}
}

func TestDoRequest(t *testing.T) {
	t.Run("NotAuthenticated", func(t *testing.T) {
		client := NewMobileClient(nil, nil)
		err := client.doRequest(context.Background(), http.MethodGet, "/trackfeed", nil, nil, nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("AuthFailureStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		err := client.doRequest(context.Background(), http.MethodGet, "/trackfeed", nil, nil, nil)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("TransportFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := testClient(t, server.URL)
		err := client.doRequest(context.Background(), http.MethodGet, "/trackfeed", nil, nil, nil)
		if !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable, got %v", err)
		}
	})

	t.Run("ServerErrorStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		err := client.doRequest(context.Background(), http.MethodGet, "/trackfeed", nil, nil, nil)
		if !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable, got %v", err)
		}
	})
}

func TestAllTracksPagination(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		token, _ := body["start-token"].(string)
		tokens = append(tokens, token)

		w.Header().Set("Content-Type", "application/json")
		if token == "" {
			w.Write([]byte(`{"data":{"items":[{"nid":"T1","title":"First"}]},"nextPageToken":"page2"}`))
			return
		}
		w.Write([]byte(`{"data":{"items":[{"nid":"T2","title":"Second"}]}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	tracks, err := client.AllTracks(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks across pages, got %d", len(tracks))
	}
	if tracks[0].NID != "T1" || tracks[1].NID != "T2" {
		t.Errorf("unexpected track order: %q, %q", tracks[0].NID, tracks[1].NID)
	}
	if len(tokens) != 2 || tokens[1] != "page2" {
		t.Errorf("expected second request to carry page token, got %v", tokens)
	}
}

func TestAllPlaylistsSkipsDeleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"items":[
			{"id":"pl-1","name":"Keep","deleted":false},
			{"id":"pl-2","name":"Gone","deleted":true}
		]}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	playlists, err := client.AllPlaylists(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(playlists) != 1 {
		t.Fatalf("expected 1 playlist, got %d", len(playlists))
	}
	if playlists[0].ID != "pl-1" {
		t.Errorf("expected surviving playlist pl-1, got %q", playlists[0].ID)
	}
}

func TestStreamURL(t *testing.T) {
	t.Run("FollowsLocationHeader", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("songid"); got != "T100" {
				t.Errorf("expected songid T100, got %q", got)
			}
			if got := r.Header.Get("X-Device-ID"); got != "androidid" {
				t.Errorf("expected device header androidid, got %q", got)
			}
			w.Header().Set("Location", "https://media.example.com/signed/abc")
			w.WriteHeader(http.StatusFound)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		url, err := client.StreamURL(context.Background(), "T100", "androidid", "hi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if url != "https://media.example.com/signed/abc" {
			t.Errorf("unexpected stream url %q", url)
		}
	})

	t.Run("NotAuthenticated", func(t *testing.T) {
		client := NewMobileClient(nil, nil)
		_, err := client.StreamURL(context.Background(), "T100", "androidid", "hi")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("AuthRejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		_, err := client.StreamURL(context.Background(), "T100", "androidid", "hi")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}

func TestCreateStation(t *testing.T) {
	t.Run("UnknownSeedKind", func(t *testing.T) {
		client := testClient(t, "http://unused")
		_, err := client.CreateStation(context.Background(), "My Station", "podcast", "x")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("TrackSeed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request body: %v", err)
			}
			seed, ok := body["seed"].(map[string]any)
			if !ok || seed["trackId"] != "T5" {
				t.Errorf("expected seed with trackId T5, got %v", body["seed"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"st-1","name":"Some Song Radio","inLibrary":true}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		station, err := client.CreateStation(context.Background(), "Some Song Radio", "track", "T5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if station.ID != "st-1" || !station.InLibrary {
			t.Errorf("unexpected station %+v", station)
		}
	})
}
