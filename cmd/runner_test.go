package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"skytune/internal/library"
	"skytune/internal/remote"
	"skytune/internal/shared"
	tu "skytune/internal/testing"
)

func testRunner(fc *tu.FakeClient) (*Runner, *bytes.Buffer) {
	config := shared.DefaultConfig()
	config.Credentials.Username = "user@example.com"
	config.Credentials.Password = "secret"

	logger := shared.NewLogger(io.Discard)
	manager := library.NewManager(config, nil, func() remote.Client { return fc }, logger)

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Manager: manager,
		Logger:  logger,
		Output:  output,
	})
	return runner, output
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			manager := library.NewManager(config, nil, func() remote.Client { return &tu.FakeClient{} }, logger)

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Manager: manager,
				Logger:  logger,
				Output:  output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.manager != manager {
				t.Error("expected manager to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})
	})

	t.Run("FailingOutput", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Logger: shared.NewLogger(io.Discard),
			Output: &tu.FWriter{},
		})

		if err := runner.writePlain("hello\n"); err == nil {
			t.Error("expected writePlain to surface the write error")
		}
		if err := runner.writeJSON(map[string]string{"k": "v"}, false); err == nil {
			t.Error("expected writeJSON to surface the write error")
		}
	})

	t.Run("Sync", func(t *testing.T) {
		fc := &tu.FakeClient{
			Tracks: []remote.RawTrack{
				{ID: "l1", Title: "A", Album: "X", Artist: "Art1", AlbumArtist: "Art1", TrackNumber: 1},
			},
		}
		runner, output := testRunner(fc)

		if commands := runner.register(); len(commands) != 5 {
			t.Fatalf("expected 5 top-level commands, got %d", len(commands))
		}

		if err := runner.Sync(context.Background(), nil); err != nil {
			t.Fatalf("unexpected sync error: %v", err)
		}
		if !strings.Contains(output.String(), "1 tracks") {
			t.Errorf("expected sync summary in output, got %q", output.String())
		}
	})
}
