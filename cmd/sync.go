package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Run one full refresh cycle against the remote catalog",
		Action: r.Sync,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Keep the library synchronized on the configured interval until interrupted",
		Action: r.Serve,
	}
}

// Sync runs a single refresh cycle and reports the resulting library size.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	if err := lib.Refresh(ctx); err != nil {
		return err
	}

	return r.writePlain("synced: %d artists, %d albums, %d tracks, %d playlists, %d stations\n",
		len(lib.Artists()), len(lib.Albums()), len(lib.Tracks()), len(lib.Playlists()), len(lib.Stations()))
}

// Serve runs the periodic refresh scheduler until the process is signalled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.library(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.manager.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	r.logger.Info("scheduler stopped")
	return nil
}
