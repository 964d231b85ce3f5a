package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"skytune/internal/shared"
)

func urlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "url",
		Usage: "Resolve a streaming URL for a track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "Stream quality (hi, med, low)",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "track"},
		},
		Action: r.StreamURL,
	}
}

// StreamURL resolves and prints a short-lived streaming URL.
func (r *Runner) StreamURL(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("track")
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	lib, err := r.library()
	if err != nil {
		return err
	}

	url, err := lib.ResolveStreamURL(ctx, trackID, cmd.String("quality"))
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", url)
}
