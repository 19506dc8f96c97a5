// Command tourcli plays, replays and checks driving tours from a terminal.
//
//	tourcli play --tour classic --player ana
//	tourcli autopilot --tour quick
//	tourcli validate configs/*.json
//
// play and autopilot run the tour service in process against the tours in
// --config-dir; nothing is persisted unless --leaderboard is set.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/driving-tour/game/config"
	"github.com/wricardo/driving-tour/game/leaderboard"
	"github.com/wricardo/driving-tour/game/minigame"
	"github.com/wricardo/driving-tour/game/service"
	"github.com/wricardo/driving-tour/game/session"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "tourcli",
		Usage: "drive tours from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing tour configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:  "leaderboard",
				Usage: "leaderboard file to record finished laps in",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log service activity to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "play",
				Usage: "drive a tour interactively",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tour", Usage: "tour to drive (default tour when empty)"},
					&cli.StringFlag{Name: "player", Usage: "name recorded with the lap"},
					&cli.IntFlag{Name: "frames", Value: 60, Usage: "frames per drive step"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					tours, err := newTourService(cmd, minigame.Options{})
					if err != nil {
						return err
					}
					p := &Player{
						Tours:  tours,
						Prompt: surveyPrompter{},
						Out:    cmd.Root().Writer,
						Frames: int(cmd.Int("frames")),
					}
					return p.Play(ctx, cmd.String("tour"), cmd.String("player"))
				},
			},
			{
				Name:  "autopilot",
				Usage: "drive a tour and solve every stop automatically",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tour", Usage: "tour to drive (default tour when empty)"},
					&cli.StringFlag{Name: "player", Value: "autopilot", Usage: "name recorded with the lap"},
					&cli.IntFlag{Name: "frames", Value: 120, Usage: "frames per drive call"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					// Rounds keep authoring order so the solver knows where every card and piece is.
					tours, err := newTourService(cmd, minigame.Options{Order: minigame.Identity})
					if err != nil {
						return err
					}
					a := &Autopilot{
						Tours:  tours,
						Out:    cmd.Root().Writer,
						Frames: int(cmd.Int("frames")),
					}
					summary, err := a.Run(ctx, cmd.String("tour"), cmd.String("player"))
					if err != nil {
						return err
					}
					fmt.Fprintln(a.Out, summary)
					return nil
				},
			},
			{
				Name:      "validate",
				Usage:     "check tour configuration files",
				ArgsUsage: "[files...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files := cmd.Args().Slice()
					if len(files) == 0 {
						var err error
						if files, err = tourFiles(cmd.String("config-dir")); err != nil {
							return err
						}
					}
					results := ValidateFiles(files)
					PrintResults(cmd.Root().Writer, results)
					if invalid := countInvalid(results); invalid > 0 {
						return cli.Exit(fmt.Sprintf("%d of %d tours are invalid", invalid, len(results)), 1)
					}
					return nil
				},
			},
		},
	}
}

// newTourService builds an in-memory tour service over --config-dir.
func newTourService(cmd *cli.Command, opts minigame.Options) (service.TourService, error) {
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: level}))

	configs, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return nil, err
	}

	var board service.Leaderboard
	if path := cmd.String("leaderboard"); path != "" {
		lb, err := leaderboard.New(path)
		if err != nil {
			return nil, err
		}
		board = lb
	}

	return service.NewTourService(log, session.NewManager(log), configs, board, service.WithGameOptions(opts)), nil
}
