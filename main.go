package main

import (
	"context"
	stdlog "log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/cmd"
	"github.com/kurtheiz/agistme/pkg/config"
	"github.com/kurtheiz/agistme/pkg/log"
)

func main() {
	app := &cli.Command{
		Name:  "agistme",
		Usage: "Search horse agistment from the terminal",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "debug-services",
				Usage: "Comma separated services to debug (e.g. loader,client)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			log.EnableDebugList(c.String("debug-services"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.SearchCommand(),
			cmd.MoreCommand(),
			cmd.ShowCommand(),
			cmd.TokenCommand(),
			cmd.SavedCommand(),
			cmd.FavouritesCommand(),
			cmd.ProfileCommand(),
			cmd.EnquireCommand(),
			cmd.CacheCommand(),
			cmd.WatchCommand(),
			cmd.ServeCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		stdlog.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		stdlog.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
