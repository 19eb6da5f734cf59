package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/profile"
)

// ProfileCommand creates the profile command
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or edit your profile",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show your profile",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, func(a *app) error {
						p, err := profile.NewBio(a.api).Get(ctx)
						if err != nil {
							return fmt.Errorf("getting profile: %w", err)
						}
						fmt.Println(titleStyle.Render(p.DisplayName))
						fmt.Println(metaStyle.Render(p.Email))
						if p.Bio != "" {
							fmt.Println(p.Bio)
						}
						return nil
					})
				},
			},
			{
				Name:      "bio",
				Usage:     "Replace your bio",
				ArgsUsage: "TEXT",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() == 0 {
						return fmt.Errorf("usage: %s TEXT", c.Name)
					}
					return withApp(c, func(a *app) error {
						if _, err := profile.NewBio(a.api).Update(ctx, strings.Join(c.Args().Slice(), " ")); err != nil {
							return fmt.Errorf("updating bio: %w", err)
						}
						fmt.Println("Bio updated")
						return nil
					})
				},
			},
		},
	}
}
