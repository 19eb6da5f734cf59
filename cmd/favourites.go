package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/profile"
)

// FavouritesCommand creates the favourites command
func FavouritesCommand() *cli.Command {
	idAction := func(fn func(ctx context.Context, f *profile.Favourites, id string) error) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			if err := requireArgs(c, 1, "LISTING_ID"); err != nil {
				return err
			}
			return withApp(c, func(a *app) error {
				return fn(ctx, profile.NewFavourites(a.api), c.Args().First())
			})
		}
	}

	return &cli.Command{
		Name:  "favourites",
		Usage: "Manage favourite listings",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List favourite listing ids",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, func(a *app) error {
						ids, err := profile.NewFavourites(a.api).List(ctx)
						if err != nil {
							return fmt.Errorf("listing favourites: %w", err)
						}
						if len(ids) == 0 {
							fmt.Println(noDataStyle.Render("No favourites."))
						}
						for _, id := range ids {
							fmt.Println(id)
						}
						return nil
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Add a listing to favourites",
				ArgsUsage: "LISTING_ID",
				Action: idAction(func(ctx context.Context, f *profile.Favourites, id string) error {
					return f.Add(ctx, id)
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove a listing from favourites",
				ArgsUsage: "LISTING_ID",
				Action: idAction(func(ctx context.Context, f *profile.Favourites, id string) error {
					return f.Remove(ctx, id)
				}),
			},
			{
				Name:      "toggle",
				Usage:     "Add or remove a listing",
				ArgsUsage: "LISTING_ID",
				Action: idAction(func(ctx context.Context, f *profile.Favourites, id string) error {
					added, err := f.Toggle(ctx, id)
					if err != nil {
						return err
					}
					if added {
						fmt.Printf("Added %s to favourites\n", id)
					} else {
						fmt.Printf("Removed %s from favourites\n", id)
					}
					return nil
				}),
			},
		},
	}
}
