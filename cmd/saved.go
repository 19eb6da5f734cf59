package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
)

// SavedCommand creates the saved command
func SavedCommand() *cli.Command {
	return &cli.Command{
		Name:  "saved",
		Usage: "Manage saved searches",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved searches",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, func(a *app) error {
						return listSavedSearches(ctx, a)
					})
				},
			},
			{
				Name:      "save",
				Usage:     "Save a search built from filters or a token",
				ArgsUsage: "NAME",
				Flags: append(criteriaFlags(),
					&cli.StringFlag{Name: "token", Usage: "Save this search token instead of building one from filters"},
					&cli.BoolFlag{Name: "notify", Usage: "Notify when new listings match"},
				),
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := requireArgs(c, 1, "NAME"); err != nil {
						return err
					}
					token, err := tokenFromFlags(c)
					if err != nil {
						return err
					}
					return withApp(c, func(a *app) error {
						d := searchtoken.Decode(token)
						if d.Recovered {
							return fmt.Errorf("token is not a valid search: %w", d.Err)
						}
						ss, err := a.savedSearches().Save(ctx, c.Args().First(), d.Criteria, c.Bool("notify"))
						if err != nil {
							return fmt.Errorf("saving search: %w", err)
						}
						fmt.Printf("Saved %q (%s)\n", ss.Name, ss.ID)
						return nil
					})
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a saved search",
				ArgsUsage: "ID NAME",
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := requireArgs(c, 2, "ID NAME"); err != nil {
						return err
					}
					return withApp(c, func(a *app) error {
						return a.savedSearches().Rename(ctx, c.Args().Get(0), c.Args().Get(1))
					})
				},
			},
			{
				Name:      "notify",
				Usage:     "Turn notifications for a saved search on or off",
				ArgsUsage: "ID on|off",
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := requireArgs(c, 2, "ID on|off"); err != nil {
						return err
					}
					enabled, err := parseOnOff(c.Args().Get(1))
					if err != nil {
						return err
					}
					return withApp(c, func(a *app) error {
						return a.savedSearches().SetNotifications(ctx, c.Args().Get(0), enabled)
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved search",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := requireArgs(c, 1, "ID"); err != nil {
						return err
					}
					return withApp(c, func(a *app) error {
						return a.savedSearches().Delete(ctx, c.Args().First())
					})
				},
			},
			{
				Name:      "run",
				Usage:     "Run a saved search",
				ArgsUsage: "ID",
				Flags:     outputFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := requireArgs(c, 1, "ID"); err != nil {
						return err
					}
					mode, err := listing.ParseSortMode(c.String("sort"))
					if err != nil {
						return err
					}
					return withApp(c, func(a *app) error {
						ss, _, err := a.savedSearches().Get(ctx, c.Args().First())
						if err != nil {
							return err
						}
						return runSearch(ctx, a.newLoader(), ss.SearchHash, mode, 1, c.Bool("json"), c.Bool("no-pager"))
					})
				},
			},
		},
	}
}

func listSavedSearches(ctx context.Context, a *app) error {
	saved, err := a.savedSearches().List(ctx)
	if err != nil {
		return fmt.Errorf("listing saved searches: %w", err)
	}
	if len(saved) == 0 {
		fmt.Println(noDataStyle.Render("No saved searches."))
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Saved searches (%d)", len(saved))))
	for _, ss := range saved {
		d := searchtoken.Decode(ss.SearchHash)
		notify := ""
		if ss.EnableNotifications {
			notify = " 🔔"
		}
		fmt.Printf("%s%s\n", headerStyle.Render(ss.Name), notify)
		if d.Recovered {
			fmt.Printf("   %s\n", warnStyle.Render("unreadable search, runs as the default search"))
		} else {
			fmt.Printf("   %s\n", describeCriteria(d.Criteria))
		}
		fmt.Printf("   %s\n", metaStyle.Render(fmt.Sprintf("id %s · updated %s", ss.ID, formatTime(ss.LastUpdate))))
	}
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
