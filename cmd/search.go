package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/loader"
)

var errNoRecentSearch = errors.New("no recent search, run `agistme search` first")

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Result order: default, price_asc or price_desc",
			Value: string(listing.SortDefault),
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the results as JSON",
		},
		&cli.BoolFlag{
			Name:  "no-pager",
			Usage: "Disable pager and output directly to terminal",
		},
	}
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	flags := append(criteriaFlags(),
		&cli.StringFlag{
			Name:  "token",
			Usage: "Open a shared search token instead of building one from filters",
		},
		&cli.IntFlag{
			Name:  "pages",
			Usage: "Number of result pages to load",
			Value: 1,
		},
	)
	return &cli.Command{
		Name:  "search",
		Usage: "Search agistment listings",
		Flags: append(flags, outputFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			mode, err := listing.ParseSortMode(c.String("sort"))
			if err != nil {
				return err
			}
			token, err := tokenFromFlags(c)
			if err != nil {
				return err
			}
			return withApp(c, func(a *app) error {
				return runSearch(ctx, a.newLoader(), token, mode, c.Int("pages"), c.Bool("json"), c.Bool("no-pager"))
			})
		},
	}
}

func runSearch(ctx context.Context, l *loader.Loader, token string, mode listing.SortMode, pages int, asJSON, noPager bool) error {
	l.SetSortMode(mode)
	view, err := l.Open(ctx, token)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	for i := 1; i < pages && !view.Exhausted; i++ {
		if _, err := l.More(ctx); err != nil {
			return fmt.Errorf("loading page %d: %w", i+1, err)
		}
		view = l.View()
	}
	return printView(view, "Agistment search", asJSON, noPager)
}

// MoreCommand creates the more command
func MoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "more",
		Usage: "Load the next page of the most recent search",
		Flags: outputFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			mode, err := listing.ParseSortMode(c.String("sort"))
			if err != nil {
				return err
			}
			return withApp(c, func(a *app) error {
				return loadMore(ctx, a.newLoader(), mode, c.Bool("json"), c.Bool("no-pager"))
			})
		},
	}
}

func loadMore(ctx context.Context, l *loader.Loader, mode listing.SortMode, asJSON, noPager bool) error {
	if _, ok := l.Resume(); !ok {
		return errNoRecentSearch
	}
	l.SetSortMode(mode)

	appended, err := l.More(ctx)
	if err != nil {
		return fmt.Errorf("loading more results: %w", err)
	}
	view := l.View()
	if !appended && !asJSON {
		fmt.Println(noDataStyle.Render("No more results for this search."))
		return nil
	}
	return printView(view, "Agistment search", asJSON, noPager)
}

func printView(v loader.View, title string, asJSON, noPager bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return printOutput(formatResults(v, title), noPager)
}

// ShowCommand creates the show command
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one listing",
		ArgsUsage: "LISTING_ID",
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := requireArgs(c, 1, "LISTING_ID"); err != nil {
				return err
			}
			return withApp(c, func(a *app) error {
				l, err := a.api.GetListing(ctx, c.Args().First())
				if err != nil {
					return fmt.Errorf("getting listing: %w", err)
				}
				fmt.Print(renderListing(l, nil))
				fmt.Println()
				return nil
			})
		},
	}
}
