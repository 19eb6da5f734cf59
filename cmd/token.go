package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/searchtoken"
)

// TokenCommand creates the token command
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Encode and decode shareable search tokens",
		Commands: []*cli.Command{
			{
				Name:  "encode",
				Usage: "Print the token of a search built from filters",
				Flags: criteriaFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					criteria, err := criteriaFromFlags(c)
					if err != nil {
						return err
					}
					fmt.Println(searchtoken.Encode(criteria))
					return nil
				},
			},
			{
				Name:      "decode",
				Usage:     "Show the search a token describes",
				ArgsUsage: "TOKEN",
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := requireArgs(c, 1, "TOKEN"); err != nil {
						return err
					}
					return decodeToken(c.Args().First())
				},
			},
		},
	}
}

func decodeToken(token string) error {
	d := searchtoken.Decode(token)
	if d.Recovered {
		fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("Token could not be read (%v); it decodes to the default search.", d.Err)))
	}

	fmt.Println(headerStyle.Render(describeCriteria(d.Criteria)))
	fmt.Printf("Version: %d\n", d.Version)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(d.Criteria)
}
