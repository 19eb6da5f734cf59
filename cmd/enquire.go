package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/client"
)

// EnquireCommand creates the enquire command
func EnquireCommand() *cli.Command {
	return &cli.Command{
		Name:      "enquire",
		Usage:     "Send an enquiry to a listing's owner",
		ArgsUsage: "LISTING_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Your name", Required: true},
			&cli.StringFlag{Name: "email", Usage: "Your email address", Required: true},
			&cli.StringFlag{Name: "phone", Usage: "Your phone number"},
			&cli.IntFlag{Name: "horses", Usage: "Number of horses"},
			&cli.StringFlag{Name: "paddock", Usage: "Paddock type wanted"},
			&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "message", Usage: "Message to the owner", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := requireArgs(c, 1, "LISTING_ID"); err != nil {
				return err
			}
			e := client.Enquiry{
				ListingID:   c.Args().First(),
				Name:        c.String("name"),
				Email:       c.String("email"),
				Phone:       c.String("phone"),
				Horses:      c.Int("horses"),
				PaddockType: c.String("paddock"),
				StartDate:   c.String("start"),
				Message:     c.String("message"),
			}
			if err := e.Validate(); err != nil {
				return err
			}
			return withApp(c, func(a *app) error {
				receipt, err := a.api.SubmitEnquiry(ctx, e)
				if err != nil {
					return fmt.Errorf("sending enquiry: %w", err)
				}
				fmt.Printf("Enquiry %s sent at %s\n", receipt.ID, receipt.SubmittedAt.Local().Format("Jan 2, 15:04"))
				return nil
			})
		},
	}
}
