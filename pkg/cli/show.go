package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/orbit/pkg/cli/config"
	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/usecase"
	"github.com/secmon-lab/orbit/pkg/utils/safe"
)

func cmdShow() *cli.Command {
	var userID string
	var dateStr string
	var list bool
	var limit int
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID (required)",
			Required:    true,
			Sources:     cli.EnvVars("ORBIT_USER"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "date",
			Usage:       "Briefing date (YYYY-MM-DD, default latest)",
			Destination: &dateStr,
		},
		&cli.BoolFlag{
			Name:        "list",
			Usage:       "List recent briefings instead of showing one",
			Destination: &list,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum entries for --list",
			Value:       10,
			Destination: &limit,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show generated briefings",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			briefings := usecase.New(repo, nil, nil).Briefing

			if list {
				entries, err := briefings.List(ctx, userID, limit, 0)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("No briefings found")
					return nil
				}
				for _, b := range entries {
					color.New(color.Bold).Printf("%s", b.Date)
					fmt.Printf("  generated=%s model=%s items=%d\n",
						b.GeneratedAt.Format("2006-01-02 15:04:05"),
						b.ModelVersion, len(b.ActionItems))
				}
				return nil
			}

			var b *model.Briefing
			if dateStr != "" {
				date, err := model.ParseBriefingDate(dateStr)
				if err != nil {
					return err
				}
				b, err = briefings.Get(ctx, userID, date)
				if err != nil {
					return err
				}
			} else {
				b, err = briefings.Latest(ctx, userID)
				if err != nil {
					return err
				}
			}

			printBriefing(b)
			return nil
		},
	}
}
