package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/orbit/pkg/cli/config"
	"github.com/secmon-lab/orbit/pkg/domain/interfaces"
	"github.com/secmon-lab/orbit/pkg/domain/model"
	"github.com/secmon-lab/orbit/pkg/service/archive"
	"github.com/secmon-lab/orbit/pkg/service/briefing"
	"github.com/secmon-lab/orbit/pkg/usecase"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
	"github.com/secmon-lab/orbit/pkg/utils/safe"
)

func cmdRun() *cli.Command {
	var userID string
	var dateStr string
	var configPath string
	var archiveBucket string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var sourcesCfg config.Sources

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID to generate a briefing for (required)",
			Required:    true,
			Sources:     cli.EnvVars("ORBIT_USER"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "date",
			Usage:       "Briefing date (YYYY-MM-DD, default today)",
			Sources:     cli.EnvVars("ORBIT_DATE"),
			Destination: &dateStr,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML tuning configuration",
			Sources:     cli.EnvVars("ORBIT_CONFIG"),
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "GCS bucket for briefing archive (disabled when empty)",
			Sources:     cli.EnvVars("ORBIT_ARCHIVE_BUCKET"),
			Destination: &archiveBucket,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, sourcesCfg.Flags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the briefing pipeline once for a user",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			date := model.NewBriefingDate(time.Now())
			if dateStr != "" {
				d, err := model.ParseBriefingDate(dateStr)
				if err != nil {
					return err
				}
				date = d
			}

			uc, repo, err := buildUseCases(ctx, configPath, archiveBucket, &repoCfg, &geminiCfg, &sourcesCfg)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			result, err := uc.Run.Run(ctx, userID, date)
			if err != nil {
				printRunResult(result)
				return err
			}

			printRunResult(result)
			printBriefing(result.Briefing)
			return nil
		},
	}
}

// buildUseCases wires repository, connectors, generator and tuning config
// into the use case layer. The returned repository must be closed by the
// caller.
func buildUseCases(ctx context.Context, configPath, archiveBucket string, repoCfg *config.Repository, geminiCfg *config.Gemini, sourcesCfg *config.Sources) (*usecase.UseCases, interfaces.Repository, error) {
	opts := []usecase.Option{}

	if configPath != "" {
		appCfg, err := config.LoadAppConfiguration(configPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, usecase.WithBriefingConfig(appCfg.ToBriefingConfig()))
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	connectors, err := sourcesCfg.Configure(ctx)
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to configure sources")
	}
	if len(connectors) == 0 {
		safe.Close(ctx, repo)
		return nil, nil, goerr.New("no source connector is configured")
	}

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to configure Gemini client")
	}

	generator, err := briefing.New(llmClient, geminiCfg.Model())
	if err != nil {
		safe.Close(ctx, repo)
		return nil, nil, goerr.Wrap(err, "failed to create briefing service")
	}

	if archiveBucket != "" {
		archiver, err := archive.New(ctx, archiveBucket)
		if err != nil {
			safe.Close(ctx, repo)
			return nil, nil, goerr.Wrap(err, "failed to configure briefing archive")
		}
		opts = append(opts, usecase.WithArchiver(archiver))
		logging.Default().Info("Briefing archive enabled", "bucket", archiveBucket)
	}

	return usecase.New(repo, connectors, generator, opts...), repo, nil
}

// printRunResult writes a colored run summary to stdout
func printRunResult(result *model.RunResult) {
	if result == nil {
		return
	}

	header := color.New(color.FgCyan, color.Bold)
	if result.Failed() {
		header = color.New(color.FgRed, color.Bold)
		header.Printf("Run failed in %s for %s (%s)\n", result.FailedStage, result.UserID, result.Date)
	} else {
		header.Printf("Run %s for %s (%s)\n", result.Stage, result.UserID, result.Date)
	}

	fmt.Printf("  events: fetched=%d inserted=%d updated=%d ranked=%d\n",
		result.EventsFetched, result.EventsInserted, result.EventsUpdated, result.EventsRanked)

	for _, f := range result.SourceFailures {
		color.New(color.FgYellow).Printf("  source %s failed: %s\n", f.Source, f.Err.Error())
	}
}

// printBriefing writes the briefing content to stdout
func printBriefing(b *model.Briefing) {
	if b == nil {
		return
	}

	fmt.Println()
	color.New(color.Bold).Printf("Briefing for %s\n\n", b.Date)
	fmt.Println(b.SummaryText)

	if len(b.ActionItems) > 0 {
		fmt.Println()
		color.New(color.Bold).Println("Action items:")
		for _, item := range b.ActionItems {
			fmt.Printf("  - %s\n", item)
		}
	}
}
