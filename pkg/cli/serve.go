package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/orbit/pkg/cli/config"
	"github.com/secmon-lab/orbit/pkg/service/worker"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
	"github.com/secmon-lab/orbit/pkg/utils/safe"
)

func cmdServe() *cli.Command {
	var userIDs []string
	var interval time.Duration
	var configPath string
	var archiveBucket string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var sourcesCfg config.Sources

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID to generate briefings for (can be specified multiple times)",
			Required:    true,
			Sources:     cli.EnvVars("ORBIT_USERS"),
			Destination: &userIDs,
		},
		&cli.DurationFlag{
			Name:        "interval",
			Usage:       "Interval between briefing cycles",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("ORBIT_INTERVAL"),
			Destination: &interval,
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
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the briefing worker for configured users",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := buildUseCases(ctx, configPath, archiveBucket, &repoCfg, &geminiCfg, &sourcesCfg)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			w := worker.NewBriefingWorker(uc.Run, userIDs, interval)
			if err := w.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start briefing worker")
			}

			logging.Default().Info("Briefing worker running",
				"users", userIDs,
				"interval", interval.String())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig.String())
			case <-ctx.Done():
				logging.Default().Info("Context cancelled")
			}

			w.Stop()
			return nil
		},
	}
}
