package config

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/orbit/pkg/source"
	"github.com/secmon-lab/orbit/pkg/source/calendar"
	"github.com/secmon-lab/orbit/pkg/source/github"
	"github.com/secmon-lab/orbit/pkg/source/notion"
	"github.com/secmon-lab/orbit/pkg/source/slack"
	"github.com/secmon-lab/orbit/pkg/utils/logging"
)

// Sources holds CLI flags for all source connectors. A connector is built
// only when its credentials are set; a deployment with a single source is
// valid.
type Sources struct {
	calendarCredentials string

	slackBotToken string

	notionToken      string
	notionDatabaseID string

	githubAppID          int
	githubInstallationID int
	githubPrivateKey     string
	githubRepos          []string
}

// Flags returns CLI flags for all source connectors
func (x *Sources) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "calendar-credentials",
			Usage:       "Path to Google Calendar service account credentials JSON",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_CALENDAR_CREDENTIALS"),
			Destination: &x.calendarCredentials,
		},
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_SLACK_BOT_TOKEN"),
			Destination: &x.slackBotToken,
		},
		&cli.StringFlag{
			Name:        "notion-token",
			Usage:       "Notion integration token",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_NOTION_TOKEN"),
			Destination: &x.notionToken,
		},
		&cli.StringFlag{
			Name:        "notion-database-id",
			Usage:       "Notion task database ID",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_NOTION_DATABASE_ID"),
			Destination: &x.notionDatabaseID,
		},
		&cli.IntFlag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_GITHUB_APP_ID"),
			Destination: &x.githubAppID,
		},
		&cli.IntFlag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_GITHUB_INSTALLATION_ID"),
			Destination: &x.githubInstallationID,
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM string or file path)",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_GITHUB_PRIVATE_KEY"),
			Destination: &x.githubPrivateKey,
		},
		&cli.StringSliceFlag{
			Name:        "github-repo",
			Usage:       "GitHub repository to watch (owner/repo), repeatable",
			Category:    "Sources",
			Sources:     cli.EnvVars("ORBIT_GITHUB_REPOS"),
			Destination: &x.githubRepos,
		},
	}
}

// LogValue returns the source configuration for startup logging. Tokens are
// reported as lengths only.
func (x Sources) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("calendar", x.calendarCredentials != ""),
		slog.Int("slack-token.len", len(x.slackBotToken)),
		slog.Int("notion-token.len", len(x.notionToken)),
		slog.Int("github-app-id", x.githubAppID),
		slog.String("github-repos", strings.Join(x.githubRepos, ",")),
	)
}

// Configure builds a connector for every source whose credentials are set
func (x *Sources) Configure(ctx context.Context) ([]source.Connector, error) {
	var connectors []source.Connector
	logger := logging.Default()

	if x.calendarCredentials != "" {
		creds, err := os.ReadFile(x.calendarCredentials)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read calendar credentials",
				goerr.V("path", x.calendarCredentials))
		}
		conn, err := calendar.New(ctx, creds)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure calendar source")
		}
		connectors = append(connectors, conn)
		logger.Info("Calendar source enabled")
	}

	if x.slackBotToken != "" {
		conn, err := slack.New(x.slackBotToken)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure slack source")
		}
		connectors = append(connectors, conn)
		logger.Info("Slack source enabled")
	}

	if x.notionToken != "" {
		if x.notionDatabaseID == "" {
			return nil, goerr.New("notion-database-id is required when notion-token is set")
		}
		conn, err := notion.New(x.notionToken, x.notionDatabaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure notion source")
		}
		connectors = append(connectors, conn)
		logger.Info("Notion source enabled", "database_id", x.notionDatabaseID)
	}

	if x.githubAppID != 0 {
		if x.githubInstallationID == 0 || x.githubPrivateKey == "" {
			return nil, goerr.New("github-installation-id and github-private-key are required when github-app-id is set")
		}
		if len(x.githubRepos) == 0 {
			return nil, goerr.New("at least one github-repo is required when github-app-id is set")
		}
		conn, err := github.New(int64(x.githubAppID), int64(x.githubInstallationID), x.githubPrivateKey, x.githubRepos)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure github source")
		}
		connectors = append(connectors, conn)
		logger.Info("GitHub source enabled", "repos", x.githubRepos)
	}

	return connectors, nil
}
