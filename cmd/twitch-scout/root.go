package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/streamscout/twitch-scout/pkg/cache"
	"github.com/streamscout/twitch-scout/pkg/config"
	"github.com/streamscout/twitch-scout/pkg/export"
	"github.com/streamscout/twitch-scout/pkg/logging"
	"github.com/streamscout/twitch-scout/pkg/models"
	"github.com/streamscout/twitch-scout/pkg/scraper"
	"github.com/streamscout/twitch-scout/pkg/twitch"
)

const version = "0.1.0"

const credentialsHelp = `Please ensure these environment variables are set:
  TWITCH_CLIENT_ID=your_client_id
  TWITCH_CLIENT_SECRET=your_client_secret`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "twitch-scout",
		Short:         "Find Twitch streamers and extract contact information",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newAuthCmd())
	root.AddCommand(newGamesCmd())
	root.AddCommand(newSearchCmd())
	return root
}

// setup loads configuration and builds the logger and client shared by
// all commands.
func setup(verbose bool) (*config.Config, *twitch.Client, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, credentialsHelp)
		return nil, nil, zerolog.Nop(), exitWith(exitAuth, err)
	}

	logCfg := logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogFormat == "console",
		Output: os.Stderr,
	}
	if verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.Setup(logCfg)

	clientCfg := twitch.DefaultConfig(cfg.TwitchClientID, cfg.TwitchClientSecret)
	clientCfg.RateLimit = cfg.RateLimit
	client, err := twitch.New(clientCfg, logging.NewLogger("twitch"))
	if err != nil {
		return nil, nil, logger, exitWith(exitGeneral, err)
	}
	return cfg, client, logger, nil
}

// runContext is cancelled on SIGINT or SIGTERM so a long collection can
// be aborted cleanly.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Test authentication with the Twitch API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, client, _, err := setup(false)
			if err != nil {
				return err
			}

			ctx, cancel := runContext()
			defer cancel()

			cred, err := client.Authenticate(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Authentication failed:", err)
				fmt.Fprintln(os.Stderr)
				fmt.Fprintln(os.Stderr, credentialsHelp)
				return exitWith(exitAuth, err)
			}

			days := int(time.Until(cred.ExpiresAt).Hours() / 24)
			fmt.Fprintln(cmd.OutOrStdout(), "Authentication successful")
			fmt.Fprintf(cmd.OutOrStdout(), "  Token expires in: %d days\n", days)
			fmt.Fprintf(cmd.OutOrStdout(), "  Rate limit: %d requests/minute\n", cfg.RateLimit)
			return nil
		},
	}
}

func newGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games <name>...",
		Short: "Look up game ids by exact name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := setup(false)
			if err != nil {
				return err
			}

			ctx, cancel := runContext()
			defer cancel()

			games, err := client.GetGamesByName(ctx, args)
			if err != nil {
				if errors.Is(err, twitch.ErrAuthentication) {
					fmt.Fprintln(os.Stderr, "Authentication failed. Check your credentials.")
					return exitWith(exitAuth, err)
				}
				return exitWith(exitGeneral, err)
			}

			if len(games) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No games found for %v\n", args)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, g := range games {
				fmt.Fprintf(w, "%s\t%s\n", g.ID, g.Name)
			}
			if err := w.Flush(); err != nil {
				return exitWith(exitGeneral, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nUse --game-id %s with the search command.\n", games[0].ID)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		game           string
		gameID         string
		minViewers     int
		maxViewers     int
		language       string
		includeOffline bool
		liveOnly       bool
		limit          int
		output         string
		format         string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search for streamers and export the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exportCfg := models.ExportConfig{
				Format:     models.ExportFormat(format),
				OutputPath: output,
			}
			if err := exportCfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return exitWith(exitCriteria, err)
			}

			criteria := models.SearchCriteria{
				MinViewers:     minViewers,
				MaxViewers:     maxViewers,
				GameName:       game,
				GameID:         gameID,
				Language:       language,
				IncludeOffline: includeOffline && !liveOnly,
				Limit:          limit,
			}
			if err := criteria.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, "Invalid search criteria:", err)
				return exitWith(exitCriteria, err)
			}

			cfg, client, logger, err := setup(verbose)
			if err != nil {
				return err
			}

			ctx, cancel := runContext()
			defer cancel()

			opts := []scraper.Option{
				scraper.WithLogger(logging.NewLogger("scraper")),
				scraper.WithExporter(func(streamers []models.Streamer, crit models.SearchCriteria) error {
					return export.Write(streamers, crit, exportCfg)
				}),
			}
			if verbose {
				opts = append(opts, scraper.WithObserver(progressObserver(cmd.ErrOrStderr())))
			}
			if cfg.RedisURL != "" {
				redisOpts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					logger.Warn().Err(err).Msg("invalid REDIS_URL, running without profile cache")
				} else {
					rdb := redis.NewClient(redisOpts)
					opts = append(opts, scraper.WithProfileCache(
						cache.NewProfileCache(rdb, cache.DefaultTTL, logging.NewLogger("cache"))))
				}
			}

			pipeline := scraper.New(client, opts...)
			st, err := pipeline.Run(ctx, criteria)
			if err != nil {
				if errors.Is(err, twitch.ErrAuthentication) {
					fmt.Fprintln(os.Stderr, "Authentication failed. Check your credentials.")
					return exitWith(exitAuth, err)
				}
				fmt.Fprintln(os.Stderr, "Error:", err)
				return exitWith(exitGeneral, err)
			}

			streamers := st.Streamers()
			if len(streamers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No streamers found matching criteria.")
				return nil
			}

			printSummary(cmd.OutOrStdout(), streamers, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&game, "game", "g", "", "Game/category name to filter by")
	cmd.Flags().StringVar(&gameID, "game-id", "", "Twitch game ID (alternative to --game)")
	cmd.Flags().IntVarP(&minViewers, "min-viewers", "m", 0, "Minimum viewer count")
	cmd.Flags().IntVarP(&maxViewers, "max-viewers", "M", 0, "Maximum viewer count (0 = unbounded)")
	cmd.Flags().StringVarP(&language, "language", "l", "de", "Broadcast language (ISO 639-1)")
	cmd.Flags().BoolVar(&includeOffline, "include-offline", true, "Include offline channels")
	cmd.Flags().BoolVar(&liveOnly, "live-only", false, "Collect live streamers only")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum streamers to collect")
	cmd.Flags().StringVarP(&output, "output", "o", "streamers.csv", "Output file path")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv, json")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	cmd.MarkFlagsMutuallyExclusive("include-offline", "live-only")

	return cmd
}

// progressObserver prints phase transitions to stderr as they happen.
func progressObserver(w io.Writer) scraper.Observer {
	var lastPhase scraper.Phase
	return func(snap scraper.Snapshot) {
		if snap.Phase == lastPhase {
			return
		}
		lastPhase = snap.Phase
		fmt.Fprintf(w, "phase: %s\n", snap.Phase)
	}
}

func printSummary(w io.Writer, streamers []models.Streamer, output string) {
	live, withEmail, withSocial := 0, 0, 0
	for _, s := range streamers {
		if s.IsLive {
			live++
		}
		if len(s.Emails) > 0 {
			withEmail++
		}
		if !s.SocialLinks.Empty() {
			withSocial++
		}
	}

	fmt.Fprintf(w, "\nFound %d streamers\n", len(streamers))
	fmt.Fprintf(w, "  - Live: %d\n", live)
	fmt.Fprintf(w, "  - Offline: %d\n", len(streamers)-live)
	fmt.Fprintf(w, "  - With email: %d\n", withEmail)
	fmt.Fprintf(w, "  - With social links: %d\n", withSocial)
	fmt.Fprintf(w, "\nExported to: %s\n", output)
}
