// Command regpulse tracks event registration counts and announces milestone
// crossings to a Slack channel.
//
// Usage:
//
//	regpulse serve
//	regpulse cycle
//	regpulse leaderboard
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/attendly/regpulse/internal/api"
	"github.com/attendly/regpulse/internal/cache"
	"github.com/attendly/regpulse/internal/config"
	"github.com/attendly/regpulse/internal/db"
	"github.com/attendly/regpulse/internal/leaderboard"
	"github.com/attendly/regpulse/internal/maintenance"
	"github.com/attendly/regpulse/internal/metrics"
	"github.com/attendly/regpulse/internal/notify"
	"github.com/attendly/regpulse/internal/poller"
	"github.com/attendly/regpulse/internal/source"
	"github.com/attendly/regpulse/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "regpulse",
		Short: "Event registration milestone tracker",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(cycleCmd())
	root.AddCommand(leaderboardCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poller, maintenance tickers, and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				slog.SetDefault(logger)

				st := store.New(pool.Pool)
				src := source.New(pool.Pool, logger)
				sender := notify.NewSlackSender(cfg.SlackWebhookURL, logger)
				if sender == nil {
					logger.Info("Slack delivery disabled (no SLACK_WEBHOOK_URL)")
				}

				registry := prometheus.NewRegistry()
				registry.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				m := metrics.New(registry)

				p := poller.New(poller.Config{
					Source:           src,
					Store:            st,
					Notifier:         sender,
					PollInterval:     cfg.PollInterval,
					LeaderboardTimes: cfg.LeaderboardTimes,
					CutoffDate:       cfg.CutoffDate,
					PostLeaderboard: func(ctx context.Context) error {
						return leaderboard.Post(ctx, pool.Pool, sender, cfg.LeaderboardSize)
					},
					Metrics: m,
					Logger:  logger,
				})
				go p.Start(ctx)

				go maintenance.Start(ctx, pool.Pool, maintenance.Config{
					CleanupInterval: cfg.CleanupInterval,
					RetentionDays:   cfg.RetentionDays,
				}, logger)

				appCache := cache.New(cfg.CacheEnabled)
				router := api.NewRouter(pool.Pool, st, appCache, cfg, registry)

				addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
				srv := &http.Server{
					Addr:         addr,
					Handler:      router,
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 30 * time.Second,
					IdleTimeout:  60 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					logger.Info("Starting Regpulse",
						"addr", addr,
						"environment", cfg.Environment,
						"poll_interval", cfg.PollInterval)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						errCh <- err
					}
				}()

				select {
				case err := <-errCh:
					return fmt.Errorf("server failed: %w", err)
				case <-ctx.Done():
				}
				logger.Info("Shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Shutdown error", "error", err)
				}
				logger.Info("Server stopped")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// cycle command
// --------------------------------------------------------------------------

func cycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run exactly one poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if !cfg.CutoffDate.IsZero() && time.Now().After(cfg.CutoffDate) {
					logger.Info("Cutoff date passed, nothing to do")
					return nil
				}

				sender := notify.NewSlackSender(cfg.SlackWebhookURL, logger)
				p := poller.New(poller.Config{
					Source:   source.New(pool.Pool, logger),
					Store:    store.New(pool.Pool),
					Notifier: sender,
					Logger:   logger,
				})

				result, err := p.RunCycle(ctx)
				if err != nil {
					return fmt.Errorf("cycle: %w", err)
				}
				logger.Info("Cycle complete", "summary", result.Summary())
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// leaderboard command
// --------------------------------------------------------------------------

func leaderboardCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Post the registration leaderboard once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				sender := notify.NewSlackSender(cfg.SlackWebhookURL, logger)
				if sender == nil {
					return fmt.Errorf("SLACK_WEBHOOK_URL is required")
				}
				if size == 0 {
					size = cfg.LeaderboardSize
				}
				if err := leaderboard.Post(ctx, pool.Pool, sender, size); err != nil {
					return fmt.Errorf("post leaderboard: %w", err)
				}
				logger.Info("Leaderboard posted", "size", size)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "Number of entries (default from config)")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// run handles config loading, DB connection, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
