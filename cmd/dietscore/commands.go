package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dietscore/internal/app"
	"dietscore/internal/archive"
	"dietscore/internal/cache"
	"dietscore/internal/config"
	"dietscore/internal/history"
	"dietscore/internal/search"
	"dietscore/internal/store"
)

// --- Global Command Variables ---
var (
	cfg    config.Config
	logger *slog.Logger

	envFile   string
	dbDriver  string
	dbURL     string
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:           "dietscore",
		Short:         "Resolve Diet member affiliations and score members per bill",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg = config.Load()
			if dbDriver != "" {
				cfg.DatabaseDriver = dbDriver
			}
			if dbURL != "" {
				cfg.DatabaseURL = dbURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			var err error
			logger, err = newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	scoreCmd = &cobra.Command{
		Use:   "score",
		Short: "Score every bill once and publish the report",
		Args:  cobra.NoArgs,
		RunE:  runScore,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in serve.go
	}
	groupCmd = &cobra.Command{
		Use:   "group <member-id> <date>",
		Short: "Print the group a member belonged to on a date",
		Args:  cobra.ExactArgs(2),
		RunE:  runGroup, // Defined in query.go
	}
	membersCmd = &cobra.Command{
		Use:   "members <group-id> <date>",
		Short: "List the members of a group on a date",
		Args:  cobra.ExactArgs(2),
		RunE:  runMembers, // Defined in query.go
	}
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded report versions",
		Args:  cobra.NoArgs,
		RunE:  runHistory, // Defined in query.go
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if migrateDown {
				reverted, err := store.RevertMigrations(cmd.Context(), db, cfg.MigrationsDir, migrateSteps)
				logger.Info("migrations reverted", "dir", cfg.MigrationsDir, "versions", reverted)
				return err
			}
			applied, err := store.ApplyMigrations(cmd.Context(), db, cfg.MigrationsDir)
			logger.Info("migrations applied", "dir", cfg.MigrationsDir, "versions", applied)
			return err
		},
	}

	scoreSummary  bool
	queryChamber  string
	historyLimit  int
	migrateOnBoot bool
	migrateDown   bool
	migrateSteps  int
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&dbDriver, "db-driver", "", "database driver: postgres or sqlite (overrides DATABASE_DRIVER)")
	flags.StringVar(&dbURL, "db-url", "", "database connection string (overrides DATABASE_URL)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.StringVar(&logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")

	scoreCmd.Flags().BoolVar(&scoreSummary, "summary", false, "print the run summary instead of the report")
	groupCmd.Flags().StringVar(&queryChamber, "chamber", "", "restrict the lookup to one chamber")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of versions to list")
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert applied migrations instead of applying pending ones")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to revert with --down (0 reverts all)")
	serveCmd.Flags().BoolVar(&migrateOnBoot, "migrate", true, "apply migrations before serving")

	rootCmd.AddCommand(scoreCmd, serveCmd, groupCmd, membersCmd, historyCmd, migrateCmd)
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func openDB(ctx context.Context) (*store.DB, error) {
	driver, err := store.ParseDriver(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// stack owns the database and every optional sink built from cfg.
type stack struct {
	db      *store.DB
	service *app.Service
	closers []func() error
}

func (r *stack) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newStack(ctx context.Context, migrate bool) (*stack, error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}
	rt := &stack{db: db, closers: []func() error{db.Close}}
	if migrate {
		if _, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	opts := []app.Option{app.WithLogger(logger)}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		rt.closers = append(rt.closers, redisStore.Close)
		opts = append(opts, app.WithCache(redisStore))
	}
	if strings.TrimSpace(cfg.HistoryDir) != "" {
		opts = append(opts, app.WithHistory(history.New(cfg.HistoryDir)))
	}
	if cfg.Archive.Enabled() {
		arc, err := archive.New(archive.Options{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		opts = append(opts, app.WithArchive(arc))
	}
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		rt.closers = append(rt.closers, func() error { meiliClient.Close(); return nil })
		opts = append(opts, app.WithSearch(search.NewService(meiliClient, logger)))
	}

	rt.service = app.New(cfg, store.NewSQLStore(db), opts...)
	return rt, nil
}

func runScore(cmd *cobra.Command, args []string) error {
	rt, err := newStack(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.service.Run(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if scoreSummary {
		return writeJSON(out, result)
	}
	return writeJSON(out, result.Report)
}
