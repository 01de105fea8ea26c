package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/anonid/config"
	"github.com/cppla/anonid/identity"
	"github.com/cppla/anonid/jobs"
	"github.com/cppla/anonid/metrics"
	"github.com/cppla/anonid/routes"
	"github.com/cppla/anonid/services"
	"github.com/cppla/anonid/store"
	"github.com/cppla/anonid/utils"
)

type rootOptions struct {
	configPath string
}

// app is everything the commands share once configuration is loaded.
type app struct {
	cfg      config.AppConfig
	services *services.Services
	throttle *utils.RegisterThrottle
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "anonid",
		Short:         "Anonymous device identity and token ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.json (default config/config.json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newRefreshPopularCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(opts, !noMigrate)
			if err != nil {
				return err
			}
			sched, err := jobs.NewScheduler(a.cfg.PopularRefreshSpec, a.services.Discussions, utils.Logger)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop(context.Background())

			r := routes.SetupRouter(a.cfg, a.services, a.throttle, utils.Logger)
			utils.Logger.Info("starting server", zap.String("port", a.cfg.AppPort))
			return utils.GraceServer(cmd.Context(), ":"+a.cfg.AppPort, r, utils.Logger)
		},
	}
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip schema migration on startup")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(opts, true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newRefreshPopularCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-popular",
		Short: "Rebuild the popular discussions cache once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(opts, false)
			if err != nil {
				return err
			}
			out, err := a.services.Discussions.RefreshPopular(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cached %d discussions\n", len(out.Items))
			return nil
		},
	}
}

func bootstrap(opts *rootOptions, migrate bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := utils.InitLogger(cfg); err != nil {
		return nil, err
	}
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if migrate {
		if err := store.Migrate(db); err != nil {
			return nil, err
		}
	}
	ids, err := identity.New(cfg.FingerprintSecret)
	if err != nil {
		return nil, err
	}

	rdb := utils.NewRedis(cfg)
	policy := services.DefaultPolicy()
	policy.PopularLimit = cfg.PopularDiscussionLimit

	st := store.New(db, store.WithRetryObserver(func(attempt int, err error) {
		metrics.RecordTxRetry(attempt, err)
		utils.Logger.Debug("transaction retry", zap.Int("attempt", attempt), zap.Error(err))
	}))
	svc := services.New(st, ids,
		services.WithLogger(utils.Logger),
		services.WithPolicy(policy),
		services.WithCache(utils.NewRedisCache(rdb)),
	)
	return &app{
		cfg:      cfg,
		services: svc,
		throttle: utils.NewRegisterThrottle(rdb, cfg.RegisterMaxPerIPPerMinute),
	}, nil
}
