package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/conference-insight/internal/cache"
	"github.com/joelkehle/conference-insight/internal/config"
	"github.com/joelkehle/conference-insight/internal/dashboard"
	"github.com/joelkehle/conference-insight/internal/logger"
	"github.com/joelkehle/conference-insight/internal/observability"
	"github.com/joelkehle/conference-insight/internal/store"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	cfg             *config.Config
	log             *logger.Logger
	shutdownTracing func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "conference-insight",
	Short: "Conference schedule analytics and daily insight reports",
	Long: `conference-insight stores conference schedules, serves topic and company
breakdowns over HTTP and MCP, and turns expert notes into daily reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		log, err = logger.New(cfg.Logging.Mode, level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		shutdownTracing = observability.Init(cmd.Context(), log, observability.Config{
			ServiceName: "conference-insight",
			Version:     version,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			if err := shutdownTracing(context.Background()); err != nil && log != nil {
				log.Warn("tracing shutdown failed", "error", err)
			}
		}
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, mcpCmd, importCmd, statsCmd)
	rootCmd.AddCommand(mergeInsightsCmd, dailyReportCmd, renderReportCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return store.Open(cfg.Database.Path)
}

// openCache returns nil for the "none" backend.
func openCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.Prefix)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return cache.NewMemory(), nil
	}
}

func newService(st *store.Store, c cache.Cache) *dashboard.Service {
	return dashboard.New(st, dashboard.Options{
		Cloud:    cfg.Companies.Cloud,
		OEM:      cfg.Companies.OEM,
		Cache:    c,
		CacheTTL: cfg.CacheTTL(),
	}, log)
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration to --config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func init() {
	initConfigCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
