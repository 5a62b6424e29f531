package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"snapify/internal/config"
	"snapify/internal/database"
	"snapify/internal/staging"
	"snapify/pkg/logger"
	"snapify/pkg/utils"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "snapify",
		Short:         "Event gallery media pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API, websocket hub and transcode workers",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Remove every file left in the staging directory",
			RunE:  runSweep,
		},
		backupCmd(),
		seedCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.LogFatal("%v", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.SetQuiet(cfg.App.Quiet)
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runSweep must not run next to a live server: it removes files that
// in-flight uploads and queued jobs still own.
func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	area, err := staging.NewArea(cfg.Upload.StagingDir)
	if err != nil {
		return err
	}
	n, err := area.Sweep()
	if err != nil {
		return err
	}
	logger.LogSuccess("Removed %d staged file(s) from %s", n, area.Dir())
	return nil
}

func backupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a point-in-time copy of the metadata database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join("backups", fmt.Sprintf("snapify_%s.db", time.Now().Format("2006-01-02_15-04-05")))
			}

			store, err := database.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			size, err := store.Backup(ctx, out)
			if err != nil {
				return err
			}
			logger.LogSuccess("Backup written to %s (%s)", out, utils.FormatBytes(size))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination file (default backups/snapify_<timestamp>.db)")
	return cmd
}
