// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package main is the mpxsync entry point.
//
// mpxsync keeps a local media database synchronized with an mpx video
// platform account. It long-polls the platform's notification endpoints,
// queues changed objects into a durable JetStream work queue, and
// imports their current state with intermediary caches bypassed.
//
// Commands:
//
//	serve        run the full pipeline: listeners, workers, admin server
//	listen       run one listen cycle per collection and exit
//	worker       run import workers only
//	resync       drop a collection's cursor so it re-synchronizes
//	import-item  import a single object by URI, bypassing the queue
//
// Configuration is layered via Koanf: defaults, then a YAML file, then
// MPXSYNC_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "mpxsync",
		Short:         "Notification-driven media synchronization for mpx",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	loadConfig := func() (*config.Config, error) {
		var cfg *config.Config
		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		logging.Init(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Caller: cfg.Logging.Caller,
		})
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCommand(loadConfig),
		newListenCommand(loadConfig),
		newWorkerCommand(loadConfig),
		newResyncCommand(loadConfig),
		newImportItemCommand(loadConfig),
	)

	if err := rootCmd.Execute(); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
