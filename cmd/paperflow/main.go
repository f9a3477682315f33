// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperflow CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperflow/internal/secrets"
	"github.com/pdiddy/paperflow/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the paperflow CLI.
var rootCmd = &cobra.Command{
	Use:   "paperflow",
	Short: "Streaming paper discovery and ingestion tracking",
	Long: `paperflow coordinates academic paper discovery for research channels.
It streams search results from a discovery backend, merges and deduplicates
them per channel, tracks which papers were attached for ingestion, and
reconciles ingestion progress against the backend.

Each operation is a subcommand: discover, rescore, attach, status, and
dismiss. Per-project dismissals persist across invocations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperflow.yaml or ~/.config/paperflow/config.yaml)")
	rootCmd.PersistentFlags().String("project", "", "project name scoping dismissals and state")
	rootCmd.PersistentFlags().Bool("verbose", false, "log diagnostics to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperflow"))
		}
	}

	viper.SetEnvPrefix("PAPERFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("project", "default")
	viper.SetDefault("discovery.max_results", types.DefaultMaxResults)
	viper.SetDefault("discovery.load_more_increment", types.DefaultLoadMoreIncrement)
	viper.SetDefault("discovery.timeout", 60*time.Second)
	viper.SetDefault("ingest.poll_interval", types.DefaultPollInterval)
	viper.SetDefault("ingest.staleness_window", types.DefaultStalenessWindow)
	viper.SetDefault("storage.state_dir", types.DefaultStateDir)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// coordinatorConfig assembles the runtime configuration from flags, the
// config file, environment variables, and loaded secrets.
func coordinatorConfig(cmd *cobra.Command) types.CoordinatorConfig {
	project, _ := cmd.Flags().GetString("project")
	if project == "" {
		project = viper.GetString("project")
	}

	cfg := types.CoordinatorConfig{
		Project: project,
		Discovery: types.DiscoveryConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("discovery.timeout"),
				UserAgent: "paperflow/" + version,
			},
			Endpoint:          viper.GetString("discovery.endpoint"),
			RescoreEndpoint:   viper.GetString("discovery.rescore_endpoint"),
			Sources:           viper.GetStringSlice("discovery.sources"),
			MaxResults:        viper.GetInt("discovery.max_results"),
			LoadMoreIncrement: viper.GetInt("discovery.load_more_increment"),
			APIKey:            loadedSecrets.Get(secrets.DiscoveryAPIKey, viper.GetString("discovery.api_key")),
		},
		Ingest: types.IngestConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("discovery.timeout"),
				UserAgent: "paperflow/" + version,
			},
			StatusEndpoint:  viper.GetString("ingest.status_endpoint"),
			PollInterval:    viper.GetDuration("ingest.poll_interval"),
			StalenessWindow: viper.GetDuration("ingest.staleness_window"),
		},
		Storage: types.StorageConfig{
			StateDir: viper.GetString("storage.state_dir"),
		},
	}
	return cfg.ApplyDefaults()
}

// commandLogger returns a stderr logger when --verbose is set, or a
// discarding one otherwise.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
