package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dvergnet/tagcat/internal/output"
	"github.com/dvergnet/tagcat/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui      *output.UI
	gateway store.Gateway

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "tagcat",
	Short: "Tag catalogue manager - tag types, tags and compound tags",
	Long: `tagcat maintains the tag catalogue of an image library: tag types,
tags and compound tags composed of other tags. Edits are validated
against the catalogue's integrity rules (unique names, resolvable
references, no compound cycles) and committed atomically.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tagcat/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "tagcat")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TAGCAT")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "tagcat")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "tagcat.db"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The gateway is initialized lazily so version/help run without a store.
}

// getGateway returns the shared persistence gateway, opening it on first
// call. One gateway per store location exists for the process lifetime.
func getGateway() (store.Gateway, error) {
	if gateway != nil {
		return gateway, nil
	}

	dbPath := viper.GetString("db_path")
	g, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}

	gateway = g
	return gateway, nil
}
