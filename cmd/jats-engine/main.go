// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the jats-engine CLI.
// Subcommands wrap the conversion pipeline (convert) and its building
// blocks (manifest, assets, bundle, merge, refs) plus the run history.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the jats-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "jats-engine",
	Short: "Convert DOCX and near-JATS manuscripts to normalized JATS XML",
	Long: `jats-engine turns Word (DOCX) manuscripts and loosely structured JATS XML
into normalized JATS: a populated front-matter skeleton, cleaned and
optionally reordered references, extracted figures and a manifest that
lists every asset.

Each building block is also a subcommand: manifest, assets, bundle, merge
and refs. Every conversion is recorded in a local history database.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./jats-engine.yaml or ~/.config/jats-engine/jats-engine.yaml)")
}

func initConfig() {
	// .env values become plain environment variables, so JATS_ENGINE_*
	// entries there are picked up by AutomaticEnv below.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("jats-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "jats-engine"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("JATS_ENGINE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
