package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenshield/skillcore/pkg/config"
	"github.com/agenshield/skillcore/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "skillcored",
	Short:   "AgenShield skill lifecycle daemon",
	Long:    `skillcored tracks, deploys, and guards the integrity of agent skills on a host.`,
	Version: Version,
}

var cfg *config.Config

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"skillcored version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("machine-id", "", "Machine identifier used to derive the config-integrity key")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
}

func initConfig() {
	configPath, _ := rootCmd.PersistentFlags().GetString("config")

	c, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "info" {
		c.LogLevel = v
	}
	if v, _ := rootCmd.PersistentFlags().GetBool("log-json"); v {
		c.LogJSON = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("machine-id"); v != "" {
		c.MachineID = v
	}

	log.Init(c.LogConfig())
	cfg = c
}
