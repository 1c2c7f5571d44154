// Package main provides the quorumd CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorumd/quorumd/pkg/membership"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quorumd",
		Short: "quorumd - a standalone Raft leader-election daemon",
		Long: `quorumd runs one node of a cluster that elects a single leader
among a fixed, pre-configured roster using the follower/candidate/leader
subset of the Raft consensus protocol.

It speaks nothing of log replication or persisted state: only who is
the current leader, and for which term.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quorumd v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a quorumd node",
		Long:  "Start a quorumd node, blocking until SIGINT/SIGTERM or a fatal error.",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Path to a YAML config file (optional; env vars always take precedence)")
	serveCmd.Flags().String("name", "", "This node's name (must appear in --members)")
	serveCmd.Flags().String("addr", "", "Bind address")
	serveCmd.Flags().Int("port", 0, "Bind port")
	serveCmd.Flags().String("members", "", "Comma-separated name:host:port roster")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe builds a Config (file, then flags, then QUORUMD_* env
// overrides — in that precedence order, env winning last), constructs
// an App, and runs it until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()

	app, err := membership.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("construct node: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

func loadConfig(cmd *cobra.Command) (*membership.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *membership.Config
	if configPath != "" {
		loaded, err := membership.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = membership.DefaultConfig()
	}

	if name, _ := cmd.Flags().GetString("name"); name != "" {
		cfg.Name = name
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if members, _ := cmd.Flags().GetString("members"); members != "" {
		cfg.Members = members
	}

	return cfg, nil
}
