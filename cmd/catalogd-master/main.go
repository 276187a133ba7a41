package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/catalogd/pkg/api"
	"github.com/cuemby/catalogd/pkg/assign"
	"github.com/cuemby/catalogd/pkg/config"
	"github.com/cuemby/catalogd/pkg/log"
	"github.com/cuemby/catalogd/pkg/manager"
	"github.com/cuemby/catalogd/pkg/tsfleet"
	"github.com/spf13/cobra"
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
	Use:   "catalogd-master",
	Short: "Cluster catalog manager for a sharded database",
	Long: `catalogd-master owns the authoritative metadata of namespaces,
tables, tablets, user-defined types, roles and cluster configuration for
a distributed, sharded database, and drives tablet creation, alteration
and deletion across the tablet server fleet.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"catalogd-master version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(joinCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if nodeID, _ := cmd.Flags().GetString("node-id"); nodeID != "" {
		cfg.NodeID = nodeID
	}
	if bindAddr, _ := cmd.Flags().GetString("bind-addr"); bindAddr != "" {
		cfg.BindAddr = bindAddr
	}
	if apiAddr, _ := cmd.Flags().GetString("api-addr"); apiAddr != "" {
		cfg.APIAddr = apiAddr
	}
	if healthAddr, _ := cmd.Flags().GetString("health-addr"); healthAddr != "" {
		cfg.HealthAddr = healthAddr
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// runNode starts the manager, the API server and the Background Loop,
// then blocks until an interrupt or a fatal server error. start performs
// the raft-level bootstrap or join before the rest of the node comes up.
func runNode(cfg *config.Config, start func(*manager.Manager) error) error {
	fleet := tsfleet.New()

	mgr, err := manager.New(cfg, fleet.Live)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	if err := start(mgr); err != nil {
		return fmt.Errorf("failed to start raft: %w", err)
	}

	loop := assign.NewLoop(mgr.Service(), cfg.BGTaskWait())
	loop.Start()

	srv := api.NewServer(mgr, loop, fleet)
	hs := api.NewHealthServer(mgr)

	errCh := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(cfg.APIAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()
	go func() {
		if err := hs.Start(cfg.HealthAddr); err != nil {
			errCh <- fmt.Errorf("health server error: %w", err)
		}
	}()

	fmt.Printf("catalogd-master running: node=%s raft=%s api=%s\n", cfg.NodeID, cfg.BindAddr, cfg.APIAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	}

	loop.Stop()
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	fmt.Println("✓ shutdown complete")
	return nil
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Bootstrap a new single-node cluster",
	Long: `Bootstrap starts catalogd-master as the sole voter of a brand
new raft cluster. Additional nodes join it later with 'catalogd-master
join'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runNode(cfg, (*manager.Manager).Bootstrap)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Start this node and join an existing cluster",
	Long: `Join starts this node's raft instance without self-bootstrapping.
Once it is reachable, contact the cluster leader's /v1/join endpoint
with a valid join token to add it as a voter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runNode(cfg, (*manager.Manager).Join)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{bootstrapCmd, joinCmd} {
		cmd.Flags().String("node-id", "", "Unique node ID (overrides config file)")
		cmd.Flags().String("bind-addr", "", "Raft bind address (overrides config file)")
		cmd.Flags().String("api-addr", "", "HTTP API listen address (overrides config file)")
		cmd.Flags().String("health-addr", "", "Health/metrics listen address (overrides config file)")
		cmd.Flags().String("data-dir", "", "Data directory (overrides config file)")
	}
}
