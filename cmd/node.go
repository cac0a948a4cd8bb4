package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezonai/simplewallet/api"
	"github.com/mezonai/simplewallet/config"
	"github.com/mezonai/simplewallet/ledger"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/monitoring"
	"github.com/mezonai/simplewallet/processor"
	"github.com/mezonai/simplewallet/ratelimit"
	"github.com/mezonai/simplewallet/store"
	"github.com/spf13/cobra"
)

type NodeFlags struct {
	ConfigPath string
	ListenAddr string
	StoreType  string
	StoreDir   string
}

var nodeFlags NodeFlags

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the single-node dev ledger with the wallet processor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(nodeFlags)
	},
}

func init() {
	nodeCmd.Flags().StringVar(&nodeFlags.ConfigPath, "node-config", "", "node.ini")
	nodeCmd.Flags().StringVar(&nodeFlags.ListenAddr, "listen", "", "REST listen address (overrides config)")
	nodeCmd.Flags().StringVar(&nodeFlags.StoreType, "store", "", "leveldb, memory, bolt, pebble or redis (overrides config)")
	nodeCmd.Flags().StringVar(&nodeFlags.StoreDir, "data-dir", "", "store directory (overrides config)")
	rootCmd.AddCommand(nodeCmd)
}

func loadNodeConfig(f NodeFlags) (*config.NodeConfig, error) {
	cfg := config.DefaultNodeConfig()
	if f.ConfigPath != "" {
		loaded, err := config.LoadNodeConfig(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.ListenAddr != "" {
		cfg.API.ListenAddr = f.ListenAddr
	}
	if f.StoreType != "" {
		cfg.Store.Type = f.StoreType
	}
	if f.StoreDir != "" {
		cfg.Store.Directory = f.StoreDir
	}
	return cfg, nil
}

func runNode(f NodeFlags) error {
	cfg, err := loadNodeConfig(f)
	if err != nil {
		return err
	}
	clientCfg, err := loadClientConfig(clientFlags)
	if err != nil {
		return err
	}
	family, err := clientCfg.BuildFamily()
	if err != nil {
		return err
	}

	stores, err := store.Open(&cfg.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	monitoring.InitMetrics()
	l := ledger.NewLedger(stores.State, stores.Statuses, cfg.Ledger.QueueSize)
	if err := l.Register(processor.NewWallet(family).Handler()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	l.Start(ctx)

	limiter := ratelimit.NewRateLimiter(ratelimit.FromNodeConfig(cfg.RateLimit))
	defer limiter.Stop()
	server := api.NewServer(l, limiter, cfg.API.ListenAddr)
	server.Start()

	logx.Info("NODE", fmt.Sprintf("Dev ledger up: family=%s store=%s listen=%s", family, cfg.Store.Type, cfg.API.ListenAddr))
	<-ctx.Done()

	logx.Info("NODE", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
