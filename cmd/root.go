package cmd

import (
	"fmt"
	"os"

	"github.com/mezonai/simplewallet/client"
	"github.com/mezonai/simplewallet/config"
	"github.com/mezonai/simplewallet/keystore"
	"github.com/mezonai/simplewallet/logx"
	"github.com/spf13/cobra"
)

type ClientFlags struct {
	ConfigPath   string
	RestURL      string
	KeyDir       string
	KeyStore     string
	PgDSN        string
	MasterKeyEnv string
}

var clientFlags ClientFlags

var rootCmd = &cobra.Command{
	Use:   "simplewallet",
	Short: "Simple wallet client and dev ledger node",
	Long: `Deposit, withdraw and transfer balances on a simplewallet ledger.

The node subcommand runs a single-node dev ledger with the wallet processor
registered and a REST API compatible with the client commands.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&clientFlags.ConfigPath, "config", "c", "", "wallet.yml client config")
	flags.StringVar(&clientFlags.RestURL, "url", "", "ledger REST API url (overrides config)")
	flags.StringVar(&clientFlags.KeyDir, "keydir", "", "directory holding <user>.priv and <user>.pub (overrides config)")
	flags.StringVar(&clientFlags.KeyStore, "keystore", "file", "key store backend: file or postgres")
	flags.StringVar(&clientFlags.PgDSN, "pg-dsn", "", "postgres DSN for the postgres key store")
	flags.StringVar(&clientFlags.MasterKeyEnv, "master-key-env", "WALLET_MASTER_KEY", "env var holding the base64 key store master key")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

func loadClientConfig(f ClientFlags) (*config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()
	if f.ConfigPath != "" {
		loaded, err := config.LoadClientConfig(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.RestURL != "" {
		cfg.Client.RestURL = f.RestURL
	}
	if f.KeyDir != "" {
		cfg.Client.KeyDir = f.KeyDir
	}
	return cfg, nil
}

func openKeyStore(f ClientFlags, cfg *config.ClientConfig) (keystore.KeyStore, error) {
	switch f.KeyStore {
	case "", "file":
		return keystore.NewFileKeyStore(cfg.Client.KeyDir), nil
	case "postgres":
		if f.PgDSN == "" {
			return nil, fmt.Errorf("--pg-dsn is required for the postgres key store")
		}
		masterKey := os.Getenv(f.MasterKeyEnv)
		if masterKey == "" {
			return nil, fmt.Errorf("%s is not set", f.MasterKeyEnv)
		}
		ks, err := keystore.OpenPgKeyStore(f.PgDSN, masterKey)
		if err != nil {
			return nil, err
		}
		return ks, nil
	}
	return nil, fmt.Errorf("unknown key store %q", f.KeyStore)
}

// newWalletClient assembles config, key store and REST gateway
func newWalletClient(f ClientFlags) (*client.WalletClient, *config.ClientConfig, error) {
	cfg, err := loadClientConfig(f)
	if err != nil {
		return nil, nil, err
	}
	family, err := cfg.BuildFamily()
	if err != nil {
		return nil, nil, err
	}
	keys, err := openKeyStore(f, cfg)
	if err != nil {
		return nil, nil, err
	}
	gateway := client.NewRESTGateway(cfg.Client)
	return client.NewWalletClient(family, keys, gateway), cfg, nil
}
