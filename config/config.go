package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezonai/simplewallet/logx"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRestURL        = "http://localhost:8008"
	DefaultSubmitAttempts = 3
	DefaultBackoffMs      = 200
	DefaultTimeoutMs      = 10000

	DefaultStoreType   = "leveldb"
	DefaultStoreDir    = "./data/state"
	DefaultListenAddr  = ":8008"
	DefaultMaxRequests = 50
	DefaultWindowMs    = 1000
	DefaultQueueSize   = 1024
)

// DefaultKeyDir is ~/.sawtooth/keys, the usual location of <user>.priv/.pub files
func DefaultKeyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".sawtooth", "keys")
	}
	return filepath.Join(home, ".sawtooth", "keys")
}

// DefaultClientConfig is used when no wallet.yml is given
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *ClientConfig) applyDefaults() {
	if c.Family.Name == "" {
		c.Family.Name = DefaultFamilyName
	}
	if c.Family.Version == "" {
		c.Family.Version = DefaultFamilyVersion
	}
	if c.Client.RestURL == "" {
		c.Client.RestURL = DefaultRestURL
	}
	if c.Client.KeyDir == "" {
		c.Client.KeyDir = DefaultKeyDir()
	}
	if c.Client.SubmitAttempts <= 0 {
		c.Client.SubmitAttempts = DefaultSubmitAttempts
	}
	if c.Client.BackoffMs <= 0 {
		c.Client.BackoffMs = DefaultBackoffMs
	}
	if c.Client.TimeoutMs <= 0 {
		c.Client.TimeoutMs = DefaultTimeoutMs
	}
}

// BuildFamily turns the configured name/version into a Family value
func (c *ClientConfig) BuildFamily() (Family, error) {
	return NewFamily(c.Family.Name, c.Family.Version)
}

// LoadClientConfig reads and parses a wallet.yml file
func LoadClientConfig(path string) (*ClientConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open client config: %w", err)
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("decode client config: %w", err)
	}
	cfgFile.Config.applyDefaults()
	logx.Debug("CONFIG", fmt.Sprintf("Loaded client config from %s: %+v", path, cfgFile.Config))
	return &cfgFile.Config, nil
}

// DefaultNodeConfig is used when no node.ini is given
func DefaultNodeConfig() *NodeConfig {
	cfg := &NodeConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *NodeConfig) applyDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = DefaultStoreType
	}
	if c.Store.Directory == "" {
		c.Store.Directory = DefaultStoreDir
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = DefaultMaxRequests
	}
	if c.RateLimit.WindowMs <= 0 {
		c.RateLimit.WindowMs = DefaultWindowMs
	}
	if c.Ledger.QueueSize <= 0 {
		c.Ledger.QueueSize = DefaultQueueSize
	}
}

// LoadNodeConfig reads the [store], [api], [ratelimit] and [ledger] sections of an .ini file
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load node config: %w", err)
	}
	nodeCfg := &NodeConfig{}
	sections := []struct {
		name string
		dst  interface{}
	}{
		{"store", &nodeCfg.Store},
		{"api", &nodeCfg.API},
		{"ratelimit", &nodeCfg.RateLimit},
		{"ledger", &nodeCfg.Ledger},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("map section [%s]: %w", s.name, err)
		}
	}
	nodeCfg.applyDefaults()
	return nodeCfg, nil
}
