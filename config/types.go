package config

// FamilyConfig is the yaml form of a Family
type FamilyConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ClientSettings controls how the wallet client reaches the ledger
type ClientSettings struct {
	RestURL        string `yaml:"rest_url"`
	KeyDir         string `yaml:"key_dir"`
	SubmitAttempts int    `yaml:"submit_attempts"`
	BackoffMs      int    `yaml:"backoff_ms"`
	TimeoutMs      int    `yaml:"timeout_ms"`
}

// ClientConfig holds the configuration from wallet.yml
type ClientConfig struct {
	Family FamilyConfig   `yaml:"family"`
	Client ClientSettings `yaml:"client"`
}

// ConfigFile is the top-level structure for wallet.yml
type ConfigFile struct {
	Config ClientConfig `yaml:"config"`
}

type StoreConfig struct {
	Type      string `ini:"type"`
	Directory string `ini:"directory"`
	RedisAddr string `ini:"redis_addr"`
	RedisDB   int    `ini:"redis_db"`
}

type APIConfig struct {
	ListenAddr string `ini:"listen_addr"`
}

type RateLimitConfig struct {
	MaxRequests int `ini:"max_requests"`
	WindowMs    int `ini:"window_ms"`
}

type LedgerConfig struct {
	QueueSize int `ini:"queue_size"`
}

// NodeConfig is everything the dev ledger node reads from node.ini
type NodeConfig struct {
	Store     StoreConfig
	API       APIConfig
	RateLimit RateLimitConfig
	Ledger    LedgerConfig
}
