package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	GenesisFile    string `toml:"GenesisFile"`
	EventIndexPath string `toml:"EventIndexPath"`
	Environment    string `toml:"Environment"`

	RPC       RPC       `toml:"rpc"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	AuthEnabled bool `toml:"AuthEnabled"`
	// JWTSecretEnv names the environment variable holding the HS256 secret.
	JWTSecretEnv          string  `toml:"JWTSecretEnv"`
	JWTIssuer             string  `toml:"JWTIssuer"`
	JWTAudience           string  `toml:"JWTAudience"`
	RequestsPerMinute     float64 `toml:"RequestsPerMinute"`
	Burst                 int     `toml:"Burst"`
	TrustProxyHeaders     bool    `toml:"TrustProxyHeaders"`
	ReadHeaderTimeoutSecs int     `toml:"ReadHeaderTimeoutSecs"`
}

type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type Telemetry struct {
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Traces      bool              `toml:"Traces"`
	Metrics     bool              `toml:"Metrics"`
	SampleRatio float64           `toml:"SampleRatio"`
	Headers     map[string]string `toml:"Headers"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		RPCAddress:     "127.0.0.1:8080",
		DataDir:        "./gig-data",
		EventIndexPath: "",
		Environment:    "local",
		RPC: RPC{
			JWTSecretEnv:          "GIG_RPC_JWT_SECRET",
			RequestsPerMinute:     600,
			Burst:                 50,
			ReadHeaderTimeoutSecs: 10,
		},
		Logging: Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 7, MaxAgeDays: 30},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if _, _, err := net.SplitHostPort(c.RPCAddress); err != nil {
		return fmt.Errorf("RPCAddress: %w", err)
	}
	if c.RPC.AuthEnabled && strings.TrimSpace(c.RPC.JWTSecretEnv) == "" {
		return fmt.Errorf("rpc: JWTSecretEnv required when AuthEnabled")
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}

// JWTSecret resolves the RPC signing secret from the environment.
func (c *Config) JWTSecret() (string, error) {
	if !c.RPC.AuthEnabled {
		return "", nil
	}
	secret := strings.TrimSpace(os.Getenv(c.RPC.JWTSecretEnv))
	if secret == "" {
		return "", fmt.Errorf("rpc: environment variable %s is empty", c.RPC.JWTSecretEnv)
	}
	return secret, nil
}

// LedgerPath is the LevelDB directory under DataDir.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
