// Package config loads the node's TOML configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Bitcoind holds the JSON-RPC credentials for the anchoring node.
type Bitcoind struct {
	URL      string `toml:"URL"`
	User     string `toml:"User"`
	Password string `toml:"Password"`
}

type Config struct {
	ListenAddress string   `toml:"ListenAddress"`
	StatusAddress string   `toml:"StatusAddress"`
	DataDir       string   `toml:"DataDir"`
	Chain         string   `toml:"Chain"`
	Bitcoind      Bitcoind `toml:"Bitcoind"`
	LogEnv        string   `toml:"LogEnv"`
	LogFile       string   `toml:"LogFile"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults first.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Chain) == "" {
		cfg.Chain = "signet"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./cube-data"
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":6272",
		StatusAddress: ":8080",
		DataDir:       "./cube-data",
		Chain:         "signet",
		Bitcoind: Bitcoind{
			URL:  "http://127.0.0.1:38332",
			User: "",
		},
		LogEnv: "development",
	}

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
