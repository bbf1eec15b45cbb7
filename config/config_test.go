package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "signet", cfg.Chain)
	require.Equal(t, ":6272", cfg.ListenAddress)
	require.Equal(t, "./cube-data", cfg.DataDir)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// The written file loads back identically.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.toml")
	body := `
ListenAddress = ":7000"
StatusAddress = ":9000"
DataDir = "/var/lib/cube"
Chain = "mainnet"
LogEnv = "production"

[Bitcoind]
URL = "http://10.0.0.5:8332"
User = "rpcuser"
Password = "rpcpass"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.ListenAddress)
	require.Equal(t, "mainnet", cfg.Chain)
	require.Equal(t, "http://10.0.0.5:8332", cfg.Bitcoind.URL)
	require.Equal(t, "rpcuser", cfg.Bitcoind.User)
}

func TestLoadDefaultsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.toml")
	body := `
ListenAddress = ":7000"

[Bitcoind]
URL = "http://127.0.0.1:38332"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "signet", cfg.Chain)
	require.Equal(t, "./cube-data", cfg.DataDir)
}

func TestValidateRejectsBadChain(t *testing.T) {
	err := Validate(&Config{
		ListenAddress: ":7000",
		Chain:         "regtest",
		Bitcoind:      Bitcoind{URL: "http://127.0.0.1:38332"},
	})
	require.Error(t, err)
}

func TestValidateRejectsMissingBitcoindURL(t *testing.T) {
	err := Validate(&Config{
		ListenAddress: ":7000",
		Chain:         "signet",
	})
	require.Error(t, err)
}
