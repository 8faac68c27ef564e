package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seloria/seloria/core/crypto"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func seedHex(t *testing.T) (string, crypto.KeyPair) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	var seed [32]byte
	copy(seed[:], kp.Public[:])
	derived := crypto.KeyPairFromSeed(seed)
	return hex.EncodeToString(seed[:]), derived
}

func TestLoadParsesFullConfig(t *testing.T) {
	validatorSeed, validatorKP := seedHex(t)
	agent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	contents := fmt.Sprintf(`{
		"chain_id": 7,
		"data_dir": "/tmp/seloria-data",
		"rpc_addr": ":9090",
		"enable_ws": true,
		"round_time_ms": 1500,
		"max_block_txs": 500,
		"mempool_max_size": 2000,
		"mempool_max_per_sender": 20,
		"validator_key": "%s",
		"genesis": {
			"timestamp": 1000,
			"initial_balances": [{"pubkey": "%s", "balance": 10000}],
			"trusted_issuers": [],
			"validators": ["%s"]
		},
		"validator_endpoints": [{"pubkey": "%s", "address": "http://127.0.0.1:9090"}]
	}`, validatorSeed, agent.Public.String(), validatorKP.Public.String(), validatorKP.Public.String())

	path := writeTestConfig(t, contents)
	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), cfg.ChainID)
	assert.Equal(t, "/tmp/seloria-data", cfg.DataDir)
	assert.True(t, cfg.EnableWS)
	assert.Equal(t, uint64(1500), cfg.RoundTimeMs)

	kp, err := cfg.ValidatorKeyPair()
	require.NoError(t, err)
	assert.Equal(t, validatorKP.Public, kp.Public)

	issuer, err := cfg.IssuerKeyPair()
	require.NoError(t, err)
	assert.Nil(t, issuer)

	gc, err := cfg.GenesisConfig()
	require.NoError(t, err)
	require.Len(t, gc.InitialBalances, 1)
	assert.Equal(t, agent.Public, gc.InitialBalances[0].Pubkey)
	assert.Equal(t, uint64(10000), gc.InitialBalances[0].Balance)
	require.Len(t, gc.Validators, 1)
	assert.Equal(t, validatorKP.Public, gc.Validators[0])

	endpoints, err := cfg.ValidatorEndpoints()
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "http://127.0.0.1:9090", endpoints[0].Address)
}

func TestLoadMissingValidatorKeyErrorsOnAccess(t *testing.T) {
	path := writeTestConfig(t, `{"chain_id": 1, "data_dir": "./d", "rpc_addr": ":8080"}`)
	cfg, err := Load(nil, path)
	require.NoError(t, err)

	_, err = cfg.ValidatorKeyPair()
	assert.Error(t, err)
}

func TestLoadRequiresConfigPath(t *testing.T) {
	_, err := Load(nil, "")
	assert.Error(t, err)
}

func TestFlagOverridesConfigFile(t *testing.T) {
	path := writeTestConfig(t, `{"chain_id": 1, "data_dir": "./original", "rpc_addr": ":8080"}`)
	cfg, err := Load([]string{"--data-dir", "./overridden"}, path)
	require.NoError(t, err)
	assert.Equal(t, "./overridden", cfg.DataDir)
}

func TestMarshalExampleProducesValidJSON(t *testing.T) {
	b, err := MarshalExample()
	require.NoError(t, err)
	assert.Contains(t, string(b), "\"chain_id\"")
}
