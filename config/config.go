// Package config loads node configuration from a JSON file with pflag
// command-line overrides, following the teacher's main/params.go
// viper+pflag idiom (buildFlagSet/getViper), generalized from timestampvm's
// single vmID flag to the full field set spec.md §6 recognizes.
package config

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
)

// GenesisSpec mirrors spec.md §6's `genesis {timestamp, initial_balances,
// trusted_issuers, validators}` config block, in the JSON shapes a config
// file author writes (CB58 pubkey strings) rather than the binary types the chain
// uses internally.
type GenesisSpec struct {
	Timestamp       uint64         `json:"timestamp" mapstructure:"timestamp"`
	InitialBalances []BalanceEntry `json:"initial_balances" mapstructure:"initial_balances"`
	TrustedIssuers  []string       `json:"trusted_issuers" mapstructure:"trusted_issuers"`
	Validators      []string       `json:"validators" mapstructure:"validators"`
}

// BalanceEntry is one entry of genesis.initial_balances.
type BalanceEntry struct {
	Pubkey  string `json:"pubkey" mapstructure:"pubkey"`
	Balance uint64 `json:"balance" mapstructure:"balance"`
}

// ValidatorEndpointSpec mirrors one entry of validator_endpoints.
type ValidatorEndpointSpec struct {
	Pubkey  string `json:"pubkey" mapstructure:"pubkey"`
	Address string `json:"address" mapstructure:"address"`
}

// Config is the fully parsed node configuration, per spec.md §6's
// recognized field list.
type Config struct {
	ChainID                uint64                  `json:"chain_id" mapstructure:"chain_id"`
	DataDir                string                  `json:"data_dir" mapstructure:"data_dir"`
	RPCAddr                string                  `json:"rpc_addr" mapstructure:"rpc_addr"`
	EnableWS               bool                    `json:"enable_ws" mapstructure:"enable_ws"`
	RoundTimeMs            uint64                  `json:"round_time_ms" mapstructure:"round_time_ms"`
	MaxBlockTxs            int                     `json:"max_block_txs" mapstructure:"max_block_txs"`
	MempoolMaxSize         int                     `json:"mempool_max_size" mapstructure:"mempool_max_size"`
	MempoolMaxPerSender    int                     `json:"mempool_max_per_sender" mapstructure:"mempool_max_per_sender"`
	Genesis                GenesisSpec             `json:"genesis" mapstructure:"genesis"`
	ValidatorKey           string                  `json:"validator_key" mapstructure:"validator_key"`
	IssuerKey              string                  `json:"issuer_key" mapstructure:"issuer_key"`
	ValidatorEndpointSpecs []ValidatorEndpointSpec `json:"validator_endpoints" mapstructure:"validator_endpoints"`
	FaucetSecret           string                  `json:"faucet_secret" mapstructure:"faucet_secret"`
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("seloriad", flag.ContinueOnError)
	fs.String("config", "", "path to the node's JSON config file")
	fs.String("chain-id", "", "override config's chain_id")
	fs.String("data-dir", "", "override config's data_dir")
	fs.String("rpc-addr", "", "override config's rpc_addr")
	fs.Bool("enable-ws", false, "override config's enable_ws")
	return fs
}

// Load reads the JSON config file named by --config (or the configPath
// argument if non-empty, which takes precedence for programmatic callers
// such as tests), applies any pflag command-line overrides, and returns
// the parsed Config.
func Load(args []string, configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	fs := buildFlagSet()
	pf := pflag.NewFlagSet("seloriad", pflag.ContinueOnError)
	pf.AddGoFlagSet(fs)
	if err := pf.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if err := v.BindPFlags(pf); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	path := configPath
	if path == "" {
		path = v.GetString("config")
	}
	if path == "" {
		return nil, fmt.Errorf("no config file given (set --config or pass a path)")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := v.ReadConfig(f); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if s := v.GetString("chain-id"); s != "" {
		v.Set("chain_id", s)
	}
	if s := v.GetString("data-dir"); s != "" {
		v.Set("data_dir", s)
	}
	if s := v.GetString("rpc-addr"); s != "" {
		v.Set("rpc_addr", s)
	}
	if pf.Changed("enable-ws") {
		v.Set("enable_ws", v.GetBool("enable-ws"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// parseSeed decodes a hex-encoded 32-byte Ed25519 seed into a KeyPair.
func parseSeed(hexSeed string) (crypto.KeyPair, error) {
	raw, err := hex.DecodeString(hexSeed)
	if err != nil {
		return crypto.KeyPair{}, fmt.Errorf("decode seed: %w", err)
	}
	if len(raw) != 32 {
		return crypto.KeyPair{}, fmt.Errorf("seed must be 32 bytes, got %d", len(raw))
	}
	var seed [32]byte
	copy(seed[:], raw)
	return crypto.KeyPairFromSeed(seed), nil
}

// ValidatorKeyPair derives the node's validator key pair from
// ValidatorKey, required for every node since every node participates in
// signing.
func (c *Config) ValidatorKeyPair() (crypto.KeyPair, error) {
	if c.ValidatorKey == "" {
		return crypto.KeyPair{}, fmt.Errorf("validator_key is required")
	}
	return parseSeed(c.ValidatorKey)
}

// IssuerKeyPair derives the optional trusted-issuer key pair this node
// uses to serve POST /cert/issue. Returns (nil, nil) when issuer_key is
// unset, matching spec.md §6's "(if issuer key configured)".
func (c *Config) IssuerKeyPair() (*crypto.KeyPair, error) {
	if c.IssuerKey == "" {
		return nil, nil
	}
	kp, err := parseSeed(c.IssuerKey)
	if err != nil {
		return nil, err
	}
	return &kp, nil
}

// GenesisConfig converts the JSON-friendly GenesisSpec (CB58 pubkeys) into
// the binary types.GenesisConfig the chain state uses at InitGenesis.
func (c *Config) GenesisConfig() (*types.GenesisConfig, error) {
	balances := make([]types.GenesisBalance, len(c.Genesis.InitialBalances))
	for i, b := range c.Genesis.InitialBalances {
		pk, err := parsePubkey(b.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("genesis.initial_balances[%d]: %w", i, err)
		}
		balances[i] = types.GenesisBalance{Pubkey: pk, Balance: b.Balance}
	}
	issuers := make([]crypto.PublicKey, len(c.Genesis.TrustedIssuers))
	for i, s := range c.Genesis.TrustedIssuers {
		pk, err := parsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("genesis.trusted_issuers[%d]: %w", i, err)
		}
		issuers[i] = pk
	}
	validators := make([]crypto.PublicKey, len(c.Genesis.Validators))
	for i, s := range c.Genesis.Validators {
		pk, err := parsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("genesis.validators[%d]: %w", i, err)
		}
		validators[i] = pk
	}
	return &types.GenesisConfig{
		ChainID:         c.ChainID,
		Timestamp:       c.Genesis.Timestamp,
		InitialBalances: balances,
		TrustedIssuers:  issuers,
		Validators:      validators,
	}, nil
}

// ValidatorEndpoints parses ValidatorEndpointSpecs' CB58 pubkeys into
// ValidatorEndpointResolved values, which the caller converts to
// consensus.ValidatorEndpoint before handing them to consensus.NewNode.
func (c *Config) ValidatorEndpoints() ([]ValidatorEndpointResolved, error) {
	out := make([]ValidatorEndpointResolved, len(c.ValidatorEndpointSpecs))
	for i, ep := range c.ValidatorEndpointSpecs {
		pk, err := parsePubkey(ep.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("validator_endpoints[%d]: %w", i, err)
		}
		out[i] = ValidatorEndpointResolved{Pubkey: pk, Address: ep.Address}
	}
	return out, nil
}

// ValidatorEndpointResolved is a validator_endpoints entry with its pubkey
// already parsed, kept distinct from consensus.ValidatorEndpoint so this
// package has no import dependency on consensus.
type ValidatorEndpointResolved struct {
	Pubkey  crypto.PublicKey
	Address string
}

// parsePubkey decodes a CB58-encoded pubkey, the same encoding
// crypto.PublicKey.String() produces and the RPC routes accept in URL
// path segments.
func parsePubkey(cb58 string) (crypto.PublicKey, error) {
	return ids.FromString(cb58)
}

// MarshalExample returns an example config's JSON encoding, filled with
// the defaults below.
func MarshalExample() ([]byte, error) {
	example := Config{
		ChainID:             1,
		DataDir:             "./data",
		RPCAddr:             ":8080",
		EnableWS:            true,
		RoundTimeMs:         2000,
		MaxBlockTxs:         1000,
		MempoolMaxSize:      10000,
		MempoolMaxPerSender: 64,
	}
	return json.MarshalIndent(example, "", "  ")
}
