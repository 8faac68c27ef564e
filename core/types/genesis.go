package types

import "github.com/seloria/seloria/core/crypto"

// GenesisBalance seeds one account's native-token balance at genesis.
type GenesisBalance struct {
	Pubkey  crypto.PublicKey
	Balance uint64
}

// GenesisConfig is the chain's starting state, loaded once at node
// startup and hashed into height-0's state_root, per spec.md §3 and §6.
type GenesisConfig struct {
	ChainID         uint64
	Timestamp       uint64
	InitialBalances []GenesisBalance
	TrustedIssuers  []crypto.PublicKey
	Validators      []crypto.PublicKey
}
