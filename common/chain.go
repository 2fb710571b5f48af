package common

import "strings"

// ChainID identifies the ledger cluster the escrow program is deployed on.
type ChainID string

const (
	ChainSolanaMainnet ChainID = "solana-mainnet"
	ChainSolanaDevnet  ChainID = "solana-devnet"
	ChainLocalnet      ChainID = "localnet"
)

var supportedChains = map[ChainID]struct{}{
	ChainSolanaMainnet: {},
	ChainSolanaDevnet:  {},
	ChainLocalnet:      {},
}

// ParseChainID normalizes the given chain name, accepting the short cluster names as well.
func ParseChainID(s string) ChainID {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "mainnet", "mainnet-beta":
		return ChainSolanaMainnet
	case "devnet":
		return ChainSolanaDevnet
	default:
		return ChainID(v)
	}
}

func (c ChainID) IsSupported() bool {
	_, ok := supportedChains[c]
	return ok
}

func (c ChainID) String() string {
	return string(c)
}
