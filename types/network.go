package types

// Network identifies a supported chain deployment of the token.
type Network string

const (
	NetworkBSCMainnet Network = "bsc-mainnet"
	NetworkBSCTestnet Network = "bsc-testnet" // testnet
)

// NetworkDefaults is the endpoint used when no explicit override is given.
type NetworkDefaults struct {
	RPCUrl   string
	Contract string
}

var networkDefaults = map[Network]NetworkDefaults{
	NetworkBSCMainnet: {
		RPCUrl:   "https://bsc-dataseed3.binance.org",
		Contract: "0x6aa91cbfe045f9d154050226fcc830ddba886ced",
	},
	NetworkBSCTestnet: {
		RPCUrl:   "https://data-seed-prebsc-1-s1.binance.org:8545",
		Contract: "0xffe5548b5c3023b3277c1a6f24ac6382a0087db5",
	},
}

// Defaults returns the default endpoint of n.
func (n Network) Defaults() (NetworkDefaults, bool) {
	d, ok := networkDefaults[n]
	return d, ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkBSCTestnet
}

func (n Network) String() string {
	return string(n)
}
