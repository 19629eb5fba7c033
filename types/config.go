package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads "5s" style strings from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// Config is the configuration of one disbursement run.
type Config struct {
	Network  Network `json:"network" validate:"required,oneof=bsc-mainnet bsc-testnet"`
	RPCUrl   string  `json:"rpcUrl" validate:"required,url"`
	Contract string  `json:"contract" validate:"required,eth_addr"`

	LogLevel    string `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Pushgateway string `json:"pushgateway,omitempty" validate:"omitempty,url"`

	// Wait between the failed and the single retried balance query.
	SnapshotRetryDelay Duration `json:"snapshotRetryDelay,omitempty"`
	// Wait between a mint and the confirmation balance query.
	MintSettleDelay Duration `json:"mintSettleDelay,omitempty"`
	// Wait between the last transfer of a batch and the first settlement check.
	SettlementDelay Duration `json:"settlementDelay,omitempty"`
	// Wait between two settlement checks of the same recipient.
	SettlementRetryDelay Duration `json:"settlementRetryDelay,omitempty"`
	// Extra settlement checks after the first mismatch. Unset selects the
	// default, zero checks each recipient once.
	SettlementRetries *int `json:"settlementRetries,omitempty" validate:"omitempty,min=0"`

	RPCTimeout Duration `json:"rpcTimeout,omitempty"`
	// Requests per second allowed against the RPC node, zero disables limiting.
	RPCRateLimit float64 `json:"rpcRateLimit,omitempty" validate:"min=0"`
}

const (
	DefaultSnapshotRetryDelay   = 200 * time.Millisecond
	DefaultMintSettleDelay      = 5 * time.Second
	DefaultSettlementDelay      = 10 * time.Second
	DefaultSettlementRetryDelay = 3 * time.Second
	DefaultSettlementRetries    = 2
	DefaultRPCTimeout           = 30 * time.Second
)

// WithDefaults returns a copy of c with the network endpoint and every unset
// timing filled in.
func (c Config) WithDefaults() Config {
	if c.Network == "" {
		c.Network = NetworkBSCMainnet
	}
	if d, ok := c.Network.Defaults(); ok {
		if c.RPCUrl == "" {
			c.RPCUrl = d.RPCUrl
		}
		if c.Contract == "" {
			c.Contract = d.Contract
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SnapshotRetryDelay <= 0 {
		c.SnapshotRetryDelay = Duration(DefaultSnapshotRetryDelay)
	}
	if c.MintSettleDelay <= 0 {
		c.MintSettleDelay = Duration(DefaultMintSettleDelay)
	}
	if c.SettlementDelay <= 0 {
		c.SettlementDelay = Duration(DefaultSettlementDelay)
	}
	if c.SettlementRetryDelay <= 0 {
		c.SettlementRetryDelay = Duration(DefaultSettlementRetryDelay)
	}
	if c.SettlementRetries == nil {
		retries := DefaultSettlementRetries
		c.SettlementRetries = &retries
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = Duration(DefaultRPCTimeout)
	}
	return c
}
