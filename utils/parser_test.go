package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/disburse/types"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

func TestParseEntries(t *testing.T) {
	t.Run("parses lines in order", func(t *testing.T) {
		input := addrA + ",1.5\n" + addrB + ",2\n"

		entries, err := ParseEntries(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, 1, entries[0].Line)
		assert.Equal(t, common.HexToAddress(addrA), entries[0].Recipient)
		assert.Equal(t, "1500000000000000000", entries[0].Amount.String())

		assert.Equal(t, 2, entries[1].Line)
		assert.Equal(t, common.HexToAddress(addrB), entries[1].Recipient)
		assert.Equal(t, "2000000000000000000", entries[1].Amount.String())
	})

	t.Run("removes all whitespace and skips blank lines", func(t *testing.T) {
		input := "\n  " + addrA + " , 1 . 25 \r\n\t\n" + addrB + ",\t3\n   \n"

		entries, err := ParseEntries(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, 2, entries[0].Line)
		assert.Equal(t, "1250000000000000000", entries[0].Amount.String())
		assert.Equal(t, 4, entries[1].Line)
	})

	t.Run("keeps duplicate recipients as separate entries", func(t *testing.T) {
		input := addrA + ",3\n" + addrA + ",2\n"

		entries, err := ParseEntries(strings.NewReader(input))
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("empty input", func(t *testing.T) {
		entries, err := ParseEntries(strings.NewReader("\n\n"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	invalid := []struct {
		name string
		line string
	}{
		{"missing amount", addrA},
		{"too many fields", addrA + ",1,2"},
		{"bad address", "0x123,1"},
		{"address without prefix", strings.TrimPrefix(addrA, "0x") + "00,1"},
		{"negative amount", addrA + ",-1"},
		{"non numeric amount", addrA + ",ten"},
		{"amount beyond uint256", addrA + ",1e80"},
		{"huge exponent", addrA + ",1e10000000"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			input := addrB + ",1\n" + tc.line + "\n"

			_, err := ParseEntries(strings.NewReader(input))
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrInvalidEntry))

			var de *types.DisburseError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, 2, de.Line)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestLoadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.txt")
	require.NoError(t, os.WriteFile(path, []byte(addrA+",1\n"), 0o600))

	entries, err := LoadEntries(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = LoadEntries(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	t.Run("fills network and timing defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{}`))
		require.NoError(t, err)

		assert.Equal(t, types.NetworkBSCMainnet, cfg.Network)
		assert.Equal(t, "https://bsc-dataseed3.binance.org", cfg.RPCUrl)
		assert.Equal(t, "0x6aa91cbfe045f9d154050226fcc830ddba886ced", cfg.Contract)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 200*time.Millisecond, cfg.SnapshotRetryDelay.Std())
		assert.Equal(t, 5*time.Second, cfg.MintSettleDelay.Std())
		assert.Equal(t, 10*time.Second, cfg.SettlementDelay.Std())
		assert.Equal(t, 3*time.Second, cfg.SettlementRetryDelay.Std())
		assert.Equal(t, 2, *cfg.SettlementRetries)
		assert.Equal(t, 30*time.Second, cfg.RPCTimeout.Std())
	})

	t.Run("testnet with overrides", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{
			"network": "bsc-testnet",
			"rpcUrl": "http://localhost:8545",
			"settlementDelay": "1s",
			"settlementRetries": 4,
			"rpcRateLimit": 10
		}`))
		require.NoError(t, err)

		assert.Equal(t, types.NetworkBSCTestnet, cfg.Network)
		assert.Equal(t, "http://localhost:8545", cfg.RPCUrl)
		assert.Equal(t, "0xffe5548b5c3023b3277c1a6f24ac6382a0087db5", cfg.Contract)
		assert.Equal(t, time.Second, cfg.SettlementDelay.Std())
		assert.Equal(t, 4, *cfg.SettlementRetries)
		assert.Equal(t, 10.0, cfg.RPCRateLimit)
	})

	t.Run("keeps zero settlement retries", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"settlementRetries": 0}`))
		require.NoError(t, err)

		require.NotNil(t, cfg.SettlementRetries)
		assert.Equal(t, 0, *cfg.SettlementRetries)
	})

	invalid := map[string]string{
		"malformed json":   `{`,
		"unknown network":  `{"network": "polygon"}`,
		"bad contract":     `{"contract": "0x1234"}`,
		"bad rpc url":      `{"rpcUrl": "not a url"}`,
		"bad log level":    `{"logLevel": "loud"}`,
		"bad duration":     `{"settlementDelay": "soon"}`,
		"negative limit":   `{"rpcRateLimit": -1}`,
		"negative retries": `{"settlementRetries": -1}`,
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(raw))
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrConfigError))
		})
	}
}

func TestDecodeConfigKeepsUnsetFields(t *testing.T) {
	cfg, err := DecodeConfig([]byte(`{"contract": "` + addrA + `"}`))
	require.NoError(t, err)

	assert.Empty(t, cfg.Network)
	assert.Empty(t, cfg.RPCUrl)
	assert.Equal(t, addrA, cfg.Contract)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"network": "bsc-testnet"}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Network.IsTestnet())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}
