package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisburseError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("message carries op, line, address and cause", func(t *testing.T) {
		err := &DisburseError{
			Code:    ErrChainCallFailed,
			Op:      "balanceOf",
			Message: "chain call failed",
			Line:    7,
			Address: "0x1111111111111111111111111111111111111111",
			Err:     cause,
		}
		assert.Equal(t,
			"balanceOf: chain call failed (line 7) [0x1111111111111111111111111111111111111111]: connection refused",
			err.Error())
	})

	t.Run("unwraps to the cause", func(t *testing.T) {
		err := fmt.Errorf("chunk 0: %w", ChainCallFailed("transfer", cause))
		assert.ErrorIs(t, err, cause)
		assert.True(t, IsCode(err, ErrChainCallFailed))
		assert.False(t, IsCode(err, ErrInvalidEntry))
		assert.False(t, IsCode(cause, ErrChainCallFailed))
	})

	t.Run("only settlement mismatches are recorded", func(t *testing.T) {
		for _, code := range []string{ErrInvalidEntry, ErrChainCallFailed, ErrInsufficientSupply, ErrConfigError} {
			assert.True(t, (&DisburseError{Code: code}).IsFatal(), code)
		}
		assert.False(t, (&DisburseError{Code: ErrSettlementMismatch}).IsFatal())
	})

	t.Run("invalid entry names the line", func(t *testing.T) {
		err := InvalidEntry(3, "0x12,1", errors.New("address must be 42 characters long"))
		assert.Equal(t, ErrInvalidEntry, err.Code)
		assert.Equal(t, 3, err.Line)
		assert.Contains(t, err.Error(), `"0x12,1"`)
		assert.Contains(t, err.Error(), "(line 3)")
	})
}

func TestSnapshot(t *testing.T) {
	a := common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	b := common.HexToAddress("0xbbbb000000000000000000000000000000000002")

	snap := NewSnapshot(3)
	snap.Record(a, big.NewInt(10))
	snap.Record(b, big.NewInt(20))
	snap.Record(a, big.NewInt(10))

	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 2, snap.Addresses())
	assert.Equal(t, int64(10), snap.At(0).Int64())
	assert.Equal(t, int64(20), snap.At(1).Int64())
	assert.Equal(t, int64(10), snap.At(2).Int64())
	assert.Nil(t, snap.At(3))
	assert.Nil(t, snap.At(-1))

	pre, ok := snap.PreBalance(b)
	require.True(t, ok)
	assert.Equal(t, int64(20), pre.Int64())

	_, ok = snap.PreBalance(common.Address{})
	assert.False(t, ok)

	t.Run("recorded values are copies", func(t *testing.T) {
		v := big.NewInt(5)
		s := NewSnapshot(1)
		s.Record(a, v)
		v.SetInt64(6)
		assert.Equal(t, int64(5), s.At(0).Int64())
	})
}

func TestRunResult(t *testing.T) {
	r := &RunResult{Batches: []BatchResult{
		{Transactions: make([]TransactionResult, 50)},
		{Transactions: make([]TransactionResult, 3)},
	}}
	assert.Equal(t, 53, r.Submitted())
	assert.True(t, SettlementOutcome{Status: StatusSettled}.Settled())
	assert.False(t, SettlementOutcome{Status: StatusFailed}.Settled())
}

func TestFormatAddress(t *testing.T) {
	addr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", FormatAddress(addr))
}

func TestNetwork(t *testing.T) {
	d, ok := NetworkBSCTestnet.Defaults()
	require.True(t, ok)
	assert.Equal(t, "https://data-seed-prebsc-1-s1.binance.org:8545", d.RPCUrl)
	assert.True(t, NetworkBSCTestnet.IsTestnet())
	assert.False(t, NetworkBSCMainnet.IsTestnet())

	_, ok = Network("base").Defaults()
	assert.False(t, ok)
}

func TestConfigWithDefaults(t *testing.T) {
	t.Run("explicit endpoint wins", func(t *testing.T) {
		cfg := Config{
			Network:  NetworkBSCTestnet,
			RPCUrl:   "http://127.0.0.1:8545",
			Contract: "0x1111111111111111111111111111111111111111",
		}.WithDefaults()

		assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCUrl)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Contract)
	})

	t.Run("timings keep explicit values", func(t *testing.T) {
		cfg := Config{SettlementDelay: Duration(time.Second)}.WithDefaults()
		assert.Equal(t, time.Second, cfg.SettlementDelay.Std())
		assert.Equal(t, DefaultSettlementRetryDelay, cfg.SettlementRetryDelay.Std())
	})
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "1m30s", "b": 1000000}`), &v))
	assert.Equal(t, 90*time.Second, v.A.Std())
	assert.Equal(t, time.Millisecond, v.B.Std())

	out, err := json.Marshal(Duration(3 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(out))

	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}
