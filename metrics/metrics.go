package metrics

import (
	"math/big"
	"time"
)

// Recorder receives run events. Labels are optional and unknown keys are ignored.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
	// AddAmount accumulates a token amount given in minimal units.
	AddAmount(name string, amount *big.Int)
}

// Event names shared by the engine.
const (
	EventChunk         = "chunk"
	EventBalanceQuery  = "balance_query"
	EventBalanceRetry  = "balance_retry"
	EventMint          = "mint"
	EventTransfer      = "transfer"
	EventSettled       = "settled"
	EventSettleFailed  = "settle_failed"
	EventSettleRecheck = "settle_recheck"
)
