package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Decimals is the number of fractional digits of the token's display unit.
const Decimals = 18

// BatchSize is the maximum number of entries processed per chunk. It bounds
// the nonce reservation window and the RPC burst of one chunk.
const BatchSize = 50

// Entry is a single disbursement line: who receives how much, in minimal units.
type Entry struct {
	// Line is the 1-based line of the entries source the entry was read from.
	Line      int
	Recipient common.Address
	Amount    *big.Int
}

// Expectation is the total amount a recipient should receive in one batch.
// Duplicate recipients of a batch are folded into one expectation.
type Expectation struct {
	Recipient common.Address
	Amount    *big.Int
	// Entries counts the batch entries folded into this expectation.
	Entries int
}

// TransactionResult is produced for every submitted transfer.
type TransactionResult struct {
	EntryIndex int
	Nonce      uint64
	TxHash     common.Hash
}

// SettlementStatus classifies a recipient after reconciliation.
type SettlementStatus string

const (
	StatusSettled SettlementStatus = "settled"
	StatusFailed  SettlementStatus = "failed"
)

// SettlementOutcome is the reconciliation result for one aggregated recipient.
type SettlementOutcome struct {
	Recipient  common.Address
	Expected   *big.Int
	Delta      *big.Int
	Balance    *big.Int
	PreBalance *big.Int
	Attempts   int
	Status     SettlementStatus
}

// Settled reports whether the observed delta matched the expectation.
func (o SettlementOutcome) Settled() bool {
	return o.Status == StatusSettled
}

// BatchResult folds everything one chunk produced.
type BatchResult struct {
	Index        int
	Transactions []TransactionResult
	Outcomes     []SettlementOutcome
	// Minted is the amount minted before the chunk's transfers, zero when the
	// funding account already held enough.
	Minted   *big.Int
	Failures int
}

// RunResult is the outcome of a whole disbursement run.
type RunResult struct {
	RunID    string
	Batches  []BatchResult
	Failures int
}

// Submitted returns the number of transfers submitted across all batches.
func (r *RunResult) Submitted() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Transactions)
	}
	return n
}

// Snapshot holds the balances captured before a batch's transfers run.
// Balances are address scoped, so entries sharing a recipient share a value.
type Snapshot struct {
	entries   []common.Address
	byAddress map[common.Address]*big.Int
}

func NewSnapshot(size int) *Snapshot {
	return &Snapshot{
		entries:   make([]common.Address, 0, size),
		byAddress: make(map[common.Address]*big.Int, size),
	}
}

// Record appends the pre-balance of the next entry. A later value for an
// address replaces the earlier one.
func (s *Snapshot) Record(addr common.Address, balance *big.Int) {
	s.entries = append(s.entries, addr)
	s.byAddress[addr] = new(big.Int).Set(balance)
}

// At returns the pre-balance associated with the entry at index i.
func (s *Snapshot) At(i int) *big.Int {
	if i < 0 || i >= len(s.entries) {
		return nil
	}
	return s.byAddress[s.entries[i]]
}

// PreBalance returns the captured balance of addr.
func (s *Snapshot) PreBalance(addr common.Address) (*big.Int, bool) {
	b, ok := s.byAddress[addr]
	return b, ok
}

// Len is the number of entries the snapshot covers.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Addresses is the number of distinct addresses captured.
func (s *Snapshot) Addresses() int {
	return len(s.byAddress)
}

// FormatAddress renders addr in its canonical lowercase 0x form.
func FormatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// Error codes
const (
	ErrInvalidEntry       = "INVALID_ENTRY"
	ErrChainCallFailed    = "CHAIN_CALL_FAILED"
	ErrInsufficientSupply = "INSUFFICIENT_SUPPLY"
	ErrSettlementMismatch = "SETTLEMENT_MISMATCH"
	ErrConfigError        = "CONFIG_ERROR"
)

// DisburseError carries a code plus enough context to diagnose a failure
// without re-running.
type DisburseError struct {
	Code    string `json:"code"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Address string `json:"address,omitempty"`
	Err     error  `json:"-"`
}

func (e *DisburseError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Address != "" {
		fmt.Fprintf(&b, " [%s]", e.Address)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DisburseError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error aborts the run. Settlement mismatches are
// recorded and only fail the run once every chunk has been processed.
func (e *DisburseError) IsFatal() bool {
	return e.Code != ErrSettlementMismatch
}

// ChainCallFailed wraps an RPC level failure of op.
func ChainCallFailed(op string, err error) *DisburseError {
	return &DisburseError{
		Code:    ErrChainCallFailed,
		Op:      op,
		Message: "chain call failed",
		Err:     err,
	}
}

// InvalidEntry reports a malformed line of the entries source.
func InvalidEntry(line int, raw string, err error) *DisburseError {
	return &DisburseError{
		Code:    ErrInvalidEntry,
		Op:      "parse entries",
		Message: fmt.Sprintf("invalid entry %q", raw),
		Line:    line,
		Err:     err,
	}
}

// IsCode reports whether err, or any error it wraps, is a DisburseError with code.
func IsCode(err error, code string) bool {
	var de *DisburseError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
