// Package report renders the human readable progress of a disbursement run.
// The line format is for operators, not for machines; structured events go
// through the logger package.
package report

import (
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/disburse/types"
	"github.com/vitwit/disburse/utils"
)

const (
	good = "\x1b[35;01mGOOD\x1b[0m"
	fail = "\x1b[31;01mFAIL\x1b[0m"
)

// Reporter receives one call per visible step of a run.
type Reporter interface {
	Chunk(index int, entries int)
	Balance(index int, addr common.Address, balance *big.Int)
	Minting(amount *big.Int)
	Sending(from common.Address)
	Submitted(tx types.TransactionResult, entry types.Entry)
	Waiting(d time.Duration)
	Outcome(index int, outcome types.SettlementOutcome)
}

type NoopReporter struct{}

func (NoopReporter) Chunk(int, int)                                 {}
func (NoopReporter) Balance(int, common.Address, *big.Int)          {}
func (NoopReporter) Minting(*big.Int)                               {}
func (NoopReporter) Sending(common.Address)                         {}
func (NoopReporter) Submitted(types.TransactionResult, types.Entry) {}
func (NoopReporter) Waiting(time.Duration)                          {}
func (NoopReporter) Outcome(int, types.SettlementOutcome)           {}

// WriterReporter prints report lines to an io.Writer.
type WriterReporter struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewWriterReporter prints to w; color enables ANSI status markers.
func NewWriterReporter(w io.Writer, color bool) *WriterReporter {
	return &WriterReporter{w: w, color: color}
}

func (r *WriterReporter) Chunk(index int, entries int) {
	r.printf("Chunk index(start from 0): %d, entries: %d\n", index, entries)
}

func (r *WriterReporter) Balance(index int, addr common.Address, balance *big.Int) {
	r.printf("Got balance nth: %d, addr: %s, amount: %s\n", index, types.FormatAddress(addr), balance)
}

func (r *WriterReporter) Minting(amount *big.Int) {
	r.printf("=> Minting: %s\n", utils.FormatAmount(amount))
}

func (r *WriterReporter) Sending(from common.Address) {
	r.printf("=> %s\n", r.bold("Sending from: "+types.FormatAddress(from)))
}

func (r *WriterReporter) Submitted(tx types.TransactionResult, entry types.Entry) {
	r.printf("=> [ Entry-%d ], Amount: %s, SendTo: %s, Nonce: %d, TxHash: %s\n",
		tx.EntryIndex,
		utils.FormatAmount(entry.Amount),
		types.FormatAddress(entry.Recipient),
		tx.Nonce,
		tx.TxHash.Hex(),
	)
}

func (r *WriterReporter) Waiting(d time.Duration) {
	r.printf("=> %s\n", r.bold(fmt.Sprintf("Sleep %s, and check on-chain results...", d)))
}

func (r *WriterReporter) Outcome(index int, o types.SettlementOutcome) {
	r.printf("=> Result-%d: %s, Amount: %s, BalanceDiff: %s, NewBalance: %s, OldBalance: %s, Receiver: %s\n",
		index,
		r.status(o.Status),
		utils.FormatAmount(o.Expected),
		utils.FormatAmount(o.Delta),
		utils.FormatAmount(o.Balance),
		utils.FormatAmount(o.PreBalance),
		types.FormatAddress(o.Recipient),
	)
}

func (r *WriterReporter) status(s types.SettlementStatus) string {
	switch {
	case s == types.StatusSettled && r.color:
		return good
	case s == types.StatusSettled:
		return "GOOD"
	case r.color:
		return fail
	default:
		return "FAIL"
	}
}

func (r *WriterReporter) bold(s string) string {
	if !r.color {
		return s
	}
	return "\x1b[37;1m" + s + "\x1b[0m"
}

func (r *WriterReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}
