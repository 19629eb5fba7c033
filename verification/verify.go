// Package verification reconciles post-transfer balances against what each
// recipient of a batch was sent.
package verification

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/snapshot"
	"github.com/vitwit/disburse/types"
	"github.com/vitwit/disburse/utils"
)

// comparisonUnit is the granularity deltas are compared at, 10^15 minimal
// units or 0.001 token.
var comparisonUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)

// Aggregate folds entries into one expectation per recipient, in order of
// first appearance.
func Aggregate(entries []types.Entry) []types.Expectation {
	index := make(map[common.Address]int, len(entries))
	out := make([]types.Expectation, 0, len(entries))

	for _, e := range entries {
		if i, ok := index[e.Recipient]; ok {
			out[i].Amount.Add(out[i].Amount, e.Amount)
			out[i].Entries++
			continue
		}
		index[e.Recipient] = len(out)
		out = append(out, types.Expectation{
			Recipient: e.Recipient,
			Amount:    new(big.Int).Set(e.Amount),
			Entries:   1,
		})
	}
	return out
}

// Matches reports whether delta equals expected once both are truncated to
// the comparison unit.
func Matches(expected, delta *big.Int) bool {
	e := new(big.Int).Div(expected, comparisonUnit)
	d := new(big.Int).Div(delta, comparisonUnit)
	return e.Cmp(d) == 0
}

// Verifier checks that every expectation of a batch landed on chain.
type Verifier struct {
	querier *snapshot.Querier
	delay   time.Duration
	policy  utils.RetryPolicy
	sleep   utils.Sleeper

	reporter report.Reporter
	logger   logger.Logger
	metrics  metrics.Recorder
}

// NewVerifier builds a Verifier that waits delay once per batch and then
// checks each recipient up to policy.MaxAttempts times, policy.Delay apart.
func NewVerifier(
	querier *snapshot.Querier,
	delay time.Duration,
	policy utils.RetryPolicy,
	sleep utils.Sleeper,
	reporter report.Reporter,
	log logger.Logger,
	rec metrics.Recorder,
) *Verifier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = utils.Sleep
	}
	if reporter == nil {
		reporter = report.NoopReporter{}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Verifier{
		querier:  querier,
		delay:    delay,
		policy:   policy,
		sleep:    sleep,
		reporter: reporter,
		logger:   log,
		metrics:  rec,
	}
}

// Verify returns one outcome per expectation. A mismatch that survives every
// check is recorded as StatusFailed; only a balance query that keeps failing
// is returned as an error.
func (v *Verifier) Verify(
	ctx context.Context,
	expectations []types.Expectation,
	snap *types.Snapshot,
) ([]types.SettlementOutcome, error) {
	if len(expectations) == 0 {
		return nil, nil
	}

	v.reporter.Waiting(v.delay)
	if err := v.sleep(ctx, v.delay); err != nil {
		return nil, err
	}

	outcomes := make([]types.SettlementOutcome, 0, len(expectations))
	for i, exp := range expectations {
		outcome, err := v.check(ctx, exp, snap)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
		v.reporter.Outcome(i, outcome)
	}
	return outcomes, nil
}

func (v *Verifier) check(
	ctx context.Context,
	exp types.Expectation,
	snap *types.Snapshot,
) (types.SettlementOutcome, error) {
	pre, ok := snap.PreBalance(exp.Recipient)
	if !ok {
		pre = new(big.Int)
	}

	outcome := types.SettlementOutcome{
		Recipient:  exp.Recipient,
		Expected:   exp.Amount,
		PreBalance: pre,
		Status:     types.StatusFailed,
	}

	for attempt := 1; attempt <= v.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			v.metrics.IncCounter(metrics.EventSettleRecheck, nil)
			if err := v.sleep(ctx, v.policy.Delay); err != nil {
				return outcome, err
			}
		}

		balance, err := v.querier.QueryBalance(ctx, exp.Recipient)
		if err != nil {
			return outcome, err
		}

		outcome.Attempts = attempt
		outcome.Balance = balance
		outcome.Delta = new(big.Int).Sub(balance, pre)

		if Matches(exp.Amount, outcome.Delta) {
			outcome.Status = types.StatusSettled
			v.metrics.IncCounter(metrics.EventSettled, nil)
			v.metrics.AddAmount(metrics.EventSettled, outcome.Delta)
			return outcome, nil
		}

		v.logger.Debug("settlement not visible yet", map[string]any{
			"recipient": types.FormatAddress(exp.Recipient),
			"expected":  exp.Amount.String(),
			"delta":     outcome.Delta.String(),
			"attempt":   attempt,
		})
	}

	v.metrics.IncCounter(metrics.EventSettleFailed, nil)
	v.logger.Warn("settlement mismatch", map[string]any{
		"recipient": types.FormatAddress(exp.Recipient),
		"expected":  exp.Amount.String(),
		"delta":     outcome.Delta.String(),
		"attempts":  outcome.Attempts,
	})
	return outcome, nil
}

// Failures counts the outcomes that did not settle.
func Failures(outcomes []types.SettlementOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Settled() {
			n++
		}
	}
	return n
}
