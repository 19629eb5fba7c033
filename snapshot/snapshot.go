// Package snapshot captures recipient balances before a batch is disbursed.
package snapshot

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/disburse/clients"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/types"
	"github.com/vitwit/disburse/utils"
)

// Querier reads balances with a bounded retry on RPC failure.
type Querier struct {
	client  clients.ChainClient
	policy  utils.RetryPolicy
	sleep   utils.Sleeper
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewQuerier builds a Querier. A nil sleeper selects the wall clock.
func NewQuerier(
	client clients.ChainClient,
	policy utils.RetryPolicy,
	sleep utils.Sleeper,
	log logger.Logger,
	rec metrics.Recorder,
) *Querier {
	if sleep == nil {
		sleep = utils.Sleep
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Querier{
		client:  client,
		policy:  policy,
		sleep:   sleep,
		logger:  log,
		metrics: rec,
	}
}

// QueryBalance returns the balance of addr. The last failure is returned once
// the policy is exhausted.
func (q *Querier) QueryBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance *big.Int
	err := q.policy.Do(ctx, q.sleep, func(int) error {
		b, err := q.client.BalanceOf(ctx, addr)
		if err != nil {
			return err
		}
		balance = b
		return nil
	}, func(attempt int, err error) {
		q.metrics.IncCounter(metrics.EventBalanceRetry, map[string]string{"status": "retry"})
		q.logger.Warn("balance query failed, retrying", map[string]any{
			"address": types.FormatAddress(addr),
			"attempt": attempt,
			"error":   err,
		})
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	q.metrics.IncCounter(metrics.EventBalanceQuery, map[string]string{"status": status})

	if err != nil {
		var de *types.DisburseError
		if !errors.As(err, &de) {
			de = types.ChainCallFailed(clients.OpBalanceOf, err)
		}
		if de.Address == "" {
			de.Address = types.FormatAddress(addr)
		}
		return nil, de
	}
	return balance, nil
}

// Capturer takes balance snapshots of batches.
type Capturer struct {
	querier  *Querier
	reporter report.Reporter
}

func NewCapturer(q *Querier, r report.Reporter) *Capturer {
	if r == nil {
		r = report.NoopReporter{}
	}
	return &Capturer{querier: q, reporter: r}
}

// Capture reads the pre-balance of every entry's recipient. Each distinct
// address is queried once; duplicates reuse the captured value. Any query that
// still fails after its retry aborts the capture.
func (c *Capturer) Capture(ctx context.Context, entries []types.Entry) (*types.Snapshot, error) {
	snap := types.NewSnapshot(len(entries))

	for i, entry := range entries {
		if balance, ok := snap.PreBalance(entry.Recipient); ok {
			snap.Record(entry.Recipient, balance)
			continue
		}

		balance, err := c.querier.QueryBalance(ctx, entry.Recipient)
		if err != nil {
			var de *types.DisburseError
			if errors.As(err, &de) && de.Line == 0 {
				de.Line = entry.Line
			}
			return nil, err
		}

		c.reporter.Balance(i, entry.Recipient, balance)
		snap.Record(entry.Recipient, balance)
	}

	return snap, nil
}
