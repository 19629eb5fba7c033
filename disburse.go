// Package disburse sends a token to many recipients from one funding account,
// in chunks, and checks on chain that every recipient received its amount.
package disburse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/disburse/clients"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/settlement"
	"github.com/vitwit/disburse/snapshot"
	"github.com/vitwit/disburse/supply"
	"github.com/vitwit/disburse/types"
	"github.com/vitwit/disburse/utils"
	"github.com/vitwit/disburse/verification"
)

// Disburser runs disbursements for one funding account against one chain.
type Disburser struct {
	client clients.ChainClient
	signer *clients.Signer
	config types.Config

	logger   logger.Logger
	metrics  metrics.Recorder
	reporter report.Reporter
	sleep    utils.Sleeper

	querier   *snapshot.Querier
	capturer  *snapshot.Capturer
	guarantor *supply.Guarantor
	sequencer settlement.Submitter
	verifier  *verification.Verifier
}

// New creates a Disburser. Unset timings in cfg take their defaults.
func New(client clients.ChainClient, signer *clients.Signer, cfg types.Config, opts ...Option) *Disburser {
	d := &Disburser{
		client:   client,
		signer:   signer,
		config:   cfg.WithDefaults(),
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		reporter: report.NoopReporter{},
		sleep:    utils.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.querier = snapshot.NewQuerier(client, utils.RetryPolicy{
		MaxAttempts: 2,
		Delay:       d.config.SnapshotRetryDelay.Std(),
	}, d.sleep, d.logger, d.metrics)
	d.capturer = snapshot.NewCapturer(d.querier, d.reporter)
	d.guarantor = supply.NewGuarantor(client, d.querier, d.config.MintSettleDelay.Std(),
		d.sleep, d.reporter, d.logger, d.metrics)
	if d.sequencer == nil {
		d.sequencer = settlement.NewSequencer(client, d.reporter, d.logger, d.metrics)
	}
	d.verifier = verification.NewVerifier(d.querier, d.config.SettlementDelay.Std(), utils.RetryPolicy{
		MaxAttempts: 1 + *d.config.SettlementRetries,
		Delay:       d.config.SettlementRetryDelay.Std(),
	}, d.sleep, d.reporter, d.logger, d.metrics)

	return d
}

// Chunk splits entries into consecutive slices of at most size entries. The
// chunks share the backing array of entries.
func Chunk(entries []types.Entry, size int) [][]types.Entry {
	if size <= 0 {
		size = types.BatchSize
	}
	chunks := make([][]types.Entry, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		chunks = append(chunks, entries[start:end:end])
	}
	return chunks
}

// Run disburses entries chunk by chunk. A fatal error stops the run at once
// and is returned together with the batches completed so far. Recipients
// that did not settle are counted across all chunks and reported as a single
// types.ErrSettlementMismatch error at the end.
func (d *Disburser) Run(ctx context.Context, entries []types.Entry) (*types.RunResult, error) {
	result := &types.RunResult{RunID: uuid.NewString()}
	log := d.logger.With(map[string]any{"run_id": result.RunID})

	if len(entries) == 0 {
		log.Info("nothing to disburse", nil)
		return result, nil
	}

	chunks := Chunk(entries, types.BatchSize)
	log.Info("starting disbursement", map[string]any{
		"entries": len(entries),
		"chunks":  len(chunks),
		"funding": types.FormatAddress(d.signer.Address()),
	})

	started := time.Now()
	for i, chunk := range chunks {
		batch, err := d.runChunk(ctx, log, i, chunk)
		if batch != nil {
			result.Batches = append(result.Batches, *batch)
			result.Failures += batch.Failures
		}
		if err != nil {
			d.metrics.IncCounter(metrics.EventChunk, map[string]string{"status": "error"})
			log.Error("chunk aborted", map[string]any{
				"chunk": i,
				"error": err,
			})
			return result, err
		}
		d.metrics.IncCounter(metrics.EventChunk, map[string]string{"status": "ok"})
	}

	log.Info("disbursement finished", map[string]any{
		"submitted": result.Submitted(),
		"failures":  result.Failures,
		"elapsed":   time.Since(started).String(),
	})

	if result.Failures > 0 {
		return result, &types.DisburseError{
			Code:    types.ErrSettlementMismatch,
			Op:      "run",
			Message: fmt.Sprintf("%d entries failed", result.Failures),
		}
	}
	return result, nil
}

func (d *Disburser) runChunk(
	ctx context.Context,
	log logger.Logger,
	index int,
	chunk []types.Entry,
) (*types.BatchResult, error) {
	d.reporter.Chunk(index, len(chunk))
	log.Debug("processing chunk", map[string]any{
		"chunk":   index,
		"entries": len(chunk),
	})

	snap, err := d.capturer.Capture(ctx, chunk)
	if err != nil {
		return nil, err
	}

	funding, err := d.querier.QueryBalance(ctx, d.signer.Address())
	if err != nil {
		return nil, err
	}

	required := supply.RequiredTotal(chunk)
	minted, err := d.guarantor.Ensure(ctx, required, funding, d.signer)
	if err != nil {
		return nil, err
	}

	batch := &types.BatchResult{
		Index:  index,
		Minted: minted,
	}

	txs, err := d.sequencer.SubmitAll(ctx, chunk, d.signer)
	batch.Transactions = txs
	if err != nil {
		return batch, err
	}

	outcomes, err := d.verifier.Verify(ctx, verification.Aggregate(chunk), snap)
	batch.Outcomes = outcomes
	if err != nil {
		return batch, err
	}
	batch.Failures = verification.Failures(outcomes)

	log.Info("chunk settled", map[string]any{
		"chunk":    index,
		"minted":   utils.FormatAmount(minted),
		"required": utils.FormatAmount(required),
		"failures": batch.Failures,
	})
	return batch, nil
}

// Plan summarises a run without touching the chain.
type Plan struct {
	Entries    int
	Chunks     int
	Recipients int
	Total      *big.Int
	// Required is the largest per chunk funding requirement.
	Required *big.Int
}

// NewPlan computes the Plan for entries.
func NewPlan(entries []types.Entry) Plan {
	p := Plan{
		Entries:  len(entries),
		Total:    new(big.Int),
		Required: new(big.Int),
	}
	for _, chunk := range Chunk(entries, types.BatchSize) {
		p.Chunks++
		p.Recipients += len(verification.Aggregate(chunk))
		for _, e := range chunk {
			p.Total.Add(p.Total, e.Amount)
		}
		if r := supply.RequiredTotal(chunk); r.Cmp(p.Required) > 0 {
			p.Required = r
		}
	}
	return p
}
