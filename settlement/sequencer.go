// Package settlement submits the transfers of a batch from the funding account.
package settlement

import (
	"context"
	"errors"

	"github.com/vitwit/disburse/clients"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/types"
)

// Submitter submits the transfers of one batch in order.
type Submitter interface {
	SubmitAll(ctx context.Context, batch []types.Entry, signer *clients.Signer) ([]types.TransactionResult, error)
}

// Sequencer submits one transfer per entry with consecutive nonces.
//
// The funding account nonce is read once per batch and never re-queried
// between submissions, which assumes nothing else spends from the account
// while the batch runs.
type Sequencer struct {
	client   clients.ChainClient
	reporter report.Reporter
	logger   logger.Logger
	metrics  metrics.Recorder
}

var _ Submitter = (*Sequencer)(nil)

func NewSequencer(
	client clients.ChainClient,
	reporter report.Reporter,
	log logger.Logger,
	rec metrics.Recorder,
) *Sequencer {
	if reporter == nil {
		reporter = report.NoopReporter{}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Sequencer{
		client:   client,
		reporter: reporter,
		logger:   log,
		metrics:  rec,
	}
}

// SubmitAll submits batch in order. Entry i uses nonce start+i where start is
// the account nonce read before the first submission. The first failed
// submission aborts the batch; transfers already sent are not rolled back.
func (s *Sequencer) SubmitAll(
	ctx context.Context,
	batch []types.Entry,
	signer *clients.Signer,
) ([]types.TransactionResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	from := signer.Address()
	start, err := s.client.NonceAt(ctx, from)
	if err != nil {
		return nil, err
	}

	s.reporter.Sending(from)
	s.logger.Debug("submitting batch", map[string]any{
		"from":    types.FormatAddress(from),
		"nonce":   start,
		"entries": len(batch),
	})

	results := make([]types.TransactionResult, 0, len(batch))
	for i, entry := range batch {
		nonce := start + uint64(i)

		hash, err := s.client.Transfer(ctx, signer, entry.Recipient, entry.Amount, nonce)
		if err != nil {
			s.metrics.IncCounter(metrics.EventTransfer, map[string]string{"status": "error"})
			s.logger.Error("transfer submission failed", map[string]any{
				"entry":     i,
				"line":      entry.Line,
				"recipient": types.FormatAddress(entry.Recipient),
				"nonce":     nonce,
				"error":     err,
			})
			return results, annotate(err, entry)
		}

		res := types.TransactionResult{
			EntryIndex: i,
			Nonce:      nonce,
			TxHash:     hash,
		}
		results = append(results, res)

		s.metrics.IncCounter(metrics.EventTransfer, map[string]string{"status": "ok"})
		s.metrics.AddAmount(metrics.EventTransfer, entry.Amount)
		s.reporter.Submitted(res, entry)
	}

	return results, nil
}

func annotate(err error, entry types.Entry) error {
	var de *types.DisburseError
	if !errors.As(err, &de) {
		de = types.ChainCallFailed(clients.OpTransfer, err)
	}
	if de.Line == 0 {
		de.Line = entry.Line
	}
	if de.Address == "" {
		de.Address = types.FormatAddress(entry.Recipient)
	}
	return de
}
