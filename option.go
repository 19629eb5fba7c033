package disburse

import (
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/settlement"
	"github.com/vitwit/disburse/utils"
)

type Option func(*Disburser)

func WithLogger(l logger.Logger) Option {
	return func(d *Disburser) {
		d.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(d *Disburser) {
		d.metrics = r
	}
}

// WithReporter sets the sink for human readable progress lines.
func WithReporter(r report.Reporter) Option {
	return func(d *Disburser) {
		d.reporter = r
	}
}

// WithSleeper replaces the wall clock used for every wait of a run.
func WithSleeper(s utils.Sleeper) Option {
	return func(d *Disburser) {
		d.sleep = s
	}
}

// WithSubmitter replaces the sequencer that submits each batch's transfers.
func WithSubmitter(s settlement.Submitter) Option {
	return func(d *Disburser) {
		d.sequencer = s
	}
}
