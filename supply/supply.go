// Package supply makes sure the funding account can cover a batch before any
// transfer is submitted.
package supply

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/vitwit/disburse/clients"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/report"
	"github.com/vitwit/disburse/snapshot"
	"github.com/vitwit/disburse/types"
	"github.com/vitwit/disburse/utils"
)

// MintMultiplier overshoots every mint so that minting stays infrequent.
const MintMultiplier = 100

// RequiredTotal is the sum of the batch amounts plus one whole token per
// entry as a safety margin.
func RequiredTotal(entries []types.Entry) *big.Int {
	total := new(big.Int).Mul(big.NewInt(int64(len(entries))), utils.TokenUnits(types.Decimals))
	for _, e := range entries {
		total.Add(total, e.Amount)
	}
	return total
}

// MintAmount returns how much to mint for required given fundingBalance, or
// zero when the balance already covers it.
func MintAmount(required, fundingBalance *big.Int) *big.Int {
	if fundingBalance.Cmp(required) >= 0 {
		return new(big.Int)
	}
	shortfall := new(big.Int).Sub(required, fundingBalance)
	return shortfall.Mul(shortfall, big.NewInt(MintMultiplier))
}

type Guarantor struct {
	client      clients.ChainClient
	querier     *snapshot.Querier
	settleDelay time.Duration
	sleep       utils.Sleeper
	reporter    report.Reporter
	logger      logger.Logger
	metrics     metrics.Recorder
}

func NewGuarantor(
	client clients.ChainClient,
	querier *snapshot.Querier,
	settleDelay time.Duration,
	sleep utils.Sleeper,
	reporter report.Reporter,
	log logger.Logger,
	rec metrics.Recorder,
) *Guarantor {
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
	return &Guarantor{
		client:      client,
		querier:     querier,
		settleDelay: settleDelay,
		sleep:       sleep,
		reporter:    reporter,
		logger:      log,
		metrics:     rec,
	}
}

// Ensure mints when fundingBalance is below required and confirms the mint
// landed by re-reading the funding balance after the settle delay. The
// returned amount is what was minted, zero when nothing was needed.
func (g *Guarantor) Ensure(
	ctx context.Context,
	required *big.Int,
	fundingBalance *big.Int,
	signer *clients.Signer,
) (*big.Int, error) {
	mint := MintAmount(required, fundingBalance)
	if mint.Sign() == 0 {
		g.logger.Debug("funding balance sufficient", map[string]any{
			"required": required.String(),
			"balance":  fundingBalance.String(),
		})
		return mint, nil
	}

	funding := types.FormatAddress(signer.Address())
	if !utils.FitsAmount(mint) {
		g.metrics.IncCounter(metrics.EventMint, map[string]string{"status": "error"})
		return nil, insufficientSupply(funding,
			fmt.Sprintf("mint of %s for required %s exceeds the token range", mint, required), nil)
	}

	g.reporter.Minting(mint)
	g.logger.Info("minting supply", map[string]any{
		"required": required.String(),
		"balance":  fundingBalance.String(),
		"mint":     mint.String(),
		"funding":  funding,
	})

	txHash, err := g.client.Mint(ctx, signer, mint)
	if err != nil {
		g.metrics.IncCounter(metrics.EventMint, map[string]string{"status": "error"})
		return nil, insufficientSupply(funding, "mint submission failed", err)
	}

	if err := g.sleep(ctx, g.settleDelay); err != nil {
		return nil, err
	}

	after, err := g.querier.QueryBalance(ctx, signer.Address())
	if err != nil {
		return nil, err
	}

	landed := new(big.Int).Sub(after, fundingBalance)
	if landed.Cmp(mint) != 0 {
		g.metrics.IncCounter(metrics.EventMint, map[string]string{"status": "mismatch"})
		return nil, insufficientSupply(funding,
			fmt.Sprintf("minted %s but balance changed by %s (tx %s)", mint, landed, txHash.Hex()), nil)
	}

	g.metrics.IncCounter(metrics.EventMint, map[string]string{"status": "ok"})
	g.metrics.AddAmount(metrics.EventMint, mint)
	g.logger.Info("mint confirmed", map[string]any{
		"tx":      txHash.Hex(),
		"balance": after.String(),
	})
	return mint, nil
}

func insufficientSupply(funding, detail string, err error) *types.DisburseError {
	return &types.DisburseError{
		Code:    types.ErrInsufficientSupply,
		Op:      "ensure supply",
		Message: "insufficient balance, mint failed: " + detail,
		Address: funding,
		Err:     err,
	}
}
