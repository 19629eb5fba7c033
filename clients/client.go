package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainClient is the blocking view of the chain the disbursement engine needs.
// Every failure is a *types.DisburseError with code types.ErrChainCallFailed.
type ChainClient interface {
	// BalanceOf returns the token balance of owner in minimal units.
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	// NonceAt returns the confirmed transaction count of account.
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	// Transfer submits a token transfer signed by signer with an explicit nonce.
	Transfer(ctx context.Context, signer *Signer, to common.Address, amount *big.Int, nonce uint64) (common.Hash, error)
	// Mint submits a mint of amount to the signer's account.
	Mint(ctx context.Context, signer *Signer, amount *big.Int) (common.Hash, error)
	Close()
}
