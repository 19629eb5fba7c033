package clients

import (
	"github.com/vitwit/disburse/types"
)

// Operation names attached to chain call failures.
const (
	OpDial      = "dial"
	OpChainID   = "chainId"
	OpBalanceOf = "balanceOf"
	OpDecimals  = "decimals"
	OpNonce     = "nonce"
	OpTransfer  = "transfer"
	OpMint      = "mint"
)

func chainCallFailed(op string, err error) error {
	return types.ChainCallFailed(op, err)
}
