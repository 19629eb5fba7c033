package clients

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vitwit/disburse/logger"
	"github.com/vitwit/disburse/metrics"
	"github.com/vitwit/disburse/types"
	"golang.org/x/time/rate"
)

var _ ChainClient = (*EVMClient)(nil)

// EVMClient talks to one token contract through one JSON-RPC endpoint.
type EVMClient struct {
	network types.Network
	rpcURL  string
	eth     *ethclient.Client
	token   ERC20
	chainID *big.Int

	timeout time.Duration
	limiter *rate.Limiter
	metrics metrics.Recorder
	logger  logger.Logger
}

type EVMOption func(*EVMClient)

// WithCallTimeout bounds every single RPC call.
func WithCallTimeout(d time.Duration) EVMOption {
	return func(c *EVMClient) {
		c.timeout = d
	}
}

// WithRateLimit caps RPC calls per second. Non-positive values disable it.
func WithRateLimit(perSecond float64) EVMOption {
	return func(c *EVMClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithRecorder(r metrics.Recorder) EVMOption {
	return func(c *EVMClient) {
		c.metrics = r
	}
}

func WithClientLogger(l logger.Logger) EVMOption {
	return func(c *EVMClient) {
		c.logger = l
	}
}

func NewEVMClient(
	ctx context.Context,
	network types.Network,
	rpcURL string,
	token string,
	opts ...EVMOption,
) (*EVMClient, error) {
	c := &EVMClient{
		network: network,
		rpcURL:  rpcURL,
		metrics: metrics.NoopRecorder{},
		logger:  logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, chainCallFailed(OpDial, err)
	}
	c.eth = eth

	err = c.call(ctx, OpChainID, func(ctx context.Context) error {
		id, err := eth.ChainID(ctx)
		c.chainID = id
		return err
	})
	if err != nil {
		eth.Close()
		return nil, err
	}

	tokenAddr := common.HexToAddress(token)
	erc, err := newERC20(tokenAddr, eth)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.token = erc

	c.logger.Debug("connected to chain", map[string]any{
		"network":  network.String(),
		"rpc":      rpcURL,
		"chain_id": c.chainID.String(),
		"token":    types.FormatAddress(tokenAddr),
	})
	return c, nil
}

// Close implements ChainClient.
func (c *EVMClient) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// ChainID is the chain id reported by the node at dial time.
func (c *EVMClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *EVMClient) GetNetwork() types.Network {
	return c.network
}

// BalanceOf implements ChainClient.
func (c *EVMClient) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.call(ctx, OpBalanceOf, func(ctx context.Context) error {
		b, err := c.token.BalanceOf(ctx, owner)
		balance = b
		return err
	})
	if err != nil {
		return nil, withAddress(err, owner)
	}
	return balance, nil
}

// Decimals reads the token's decimals.
func (c *EVMClient) Decimals(ctx context.Context) (uint8, error) {
	var decimals uint8
	err := c.call(ctx, OpDecimals, func(ctx context.Context) error {
		d, err := c.token.Decimals(ctx)
		decimals = d
		return err
	})
	return decimals, err
}

// NonceAt implements ChainClient.
func (c *EVMClient) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.call(ctx, OpNonce, func(ctx context.Context) error {
		n, err := c.eth.NonceAt(ctx, account, nil)
		nonce = n
		return err
	})
	if err != nil {
		return 0, withAddress(err, account)
	}
	return nonce, nil
}

// Transfer implements ChainClient.
func (c *EVMClient) Transfer(
	ctx context.Context,
	signer *Signer,
	to common.Address,
	amount *big.Int,
	nonce uint64,
) (common.Hash, error) {
	var hash common.Hash
	err := c.call(ctx, OpTransfer, func(ctx context.Context) error {
		opts, err := c.transactOpts(ctx, signer)
		if err != nil {
			return err
		}
		opts.Nonce = new(big.Int).SetUint64(nonce)

		tx, err := c.token.Transfer(opts, to, amount)
		if err != nil {
			return err
		}
		hash = tx.Hash()
		return nil
	})
	if err != nil {
		return common.Hash{}, withAddress(err, to)
	}
	return hash, nil
}

// Mint implements ChainClient. The node assigns the pending nonce.
func (c *EVMClient) Mint(ctx context.Context, signer *Signer, amount *big.Int) (common.Hash, error) {
	var hash common.Hash
	err := c.call(ctx, OpMint, func(ctx context.Context) error {
		opts, err := c.transactOpts(ctx, signer)
		if err != nil {
			return err
		}

		tx, err := c.token.Mint(opts, amount)
		if err != nil {
			return err
		}
		hash = tx.Hash()
		return nil
	})
	if err != nil {
		return common.Hash{}, withAddress(err, signer.Address())
	}
	return hash, nil
}

// transactOpts builds legacy priced transaction options; BSC nodes do not
// price dynamic fee transactions reliably.
func (c *EVMClient) transactOpts(ctx context.Context, signer *Signer) (*bind.TransactOpts, error) {
	opts, err := signer.transactor(c.chainID)
	if err != nil {
		return nil, err
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	opts.Context = ctx
	opts.GasPrice = gasPrice
	opts.GasLimit = 0 // let node estimate
	return opts, nil
}

// call applies rate limiting, the per call timeout and metrics around fn.
func (c *EVMClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return chainCallFailed(op, err)
		}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(callCtx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ObserveLatency(op, time.Since(start), map[string]string{"status": status})

	if err != nil {
		c.logger.Debug("chain call failed", map[string]any{
			"op":    op,
			"error": err,
		})
		return chainCallFailed(op, err)
	}
	return nil
}

func withAddress(err error, addr common.Address) error {
	if de, ok := err.(*types.DisburseError); ok && de.Address == "" {
		de.Address = types.FormatAddress(addr)
	}
	return err
}
