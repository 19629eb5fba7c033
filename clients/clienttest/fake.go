// Package clienttest provides an in-memory ChainClient for tests.
package clienttest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/disburse/clients"
	"github.com/vitwit/disburse/types"
)

// ErrInjected is the cause of every failure the fake is told to produce.
var ErrInjected = errors.New("injected failure")

// Transfer is a transfer the fake accepted.
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
	Nonce  uint64
	Hash   common.Hash
}

type pendingCredit struct {
	to     common.Address
	amount *big.Int
	// reads is how many balance reads of to still miss the credit.
	reads int
}

// Chain is a ledger of token balances. Transfers move funds, mints create
// them. All fields that inject failures may be set before use.
type Chain struct {
	mu sync.Mutex

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	pending  []*pendingCredit

	// BalanceFailures makes the next n BalanceOf calls of an address fail.
	BalanceFailures map[common.Address]int
	// FailTransferAt fails the transfer call with that zero based index.
	FailTransferAt int
	// MintErr, when set, is returned by Mint.
	MintErr error
	// MintShortfall is withheld from every mint.
	MintShortfall *big.Int
	// Dropped recipients never receive their transfers.
	Dropped map[common.Address]bool
	// Lag is the number of recipient balance reads that miss a new credit.
	Lag int

	Transfers    []Transfer
	Mints        []*big.Int
	BalanceCalls map[common.Address]int
	NonceCalls   int
}

var _ clients.ChainClient = (*Chain)(nil)

func NewChain() *Chain {
	return &Chain{
		balances:        make(map[common.Address]*big.Int),
		nonces:          make(map[common.Address]uint64),
		BalanceFailures: make(map[common.Address]int),
		Dropped:         make(map[common.Address]bool),
		BalanceCalls:    make(map[common.Address]int),
		FailTransferAt:  -1,
	}
}

// SetBalance sets the balance of addr.
func (c *Chain) SetBalance(addr common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Set(amount)
}

// SetNonce sets the confirmed nonce of addr.
func (c *Chain) SetNonce(addr common.Address, nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[addr] = nonce
}

// Balance returns the settled balance of addr, ignoring pending credits.
func (c *Chain) Balance(addr common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(addr))
}

func (c *Chain) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.BalanceCalls[owner]++
	if c.BalanceFailures[owner] > 0 {
		c.BalanceFailures[owner]--
		return nil, types.ChainCallFailed(clients.OpBalanceOf, ErrInjected)
	}

	kept := c.pending[:0]
	for _, p := range c.pending {
		switch {
		case p.to != owner:
			kept = append(kept, p)
		case p.reads > 0:
			p.reads--
			kept = append(kept, p)
		default:
			bal := c.balance(owner)
			bal.Add(bal, p.amount)
		}
	}
	c.pending = kept

	return new(big.Int).Set(c.balance(owner)), nil
}

func (c *Chain) NonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NonceCalls++
	return c.nonces[account], nil
}

func (c *Chain) Transfer(
	_ context.Context,
	signer *clients.Signer,
	to common.Address,
	amount *big.Int,
	nonce uint64,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailTransferAt == len(c.Transfers) {
		return common.Hash{}, types.ChainCallFailed(clients.OpTransfer, ErrInjected)
	}

	from := signer.Address()
	fromBal := c.balance(from)
	if fromBal.Cmp(amount) < 0 {
		return common.Hash{}, types.ChainCallFailed(clients.OpTransfer, errors.New("transfer amount exceeds balance"))
	}
	fromBal.Sub(fromBal, amount)

	if !c.Dropped[to] {
		c.pending = append(c.pending, &pendingCredit{
			to:     to,
			amount: new(big.Int).Set(amount),
			reads:  c.Lag,
		})
	}
	if nonce >= c.nonces[from] {
		c.nonces[from] = nonce + 1
	}

	hash := crypto.Keccak256Hash(from.Bytes(), to.Bytes(), amount.Bytes(), new(big.Int).SetUint64(nonce).Bytes())
	c.Transfers = append(c.Transfers, Transfer{
		From:   from,
		To:     to,
		Amount: new(big.Int).Set(amount),
		Nonce:  nonce,
		Hash:   hash,
	})
	return hash, nil
}

func (c *Chain) Mint(_ context.Context, signer *clients.Signer, amount *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MintErr != nil {
		return common.Hash{}, c.MintErr
	}

	from := signer.Address()
	landed := new(big.Int).Set(amount)
	if c.MintShortfall != nil {
		landed.Sub(landed, c.MintShortfall)
	}
	bal := c.balance(from)
	bal.Add(bal, landed)
	c.nonces[from]++

	c.Mints = append(c.Mints, new(big.Int).Set(amount))
	return crypto.Keccak256Hash(from.Bytes(), amount.Bytes()), nil
}

func (c *Chain) Close() {}

func (c *Chain) balance(addr common.Address) *big.Int {
	b, ok := c.balances[addr]
	if !ok {
		b = new(big.Int)
		c.balances[addr] = b
	}
	return b
}

// NoSleep is a Sleeper that returns at once and records what it was asked for.
type NoSleep struct {
	mu    sync.Mutex
	Calls []time.Duration
}

func (s *NoSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Total is the sum of every requested wait.
func (s *NoSleep) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.Calls {
		total += d
	}
	return total
}
