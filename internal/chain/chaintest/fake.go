// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/batch-swapper/internal/chain"
)

// Fake is a single-node ledger. Every accepted transaction is mined at once
// and its receipt is immediately available, unless Pending is set.
type Fake struct {
	mu sync.Mutex

	ID       *big.Int
	Price    *big.Int
	Units    uint64 // returned by EstimateGas and charged as gasUsed
	Status   uint64 // receipt status for mined transactions
	Pending  bool   // receipts are never found
	Balances map[common.Address]*big.Int
	Nonces   map[common.Address]uint64

	EstimateErr error
	PriceErr    error
	BalanceErr  error
	NonceErr    error
	SendErr     error

	PriceCalls int
	Sent       []*types.Transaction
	receipts   map[common.Hash]*types.Receipt
}

var _ chain.Client = (*Fake)(nil)

// New returns a fake with chain id 1, 1 gwei gas price and 21000 units per call.
func New() *Fake {
	return &Fake{
		ID:       big.NewInt(1),
		Price:    big.NewInt(1_000_000_000),
		Units:    21000,
		Status:   types.ReceiptStatusSuccessful,
		Balances: map[common.Address]*big.Int{},
		Nonces:   map[common.Address]uint64{},
		receipts: map[common.Hash]*types.Receipt{},
	}
}

// Fund sets the balance of addr.
func (f *Fake) Fund(addr common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[addr] = new(big.Int).Set(wei)
}

// BalanceOf returns the current balance of addr without side effects.
func (f *Fake) BalanceOf(addr common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance(addr)
}

// SentCount is the number of accepted transactions.
func (f *Fake) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

func (f *Fake) balance(addr common.Address) *big.Int {
	if b, ok := f.Balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (f *Fake) GasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PriceCalls++
	if f.PriceErr != nil {
		return nil, &chain.UnavailableError{Op: "eth_gasPrice", Err: f.PriceErr}
	}
	return new(big.Int).Set(f.Price), nil
}

func (f *Fake) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EstimateErr != nil {
		return 0, &chain.EstimationError{Err: f.EstimateErr}
	}
	return f.Units, nil
}

func (f *Fake) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, &chain.UnavailableError{Op: "eth_getBalance", Err: f.BalanceErr}
	}
	return f.balance(addr), nil
}

func (f *Fake) PendingNonce(_ context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NonceErr != nil {
		return 0, &chain.UnavailableError{Op: "eth_getTransactionCount", Err: f.NonceErr}
	}
	return f.Nonces[addr], nil
}

func (f *Fake) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ID), nil
}

func (f *Fake) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.ID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != f.Nonces[from] {
		return fmt.Errorf("nonce too low: next nonce %d, tx nonce %d", f.Nonces[from], tx.Nonce())
	}
	maxCost := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
	maxCost.Add(maxCost, tx.Value())
	bal := f.balance(from)
	if bal.Cmp(maxCost) < 0 {
		return errors.New("insufficient funds for gas * price + value")
	}

	used := f.Units
	if used > tx.Gas() {
		used = tx.Gas()
	}
	fee := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(used))
	bal.Sub(bal, fee)
	if f.Status == types.ReceiptStatusSuccessful {
		bal.Sub(bal, tx.Value())
		if to := tx.To(); to != nil {
			f.Balances[*to] = new(big.Int).Add(f.balance(*to), tx.Value())
		}
	}
	f.Balances[from] = bal
	f.Nonces[from]++
	f.Sent = append(f.Sent, tx)
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:            f.Status,
		TxHash:            tx.Hash(),
		GasUsed:           used,
		EffectiveGasPrice: new(big.Int).Set(tx.GasPrice()),
		BlockNumber:       big.NewInt(int64(len(f.Sent))),
	}
	return nil
}

func (f *Fake) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Pending {
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}
