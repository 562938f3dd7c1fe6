// Package chain is the read/broadcast boundary to an EVM JSON-RPC endpoint.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:generate mockgen -destination=mocks/client_mock.go -package=mocks github.com/ligun0805/batch-swapper/internal/chain Client

// Oracle reads current network state.
type Oracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	// EstimateGas returns *EstimationError when the node simulation fails.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	// PendingNonce includes not-yet-mined transactions of addr.
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Broadcaster submits signed transactions and looks up their receipts.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// TransactionReceipt returns ethereum.NotFound while the tx is pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Client is everything the submission engine needs from a node.
type Client interface {
	Oracle
	Broadcaster
}

// EstimationError means the node refused to simulate a call.
type EstimationError struct {
	Err error
}

func (e *EstimationError) Error() string { return "estimate gas: " + e.Err.Error() }
func (e *EstimationError) Unwrap() error { return e.Err }

// UnavailableError wraps a transport level failure of a read call.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string { return fmt.Sprintf("oracle unavailable (%s): %v", e.Op, e.Err) }
func (e *UnavailableError) Unwrap() error { return e.Err }
