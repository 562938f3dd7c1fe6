package txsubmit

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ligun0805/batch-swapper/internal/chain/chaintest"
	"github.com/ligun0805/batch-swapper/internal/chain/mocks"
	"github.com/ligun0805/batch-swapper/internal/gasrisk"
)

var (
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	oneEther  = big.NewInt(1_000_000_000_000_000_000)
	milli     = big.NewInt(1_000_000_000_000_000)
)

func newSigner(t *testing.T) Signer {
	t.Helper()
	k, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	return NewSigner(k)
}

func setup(t *testing.T) (*chaintest.Fake, *Submitter, Signer) {
	t.Helper()
	fake := chaintest.New()
	ev := gasrisk.NewEvaluator(fake, gasrisk.Config{
		Ceiling:  big.NewInt(10_000_000_000_000_000),
		PriceTTL: time.Minute,
	}, nil)
	s := New(fake, ev, Options{ReceiptTimeout: 200 * time.Millisecond, PollInterval: 5 * time.Millisecond})
	signer := newSigner(t)
	fake.Fund(signer.Address(), oneEther)
	return fake, s, signer
}

func TestSubmitSuccess(t *testing.T) {
	fake, s, signer := setup(t)
	in := NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, "")

	out := s.Submit(context.Background(), signer, in)
	require.True(t, out.Success, out.Err)
	require.NotNil(t, out.TxHash)
	assert.Empty(t, out.Failure)
	assert.Equal(t, gasrisk.ProceedImmediately, out.Verdict)
	assert.Equal(t, uint64(21_000), out.GasUsed)
	assert.Equal(t, "1200000000", out.EffectiveGasPrice.String())
	assert.Equal(t, "25200000000000", out.GasCost().String())
	assert.Equal(t, milli.String(), fake.BalanceOf(recipient).String())

	require.Len(t, fake.Sent, 1)
	tx := fake.Sent[0]
	assert.Equal(t, uint64(25_200), tx.Gas())
	assert.Equal(t, "1200000000", tx.GasPrice().String())
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, *out.TxHash, tx.Hash())

	// next intent picks up the pending nonce
	out = s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	require.True(t, out.Success, out.Err)
	assert.Equal(t, uint64(1), fake.Sent[1].Nonce())
}

func TestSubmitIntentOnlyOnce(t *testing.T) {
	fake, s, signer := setup(t)
	in := NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, "")

	require.True(t, s.Submit(context.Background(), signer, in).Success)
	assert.True(t, in.Consumed())
	out := s.Submit(context.Background(), signer, in)
	assert.False(t, out.Success)
	assert.Equal(t, ErrIntentConsumed.Error(), out.Err)
	assert.Equal(t, 1, fake.SentCount())
}

func TestSubmitInsufficientBalanceDoesNotBroadcast(t *testing.T) {
	fake, s, signer := setup(t)
	fake.Fund(signer.Address(), milli)

	out := s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.False(t, out.Success)
	assert.Equal(t, InsufficientBalance, out.Failure)
	assert.Equal(t, gasrisk.AbortInsufficientBalance, out.Verdict)
	assert.Nil(t, out.TxHash)
	assert.Zero(t, fake.SentCount())
}

func TestSubmitGasCeilingExceeded(t *testing.T) {
	fake, s, signer := setup(t)
	fake.Price = big.NewInt(1_000_000_000_000) // 1000 gwei
	fake.Units = 500_000

	out := s.Submit(context.Background(), signer, NewIntent(recipient, []byte{0x01}, nil, gasrisk.OpSwapV3, "USDC"))
	assert.Equal(t, GasCeilingExceeded, out.Failure)
	assert.Equal(t, gasrisk.AbortHighGas, out.Verdict)
	assert.Equal(t, gasrisk.RetryMax, out.RetryAfter)
	assert.Equal(t, "USDC", out.Token)
	assert.Zero(t, fake.SentCount())
}

func TestSubmitEstimationFailureStillSends(t *testing.T) {
	fake, s, signer := setup(t)
	fake.EstimateErr = errors.New("execution reverted")

	out := s.Submit(context.Background(), signer, NewIntent(recipient, []byte{0xaa}, milli, gasrisk.OpSwap, ""))
	require.True(t, out.Success, out.Err)
	require.Len(t, fake.Sent, 1)
	assert.Equal(t, uint64(360_000), fake.Sent[0].Gas())
}

func TestSubmitReverted(t *testing.T) {
	fake, s, signer := setup(t)
	fake.Status = types.ReceiptStatusFailed

	out := s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.False(t, out.Success)
	assert.Equal(t, Reverted, out.Failure)
	require.NotNil(t, out.TxHash)
	assert.NotZero(t, out.GasUsed)
}

func TestSubmitReceiptTimeout(t *testing.T) {
	fake, s, signer := setup(t)
	fake.Pending = true

	out := s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.Equal(t, Timeout, out.Failure)
	assert.NotNil(t, out.TxHash, "hash is known once broadcast")
	assert.Less(t, out.Duration, 5*time.Second)
}

func TestSubmitNetworkRejected(t *testing.T) {
	fake, s, signer := setup(t)
	fake.SendErr = errors.New("nonce too low")

	out := s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.Equal(t, NetworkRejected, out.Failure)
	assert.Contains(t, out.Err, "nonce_conflict")
	assert.Nil(t, out.TxHash)
}

func TestSubmitAmbiguousSendKeepsHash(t *testing.T) {
	fake, s, signer := setup(t)
	fake.SendErr = errors.New("Post \"http://node\": unexpected EOF")

	out := s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.Equal(t, NetworkRejected, out.Failure)
	assert.Contains(t, out.Err, "rpc_unavailable")
	require.NotNil(t, out.TxHash, "the tx may have reached the node")
	assert.NotEqual(t, common.Hash{}, *out.TxHash)
}

func TestSubmitNonceUnavailable(t *testing.T) {
	fake, s, signer := setup(t)
	fake.NonceErr = errors.New("connection reset by peer")

	out := s.Submit(context.Background(), signer, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.Equal(t, NetworkRejected, out.Failure)
	assert.Zero(t, fake.SentCount())
}

func TestSubmitInvalidSigner(t *testing.T) {
	_, s, _ := setup(t)
	out := s.Submit(context.Background(), Signer{}, NewIntent(recipient, nil, milli, gasrisk.OpAirdrop, ""))
	assert.Equal(t, NetworkRejected, out.Failure)

	out = s.Submit(context.Background(), Signer{}, nil)
	assert.Equal(t, EstimationFailed, out.Failure)
}

func TestSubmitCallSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockClient(ctrl)
	signer := newSigner(t)
	from := signer.Address()
	ev := gasrisk.NewEvaluator(m, gasrisk.Config{Ceiling: big.NewInt(10_000_000_000_000_000)}, nil)
	s := New(m, ev, Options{ChainID: big.NewInt(8453), PollInterval: time.Millisecond, ReceiptTimeout: time.Second})

	var sent *types.Transaction
	gomock.InOrder(
		m.EXPECT().GasPrice(gomock.Any()).Return(big.NewInt(10_000_000), nil),
		m.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
				assert.Equal(t, from, msg.From)
				assert.Equal(t, []byte{0xde, 0xad}, msg.Data)
				return 150_000, nil
			}),
		m.EXPECT().Balance(gomock.Any(), from).Return(oneEther, nil),
		m.EXPECT().PendingNonce(gomock.Any(), from).Return(uint64(7), nil),
		m.EXPECT().SendTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, tx *types.Transaction) error {
				sent = tx
				return nil
			}),
		m.EXPECT().TransactionReceipt(gomock.Any(), gomock.Any()).Return(nil, ethereum.NotFound),
		m.EXPECT().TransactionReceipt(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, h common.Hash) (*types.Receipt, error) {
				return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h, GasUsed: 120_000, EffectiveGasPrice: big.NewInt(12_000_000)}, nil
			}),
	)

	out := s.Submit(context.Background(), signer, NewIntent(recipient, []byte{0xde, 0xad}, nil, gasrisk.OpSwap, ""))
	require.True(t, out.Success, out.Err)
	require.NotNil(t, sent)
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(180_000), sent.Gas())
	assert.Equal(t, "12000000", sent.GasPrice().String())
	assert.Equal(t, "8453", sent.ChainId().String())
	assert.Equal(t, uint64(120_000), out.GasUsed)
}
