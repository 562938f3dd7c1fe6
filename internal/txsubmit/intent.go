// Package txsubmit builds, signs and submits single transactions after a
// gas risk evaluation, and reports each attempt as an Outcome.
package txsubmit

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/batch-swapper/internal/gasrisk"
)

// ErrIntentConsumed is reported when an Intent is submitted twice.
var ErrIntentConsumed = errors.New("intent already submitted")

// Intent is an unsent transaction. It is immutable and may be submitted once.
type Intent struct {
	to       common.Address
	data     []byte
	value    *big.Int
	op       gasrisk.Op
	token    string
	consumed atomic.Bool
}

// NewIntent copies its inputs. token is an optional label for statistics.
func NewIntent(to common.Address, data []byte, value *big.Int, op gasrisk.Op, token string) *Intent {
	in := &Intent{to: to, op: op, token: token, value: big.NewInt(0)}
	if len(data) > 0 {
		in.data = append([]byte(nil), data...)
	}
	if value != nil {
		in.value.Set(value)
	}
	return in
}

func (i *Intent) To() common.Address { return i.to }
func (i *Intent) Data() []byte       { return append([]byte(nil), i.data...) }
func (i *Intent) Value() *big.Int    { return new(big.Int).Set(i.value) }
func (i *Intent) Op() gasrisk.Op     { return i.op }
func (i *Intent) Token() string      { return i.token }

// Consumed reports whether the intent has been handed to a Submitter.
func (i *Intent) Consumed() bool { return i.consumed.Load() }

func (i *Intent) claim() bool { return i.consumed.CompareAndSwap(false, true) }

// CallMsg is the eth_call/eth_estimateGas view of the intent sent by from.
func (i *Intent) CallMsg(from common.Address) ethereum.CallMsg {
	to := i.to
	return ethereum.CallMsg{From: from, To: &to, Value: i.Value(), Data: i.Data()}
}

// Signer holds one wallet key.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewSigner(key *ecdsa.PrivateKey) Signer {
	return Signer{key: key, addr: gethcrypto.PubkeyToAddress(key.PublicKey)}
}

// SignerFromHex parses a hex private key with or without 0x prefix.
func SignerFromHex(pkHex string) (Signer, error) {
	prv, err := gethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(pkHex), "0x"))
	if err != nil {
		return Signer{}, err
	}
	return NewSigner(prv), nil
}

func (s Signer) Address() common.Address { return s.addr }

// Valid reports whether the signer carries a key.
func (s Signer) Valid() bool { return s.key != nil }

func (s Signer) sign(chainID *big.Int, tx types.TxData) (*types.Transaction, error) {
	return types.SignNewTx(s.key, types.LatestSignerForChainID(chainID), tx)
}
