// Package store reads and writes the wallet list and the static token list.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

// Wallet is one address/key pair as persisted in the wallets file.
type Wallet struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// Signer parses the private key and checks it matches Address.
func (w Wallet) Signer() (txsubmit.Signer, error) {
	s, err := txsubmit.SignerFromHex(w.PrivateKey)
	if err != nil {
		return txsubmit.Signer{}, errors.Wrapf(err, "wallet %s: bad key", w.Address)
	}
	if w.Address != "" && !strings.EqualFold(s.Address().Hex(), w.Address) {
		return txsubmit.Signer{}, errors.Errorf("wallet %s: key belongs to %s", w.Address, s.Address().Hex())
	}
	return s, nil
}

func (w Wallet) Addr() common.Address { return common.HexToAddress(w.Address) }

// Wallets is an ordered wallet list.
type Wallets []Wallet

// Slice returns the half-open range [start, end) clamped to the list bounds.
func (ws Wallets) Slice(start, end int) Wallets {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(ws) {
		end = len(ws)
	}
	if start >= end {
		return Wallets{}
	}
	return ws[start:end]
}

// LoadWallets reads the wallets file. A missing file is an error.
func LoadWallets(path string) (Wallets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read wallets")
	}
	var ws Wallets
	if err := json.Unmarshal(b, &ws); err != nil {
		return nil, errors.Wrapf(err, "parse wallets %s", path)
	}
	return ws, nil
}

// GenerateWallets creates n fresh random wallets.
func GenerateWallets(n int) (Wallets, error) {
	out := make(Wallets, 0, n)
	for i := 0; i < n; i++ {
		k, err := gethcrypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate key")
		}
		out = append(out, Wallet{
			Address:    gethcrypto.PubkeyToAddress(k.PublicKey).Hex(),
			PrivateKey: hexutil.Encode(gethcrypto.FromECDSA(k)),
		})
	}
	return out, nil
}

// AppendWallets adds ws to the end of the wallets file, creating it if needed.
// The file holds private keys and is written with mode 0600.
func AppendWallets(path string, ws Wallets) (int, error) {
	existing, err := LoadWallets(path)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return 0, err
		}
		existing = Wallets{}
	}
	all := append(existing, ws...)
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return 0, errors.Wrap(err, "encode wallets")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return 0, errors.Wrap(err, "create wallets dir")
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return 0, errors.Wrap(err, "write wallets")
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, errors.Wrap(err, "replace wallets")
	}
	return len(all), nil
}
