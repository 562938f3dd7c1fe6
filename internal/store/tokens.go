package store

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Token is one entry of the static token list.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	// V3Fee overrides the default pool fee tier for V3 swaps.
	V3Fee uint32 `json:"v3Fee,omitempty"`
}

func (t Token) Addr() common.Address { return common.HexToAddress(t.Address) }

type Tokens []Token

// Find looks a token up by symbol (case-insensitive) or address.
func (ts Tokens) Find(key string) (Token, bool) {
	key = strings.TrimSpace(key)
	for _, t := range ts {
		if strings.EqualFold(t.Symbol, key) || strings.EqualFold(t.Address, key) {
			return t, true
		}
	}
	return Token{}, false
}

// LoadTokens reads and validates the token list.
func LoadTokens(path string) (Tokens, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read tokens")
	}
	var ts Tokens
	if err := json.Unmarshal(b, &ts); err != nil {
		return nil, errors.Wrapf(err, "parse tokens %s", path)
	}
	for i, t := range ts {
		if !common.IsHexAddress(t.Address) {
			return nil, errors.Errorf("token #%d (%s): bad address %q", i, t.Symbol, t.Address)
		}
	}
	return ts, nil
}
