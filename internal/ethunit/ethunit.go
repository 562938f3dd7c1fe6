// Package ethunit converts between wei and human readable ETH / gwei amounts
// using exact integer arithmetic.
package ethunit

import (
	"fmt"
	"math/big"
	"strings"
)

var (
	weiPerGwei  = big.NewInt(1_000_000_000)
	weiPerEther = big.NewInt(1_000_000_000_000_000_000)
)

// GweiToWei converts a whole gwei amount to wei.
func GweiToWei(g int64) *big.Int {
	x := new(big.Int).SetInt64(g)
	return x.Mul(x, weiPerGwei)
}

// ParseUnits parses a decimal string with at most `decimals` fractional digits
// into its integer base-unit representation. "0.001" with 9 decimals is 1_000_000.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	amount = strings.TrimPrefix(amount, "+")
	if decimals < 0 {
		decimals = 18
	}
	parts := strings.SplitN(amount, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("too many fractional digits for %d decimals", decimals)
	}
	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	clean := strings.TrimLeft(intPart+fracPart, "0")
	if clean == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, fmt.Errorf("bad amount %q", amount)
	}
	return v, nil
}

// ParseEther parses an ETH decimal string into wei.
func ParseEther(s string) (*big.Int, error) { return ParseUnits(s, 18) }

// ParseGwei parses a gwei decimal string into wei.
func ParseGwei(s string) (*big.Int, error) { return ParseUnits(s, 9) }

// FormatUnits renders v with the given number of decimals, trimming trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}
	s := new(big.Int).Abs(v).String()
	neg := v.Sign() < 0
	var out string
	if len(s) <= decimals {
		frac := strings.TrimRight(strings.Repeat("0", decimals-len(s))+s, "0")
		out = "0"
		if frac != "" {
			out = "0." + frac
		}
	} else {
		out = s[:len(s)-decimals]
		if frac := strings.TrimRight(s[len(s)-decimals:], "0"); frac != "" {
			out += "." + frac
		}
	}
	if neg && out != "0" {
		return "-" + out
	}
	return out
}

// FormatEther renders wei as ETH with 6 fractional digits.
func FormatEther(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), weiPerEther)
	return r.FloatString(6)
}

// FormatGwei renders wei as gwei with 4 fractional digits.
func FormatGwei(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), weiPerGwei)
	return r.FloatString(4)
}
