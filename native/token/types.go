package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Token describes a fungible asset tracked by the ledger. The address is the
// asset identifier referenced by custody records.
type Token struct {
	Address     [20]byte
	Symbol      string
	Name        string
	Decimals    uint8
	Minter      [20]byte
	TotalSupply *big.Int
}

// Clone returns a deep copy of the token metadata.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	if t.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(t.TotalSupply)
	} else {
		clone.TotalSupply = big.NewInt(0)
	}
	return &clone
}

const maxDecimals = 36

// NormalizeSymbol uppercases the ticker and enforces its length.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if len(trimmed) < 2 || len(trimmed) > 12 {
		return "", fmt.Errorf("symbol must be between 2 and 12 characters")
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("symbol must be alphanumeric")
		}
	}
	return trimmed, nil
}

// checkAmount rejects negative values and anything that does not fit the
// 256-bit range of an ERC20 amount.
func checkAmount(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return new(uint256.Int), nil
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return value, nil
}

// addChecked returns a+b or an error when the sum leaves the 256-bit range.
func addChecked(a, b *big.Int) (*big.Int, error) {
	x, err := checkAmount(a)
	if err != nil {
		return nil, err
	}
	y, err := checkAmount(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("balance overflow")
	}
	return sum.ToBig(), nil
}
