package state

import (
	"fmt"
	"math/big"

	"gigchain/native/token"
)

var (
	tokenMetaPrefix      = []byte("token/meta/")
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
)

func addressKey(prefix []byte, addrs ...[20]byte) []byte {
	buf := make([]byte, len(prefix), len(prefix)+20*len(addrs))
	copy(buf, prefix)
	for _, addr := range addrs {
		buf = append(buf, addr[:]...)
	}
	return buf
}

type storedToken struct {
	Address     [20]byte
	Symbol      string
	Name        string
	Decimals    uint8
	Minter      [20]byte
	TotalSupply *big.Int
}

// TokenPut persists token metadata.
func (m *Manager) TokenPut(t *token.Token) error {
	if t == nil {
		return fmt.Errorf("token: nil token")
	}
	supply := big.NewInt(0)
	if t.TotalSupply != nil {
		supply.Set(t.TotalSupply)
	}
	record := storedToken{
		Address:     t.Address,
		Symbol:      t.Symbol,
		Name:        t.Name,
		Decimals:    t.Decimals,
		Minter:      t.Minter,
		TotalSupply: supply,
	}
	return m.KVPut(addressKey(tokenMetaPrefix, t.Address), record)
}

// TokenGet loads token metadata.
func (m *Manager) TokenGet(addr [20]byte) (*token.Token, bool, error) {
	var record storedToken
	ok, err := m.KVGet(addressKey(tokenMetaPrefix, addr), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	meta := &token.Token{
		Address:     record.Address,
		Symbol:      record.Symbol,
		Name:        record.Name,
		Decimals:    record.Decimals,
		Minter:      record.Minter,
		TotalSupply: big.NewInt(0),
	}
	if record.TotalSupply != nil {
		meta.TotalSupply.Set(record.TotalSupply)
	}
	return meta, true, nil
}

// TokenBalance returns owner's balance of tok. Missing entries default to zero.
func (m *Manager) TokenBalance(tok, owner [20]byte) (*big.Int, error) {
	return m.loadAmount(addressKey(tokenBalancePrefix, tok, owner))
}

// SetTokenBalance overwrites owner's balance of tok.
func (m *Manager) SetTokenBalance(tok, owner [20]byte, amount *big.Int) error {
	return m.storeAmount(addressKey(tokenBalancePrefix, tok, owner), amount)
}

// TokenAllowance returns the amount spender may move from owner's balance.
func (m *Manager) TokenAllowance(tok, owner, spender [20]byte) (*big.Int, error) {
	return m.loadAmount(addressKey(tokenAllowancePrefix, tok, owner, spender))
}

// SetTokenAllowance overwrites spender's allowance over owner's balance.
func (m *Manager) SetTokenAllowance(tok, owner, spender [20]byte, amount *big.Int) error {
	return m.storeAmount(addressKey(tokenAllowancePrefix, tok, owner, spender), amount)
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount")
	}
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}
