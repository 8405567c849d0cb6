package token

import (
	"errors"
	"fmt"
	"math/big"

	"gigchain/core/events"
	"gigchain/native/common"
)

var errNilState = errors.New("token engine: state not configured")

var (
	// ErrUnknownToken is returned when the asset identifier is not registered.
	ErrUnknownToken = fmt.Errorf("%w: unknown token", common.ErrAssetTransferFailed)
	// ErrInsufficientBalance is returned when the sender cannot cover the amount.
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", common.ErrAssetTransferFailed)
	// ErrInsufficientAllowance is returned when the spender was not
	// pre-authorised for the amount.
	ErrInsufficientAllowance = fmt.Errorf("%w: insufficient allowance", common.ErrAssetTransferFailed)
)

type engineState interface {
	TokenPut(*Token) error
	TokenGet(addr [20]byte) (*Token, bool, error)
	TokenBalance(token, owner [20]byte) (*big.Int, error)
	SetTokenBalance(token, owner [20]byte, amount *big.Int) error
	TokenAllowance(token, owner, spender [20]byte) (*big.Int, error)
	SetTokenAllowance(token, owner, spender [20]byte, amount *big.Int) error
}

// Engine implements ERC20-style balances and allowances.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a token engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Register stores metadata for a new token with zero supply.
func (e *Engine) Register(meta *Token) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if meta == nil {
		return nil, fmt.Errorf("token: %w: nil token", common.ErrInvalidArgument)
	}
	clone := meta.Clone()
	if clone.Address == ([20]byte{}) {
		return nil, fmt.Errorf("token: %w: address required", common.ErrInvalidArgument)
	}
	symbol, err := NormalizeSymbol(clone.Symbol)
	if err != nil {
		return nil, fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	if clone.Decimals > maxDecimals {
		return nil, fmt.Errorf("token: %w: decimals exceed %d", common.ErrInvalidArgument, maxDecimals)
	}
	_, exists, err := e.state.TokenGet(clone.Address)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("token: %w: %s already registered", common.ErrInvalidState, symbol)
	}
	clone.Symbol = symbol
	clone.TotalSupply = big.NewInt(0)
	if err := e.state.TokenPut(clone); err != nil {
		return nil, err
	}
	return clone.Clone(), nil
}

// Token returns the metadata for addr.
func (e *Engine) Token(addr [20]byte) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	meta, ok, err := e.state.TokenGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("token: %w: token not registered", common.ErrNotFound)
	}
	return meta, nil
}

// Mint creates new supply. Only the token's minter may call it.
func (e *Engine) Mint(token, caller, to [20]byte, amount *big.Int) error {
	meta, err := e.Token(token)
	if err != nil {
		return err
	}
	if meta.Minter == ([20]byte{}) || caller != meta.Minter {
		return fmt.Errorf("token: %w: caller is not the minter", common.ErrUnauthorized)
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("token: %w: mint to zero address", common.ErrInvalidArgument)
	}
	value, err := checkAmount(amount)
	if err != nil {
		return fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	amount = value.ToBig()
	supply, err := addChecked(meta.TotalSupply, amount)
	if err != nil {
		return fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	balance, err := e.state.TokenBalance(token, to)
	if err != nil {
		return err
	}
	updated, err := addChecked(balance, amount)
	if err != nil {
		return fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	if err := e.state.SetTokenBalance(token, to, updated); err != nil {
		return err
	}
	meta.TotalSupply = supply
	if err := e.state.TokenPut(meta); err != nil {
		return err
	}
	e.emit(Transfer{Token: token, To: to, Amount: amount})
	return nil
}

// BalanceOf returns owner's balance of token.
func (e *Engine) BalanceOf(token, owner [20]byte) (*big.Int, error) {
	if _, err := e.Token(token); err != nil {
		return nil, err
	}
	return e.state.TokenBalance(token, owner)
}

// Allowance returns the amount spender may move on behalf of owner.
func (e *Engine) Allowance(token, owner, spender [20]byte) (*big.Int, error) {
	if _, err := e.Token(token); err != nil {
		return nil, err
	}
	return e.state.TokenAllowance(token, owner, spender)
}

// Approve sets the allowance spender may draw from owner's balance.
func (e *Engine) Approve(token, owner, spender [20]byte, amount *big.Int) error {
	if _, err := e.Token(token); err != nil {
		return err
	}
	if spender == ([20]byte{}) {
		return fmt.Errorf("token: %w: spender required", common.ErrInvalidArgument)
	}
	if _, err := checkAmount(amount); err != nil {
		return fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	value := big.NewInt(0)
	if amount != nil {
		value.Set(amount)
	}
	if err := e.state.SetTokenAllowance(token, owner, spender, value); err != nil {
		return err
	}
	e.emit(Approval{Token: token, Owner: owner, Spender: spender, Amount: value})
	return nil
}

// Transfer moves amount of token from one account to another.
func (e *Engine) Transfer(token, from, to [20]byte, amount *big.Int) error {
	if _, err := e.Token(token); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrUnknownToken
		}
		return err
	}
	return e.move(token, from, to, amount)
}

// TransferFrom moves amount from owner to to, consuming spender's allowance.
// The allowance and both balances change together or not at all.
func (e *Engine) TransferFrom(token, spender, from, to [20]byte, amount *big.Int) error {
	if _, err := e.Token(token); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrUnknownToken
		}
		return err
	}
	value, err := checkAmount(amount)
	if err != nil {
		return fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	amt := value.ToBig()
	allowance, err := e.state.TokenAllowance(token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return ErrInsufficientAllowance
	}
	balance, err := e.state.TokenBalance(token, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.move(token, from, to, amt); err != nil {
		return err
	}
	return e.state.SetTokenAllowance(token, from, spender, new(big.Int).Sub(allowance, amt))
}

func (e *Engine) move(token, from, to [20]byte, amount *big.Int) error {
	if to == ([20]byte{}) {
		return fmt.Errorf("token: %w: transfer to zero address", common.ErrInvalidArgument)
	}
	value, err := checkAmount(amount)
	if err != nil {
		return fmt.Errorf("token: %w: %v", common.ErrInvalidArgument, err)
	}
	amt := value.ToBig()
	fromBal, err := e.state.TokenBalance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	if from != to {
		toBal, err := e.state.TokenBalance(token, to)
		if err != nil {
			return err
		}
		credited, err := addChecked(toBal, amt)
		if err != nil {
			return fmt.Errorf("token: %w: %v", common.ErrAssetTransferFailed, err)
		}
		if err := e.state.SetTokenBalance(token, from, new(big.Int).Sub(fromBal, amt)); err != nil {
			return err
		}
		if err := e.state.SetTokenBalance(token, to, credited); err != nil {
			return err
		}
	}
	e.emit(Transfer{Token: token, From: from, To: to, Amount: amt})
	return nil
}
