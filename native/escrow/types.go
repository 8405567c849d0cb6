package escrow

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states of a custody record.
type Status uint8

const (
	StatusCreated Status = iota
	StatusFunded
	StatusReleased
	StatusCancelled
	// StatusDisputed is reserved; no transition reaches it.
	StatusDisputed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusFunded, StatusReleased, StatusCancelled, StatusDisputed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusCancelled
}

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFunded:
		return "funded"
	case StatusReleased:
		return "released"
	case StatusCancelled:
		return "cancelled"
	case StatusDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Custody tracks the funds held for a single job. Client, Freelancer, Token
// and Amount are fixed at creation; only Status and UpdatedAt change.
type Custody struct {
	JobID      uint64
	Client     [20]byte
	Freelancer [20]byte
	Token      [20]byte
	Amount     *big.Int
	Status     Status
	CreatedAt  uint64
	UpdatedAt  uint64
}

// Exists reports whether the record was ever created. A zero client marks an
// absent record.
func (c *Custody) Exists() bool {
	return c != nil && c.Client != ([20]byte{})
}

// Clone returns a deep copy of the custody record so callers can safely mutate
// the copy without affecting the stored instance.
func (c *Custody) Clone() *Custody {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeCustody validates a record before it is persisted and returns a
// normalised clone.
func SanitizeCustody(c *Custody) (*Custody, error) {
	if c == nil {
		return nil, fmt.Errorf("nil custody")
	}
	clone := c.Clone()
	if clone.JobID == 0 {
		return nil, fmt.Errorf("custody job id must be non-zero")
	}
	if !clone.Exists() {
		return nil, fmt.Errorf("custody client required")
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("custody amount must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid custody status: %d", clone.Status)
	}
	return clone, nil
}

// MaxFeePercent bounds the platform fee.
const MaxFeePercent = 100

// Config is the process-wide escrow configuration owned by the administrator.
type Config struct {
	Admin             [20]byte
	FeePercent        uint8
	FeeRecipient      [20]byte
	IdentityDirectory [20]byte
	JobLedger         [20]byte
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil escrow config")
	}
	if c.Admin == ([20]byte{}) {
		return fmt.Errorf("escrow admin required")
	}
	if c.FeePercent > MaxFeePercent {
		return fmt.Errorf("fee percent %d exceeds %d", c.FeePercent, MaxFeePercent)
	}
	if c.FeeRecipient == ([20]byte{}) {
		return fmt.Errorf("fee recipient required")
	}
	if c.IdentityDirectory == ([20]byte{}) {
		return fmt.Errorf("identity directory address required")
	}
	if c.JobLedger == ([20]byte{}) {
		return fmt.Errorf("job ledger address required")
	}
	return nil
}

// SplitFee computes floor(amount*percent/100) as the platform fee and assigns
// the remainder, including any rounding unit, to the payout.
func SplitFee(amount *big.Int, percent uint8) (fee, payout *big.Int) {
	total := big.NewInt(0)
	if amount != nil {
		total.Set(amount)
	}
	fee = new(big.Int).Mul(total, big.NewInt(int64(percent)))
	fee.Div(fee, big.NewInt(100))
	payout = new(big.Int).Sub(total, fee)
	return fee, payout
}
