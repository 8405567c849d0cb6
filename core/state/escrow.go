package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"gigchain/native/escrow"
)

var (
	custodyRecordPrefix  = []byte("escrow/custody/")
	custodyBalancePrefix = []byte("escrow/held/")
	escrowConfigKey      = []byte("escrow/config")
)

func custodyRecordKey(jobID uint64) []byte {
	buf := make([]byte, len(custodyRecordPrefix)+8)
	copy(buf, custodyRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(custodyRecordPrefix):], jobID)
	return buf
}

func custodyBalanceKey(jobID uint64, token [20]byte) []byte {
	buf := make([]byte, len(custodyBalancePrefix)+8+len(token))
	copy(buf, custodyBalancePrefix)
	binary.BigEndian.PutUint64(buf[len(custodyBalancePrefix):], jobID)
	copy(buf[len(custodyBalancePrefix)+8:], token[:])
	return buf
}

type storedCustody struct {
	JobID      uint64
	Client     [20]byte
	Freelancer [20]byte
	Token      [20]byte
	Amount     *big.Int
	Status     uint8
	CreatedAt  uint64
	UpdatedAt  uint64
}

func newStoredCustody(c *escrow.Custody) *storedCustody {
	return &storedCustody{
		JobID:      c.JobID,
		Client:     c.Client,
		Freelancer: c.Freelancer,
		Token:      c.Token,
		Amount:     new(big.Int).Set(c.Amount),
		Status:     uint8(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (s *storedCustody) toCustody() (*escrow.Custody, error) {
	out := &escrow.Custody{
		JobID:      s.JobID,
		Client:     s.Client,
		Freelancer: s.Freelancer,
		Token:      s.Token,
		Amount:     big.NewInt(0),
		Status:     escrow.Status(s.Status),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.Amount != nil {
		out.Amount.Set(s.Amount)
	}
	if !out.Status.Valid() {
		return nil, fmt.Errorf("escrow: stored custody has invalid status %d", s.Status)
	}
	return out, nil
}

// CustodyPut validates and persists a custody record.
func (m *Manager) CustodyPut(c *escrow.Custody) error {
	sanitized, err := escrow.SanitizeCustody(c)
	if err != nil {
		return err
	}
	return m.KVPut(custodyRecordKey(sanitized.JobID), newStoredCustody(sanitized))
}

// CustodyGet loads the custody record for jobID.
func (m *Manager) CustodyGet(jobID uint64) (*escrow.Custody, bool, error) {
	var record storedCustody
	ok, err := m.KVGet(custodyRecordKey(jobID), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	custody, err := record.toCustody()
	if err != nil {
		return nil, false, err
	}
	return custody, true, nil
}

// CustodyBalance returns the amount of token held for jobID.
func (m *Manager) CustodyBalance(jobID uint64, token [20]byte) (*big.Int, error) {
	return m.loadAmount(custodyBalanceKey(jobID, token))
}

// CustodyCredit increases the amount of token held for jobID.
func (m *Manager) CustodyCredit(jobID uint64, token [20]byte, amt *big.Int) error {
	if amt == nil || amt.Sign() <= 0 {
		return fmt.Errorf("escrow: credit amount must be positive")
	}
	key := custodyBalanceKey(jobID, token)
	current, err := m.loadAmount(key)
	if err != nil {
		return err
	}
	return m.storeAmount(key, new(big.Int).Add(current, amt))
}

// CustodyDebit decreases the amount of token held for jobID. Debits larger
// than the held balance fail.
func (m *Manager) CustodyDebit(jobID uint64, token [20]byte, amt *big.Int) error {
	if amt == nil || amt.Sign() <= 0 {
		return fmt.Errorf("escrow: debit amount must be positive")
	}
	key := custodyBalanceKey(jobID, token)
	current, err := m.loadAmount(key)
	if err != nil {
		return err
	}
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("escrow: insufficient custody balance")
	}
	return m.storeAmount(key, new(big.Int).Sub(current, amt))
}

type storedEscrowConfig struct {
	Admin             [20]byte
	FeePercent        uint8
	FeeRecipient      [20]byte
	IdentityDirectory [20]byte
	JobLedger         [20]byte
}

// EscrowConfig loads the escrow configuration.
func (m *Manager) EscrowConfig() (*escrow.Config, bool, error) {
	var record storedEscrowConfig
	ok, err := m.KVGet(escrowConfigKey, &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &escrow.Config{
		Admin:             record.Admin,
		FeePercent:        record.FeePercent,
		FeeRecipient:      record.FeeRecipient,
		IdentityDirectory: record.IdentityDirectory,
		JobLedger:         record.JobLedger,
	}, true, nil
}

// PutEscrowConfig validates and persists the escrow configuration.
func (m *Manager) PutEscrowConfig(cfg *escrow.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return m.KVPut(escrowConfigKey, storedEscrowConfig{
		Admin:             cfg.Admin,
		FeePercent:        cfg.FeePercent,
		FeeRecipient:      cfg.FeeRecipient,
		IdentityDirectory: cfg.IdentityDirectory,
		JobLedger:         cfg.JobLedger,
	})
}
