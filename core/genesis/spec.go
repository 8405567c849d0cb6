package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"gigchain/crypto"
	"gigchain/native/escrow"
	"gigchain/native/identity"
	"gigchain/native/token"
)

// GenesisSpec is the JSON document that seeds an empty ledger.
type GenesisSpec struct {
	GenesisTime string                       `json:"genesisTime"`
	Admin       string                       `json:"admin"`
	Escrow      EscrowSpec                   `json:"escrow"`
	Tokens      []TokenSpec                  `json:"tokens"`
	Alloc       map[string]map[string]string `json:"alloc"` // addr -> token symbol -> amount
	Principals  []PrincipalSpec              `json:"principals"`
	Paused      []string                     `json:"paused,omitempty"`

	genesisTimestamp time.Time
	adminAddr        [20]byte
	allocations      []Allocation
}

type EscrowSpec struct {
	FeePercent   uint8  `json:"feePercent"`
	FeeRecipient string `json:"feeRecipient"`

	feeRecipientAddr [20]byte
}

type TokenSpec struct {
	// Address is optional; tokens without one live at the module address
	// derived from their symbol.
	Address  string `json:"address,omitempty"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Minter   string `json:"minter,omitempty"`

	address    [20]byte
	minterAddr [20]byte
}

type PrincipalSpec struct {
	Address    string   `json:"address"`
	Name       string   `json:"name"`
	Roles      []string `json:"roles"`
	ProfileRef string   `json:"profileRef,omitempty"`
	Inactive   bool     `json:"inactive,omitempty"`

	addr  [20]byte
	roles identity.Role
}

// Allocation is a resolved initial token balance.
type Allocation struct {
	Token  [20]byte
	Owner  [20]byte
	Amount *big.Int
}

// TokenAddress derives the default address for a token symbol.
func TokenAddress(symbol string) [20]byte {
	return crypto.ModuleAddress("token/" + strings.ToUpper(strings.TrimSpace(symbol)))
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }
func (s *GenesisSpec) AdminAddress() [20]byte       { return s.adminAddr }

// FeeRecipientAddress returns the resolved fee recipient.
func (s *GenesisSpec) FeeRecipientAddress() [20]byte { return s.Escrow.feeRecipientAddr }

// TokenMetadata returns the token registrations in symbol order.
func (s *GenesisSpec) TokenMetadata() []*token.Token {
	out := make([]*token.Token, 0, len(s.Tokens))
	for _, t := range s.Tokens {
		out = append(out, &token.Token{
			Address:  t.address,
			Symbol:   strings.ToUpper(strings.TrimSpace(t.Symbol)),
			Name:     strings.TrimSpace(t.Name),
			Decimals: t.Decimals,
			Minter:   t.minterAddr,
		})
	}
	return out
}

// Allocations returns the initial balances sorted by token then owner.
func (s *GenesisSpec) Allocations() []Allocation {
	out := make([]Allocation, len(s.allocations))
	for i, a := range s.allocations {
		out[i] = Allocation{Token: a.Token, Owner: a.Owner, Amount: new(big.Int).Set(a.Amount)}
	}
	return out
}

// PrincipalProfiles returns the principals to register in address order.
func (s *GenesisSpec) PrincipalProfiles() []*identity.Profile {
	out := make([]*identity.Profile, 0, len(s.Principals))
	for _, p := range s.Principals {
		out = append(out, &identity.Profile{
			Address:    p.addr,
			Name:       p.Name,
			Roles:      p.roles,
			ProfileRef: p.ProfileRef,
			Active:     !p.Inactive,
		})
	}
	return out
}

// EscrowConfig builds the initial escrow configuration with the supplied
// collaborator addresses.
func (s *GenesisSpec) EscrowConfig(identityDirectory, jobLedger [20]byte) *escrow.Config {
	recipient := s.Escrow.feeRecipientAddr
	if recipient == ([20]byte{}) {
		recipient = s.adminAddr
	}
	return &escrow.Config{
		Admin:             s.adminAddr,
		FeePercent:        s.Escrow.FeePercent,
		FeeRecipient:      recipient,
		IdentityDirectory: identityDirectory,
		JobLedger:         jobLedger,
	}
}

func (s *GenesisSpec) validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	admin, err := crypto.ParseAddress(s.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.adminAddr = admin

	if s.Escrow.FeePercent > escrow.MaxFeePercent {
		return fmt.Errorf("escrow.feePercent must be <= %d", escrow.MaxFeePercent)
	}
	if strings.TrimSpace(s.Escrow.FeeRecipient) != "" {
		recipient, err := crypto.ParseAddress(s.Escrow.FeeRecipient)
		if err != nil {
			return fmt.Errorf("escrow.feeRecipient: %w", err)
		}
		s.Escrow.feeRecipientAddr = recipient
	}

	sort.Slice(s.Tokens, func(i, j int) bool {
		return strings.ToUpper(s.Tokens[i].Symbol) < strings.ToUpper(s.Tokens[j].Symbol)
	})
	bySymbol := make(map[string][20]byte, len(s.Tokens))
	for i := range s.Tokens {
		tok := &s.Tokens[i]
		if err := tok.validate(admin); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if _, dup := bySymbol[symbol]; dup {
			return fmt.Errorf("duplicate token %s", symbol)
		}
		bySymbol[symbol] = tok.address
	}

	s.allocations = s.allocations[:0]
	for owner, balances := range s.Alloc {
		ownerAddr, err := crypto.ParseAddress(owner)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", owner, err)
		}
		for symbol, raw := range balances {
			tokenAddr, ok := bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
			if !ok {
				return fmt.Errorf("alloc %q: unknown token %s", owner, symbol)
			}
			amount, err := parseAmountString(raw)
			if err != nil {
				return fmt.Errorf("alloc %q %s: %w", owner, symbol, err)
			}
			if amount.Sign() == 0 {
				continue
			}
			s.allocations = append(s.allocations, Allocation{Token: tokenAddr, Owner: ownerAddr, Amount: amount})
		}
	}
	sort.Slice(s.allocations, func(i, j int) bool {
		a, b := s.allocations[i], s.allocations[j]
		if c := bytes.Compare(a.Token[:], b.Token[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.Owner[:], b.Owner[:]) < 0
	})

	seen := make(map[[20]byte]struct{}, len(s.Principals))
	for i := range s.Principals {
		p := &s.Principals[i]
		addr, err := crypto.ParseAddress(p.Address)
		if err != nil {
			return fmt.Errorf("principals[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("principals[%d]: duplicate address %s", i, p.Address)
		}
		seen[addr] = struct{}{}
		roles, err := identity.ParseRoles(p.Roles)
		if err != nil {
			return fmt.Errorf("principals[%d]: %w", i, err)
		}
		p.addr = addr
		p.roles = roles
	}
	sort.Slice(s.Principals, func(i, j int) bool {
		return bytes.Compare(s.Principals[i].addr[:], s.Principals[j].addr[:]) < 0
	})

	for _, module := range s.Paused {
		if strings.TrimSpace(module) == "" {
			return fmt.Errorf("paused: module name required")
		}
	}
	return nil
}

func (t *TokenSpec) validate(admin [20]byte) error {
	if _, err := token.NormalizeSymbol(t.Symbol); err != nil {
		return err
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("token %s: name must not be empty", t.Symbol)
	}
	if strings.TrimSpace(t.Address) == "" {
		t.address = TokenAddress(t.Symbol)
	} else {
		addr, err := crypto.ParseAddress(t.Address)
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		t.address = addr
	}
	t.minterAddr = admin
	if strings.TrimSpace(t.Minter) != "" {
		minter, err := crypto.ParseAddress(t.Minter)
		if err != nil {
			return fmt.Errorf("minter: %w", err)
		}
		t.minterAddr = minter
	}
	return nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
