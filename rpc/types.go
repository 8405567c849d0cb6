package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"gigchain/core/events"
	"gigchain/crypto"
	"gigchain/native/escrow"
	"gigchain/native/identity"
	"gigchain/native/jobs"
	"gigchain/native/token"
)

type call struct {
	caller [20]byte
	params json.RawMessage
}

// decode unmarshals the request's parameter object into out. Missing params
// leave out untouched.
func (c *call) decode(out interface{}) error {
	if len(c.params) == 0 || string(c.params) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.params, out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

type method struct {
	fn          func(ctx context.Context, c *call) (interface{}, error)
	needsCaller bool
}

func parseAddressParam(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return addr, nil
}

func parseAmountParam(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, invalidParams(fmt.Sprintf("%s must be a base-10 integer", field))
	}
	return amount, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type profileJSON struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Roles        string `json:"roles"`
	ProfileRef   string `json:"profileRef,omitempty"`
	Active       bool   `json:"active"`
	RegisteredAt uint64 `json:"registeredAt"`
	UpdatedAt    uint64 `json:"updatedAt"`
}

func formatProfile(p *identity.Profile) profileJSON {
	return profileJSON{
		Address:      crypto.FormatAddress(p.Address),
		Name:         p.Name,
		Roles:        p.Roles.String(),
		ProfileRef:   p.ProfileRef,
		Active:       p.Active,
		RegisteredAt: p.RegisteredAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type jobJSON struct {
	ID             uint64 `json:"id"`
	Client         string `json:"client"`
	Freelancer     string `json:"freelancer,omitempty"`
	Title          string `json:"title"`
	DescriptionRef string `json:"descriptionRef,omitempty"`
	Budget         string `json:"budget"`
	Deadline       uint64 `json:"deadline,omitempty"`
	Status         string `json:"status"`
	CreatedAt      uint64 `json:"createdAt"`
	UpdatedAt      uint64 `json:"updatedAt"`
}

func formatJob(j *jobs.Job) jobJSON {
	out := jobJSON{
		ID:             j.ID,
		Client:         crypto.FormatAddress(j.Client),
		Title:          j.Title,
		DescriptionRef: j.DescriptionRef,
		Budget:         amountString(j.Budget),
		Deadline:       j.Deadline,
		Status:         j.Status.String(),
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	if j.HasFreelancer() {
		out.Freelancer = crypto.FormatAddress(j.Freelancer)
	}
	return out
}

type tokenJSON struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	Minter      string `json:"minter"`
	TotalSupply string `json:"totalSupply"`
}

func formatToken(t *token.Token) tokenJSON {
	return tokenJSON{
		Address:     crypto.FormatAddress(t.Address),
		Symbol:      t.Symbol,
		Name:        t.Name,
		Decimals:    t.Decimals,
		Minter:      crypto.FormatAddress(t.Minter),
		TotalSupply: amountString(t.TotalSupply),
	}
}

type custodyJSON struct {
	JobID      uint64 `json:"jobId"`
	Client     string `json:"client"`
	Freelancer string `json:"freelancer"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	CreatedAt  uint64 `json:"createdAt"`
	UpdatedAt  uint64 `json:"updatedAt"`
}

func formatCustody(c *escrow.Custody) custodyJSON {
	return custodyJSON{
		JobID:      c.JobID,
		Client:     crypto.FormatAddress(c.Client),
		Freelancer: crypto.FormatAddress(c.Freelancer),
		Token:      crypto.FormatAddress(c.Token),
		Amount:     amountString(c.Amount),
		Status:     c.Status.String(),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

type escrowConfigJSON struct {
	Admin             string `json:"admin"`
	FeePercent        uint8  `json:"feePercent"`
	FeeRecipient      string `json:"feeRecipient"`
	IdentityDirectory string `json:"identityDirectory"`
	JobLedger         string `json:"jobLedger"`
}

func formatEscrowConfig(cfg *escrow.Config) escrowConfigJSON {
	return escrowConfigJSON{
		Admin:             crypto.FormatAddress(cfg.Admin),
		FeePercent:        cfg.FeePercent,
		FeeRecipient:      crypto.FormatAddress(cfg.FeeRecipient),
		IdentityDirectory: crypto.FormatAddress(cfg.IdentityDirectory),
		JobLedger:         crypto.FormatAddress(cfg.JobLedger),
	}
}

type eventJSON struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func formatEvents(records []events.Record) []eventJSON {
	out := make([]eventJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, eventJSON{Sequence: rec.Sequence, Type: rec.Event.Type, Attributes: rec.Event.Attributes})
	}
	return out
}
