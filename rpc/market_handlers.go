package rpc

import (
	"context"
	"math/big"
	"strings"

	"gigchain/core/genesis"
	"gigchain/native/identity"
	"gigchain/native/token"
)

func (s *Server) routes() map[string]method {
	read := func(fn func(context.Context, *call) (interface{}, error)) method { return method{fn: fn} }
	write := func(fn func(context.Context, *call) (interface{}, error)) method {
		return method{fn: fn, needsCaller: true}
	}
	return map[string]method{
		"identity_register":      write(s.handleIdentityRegister),
		"identity_updateProfile": write(s.handleIdentityUpdateProfile),
		"identity_setActive":     write(s.handleIdentitySetActive),
		"identity_get":           read(s.handleIdentityGet),

		"jobs_create":   write(s.handleJobsCreate),
		"jobs_assign":   write(s.handleJobsAssign),
		"jobs_start":    write(s.jobAction(s.node.StartJob)),
		"jobs_complete": write(s.jobAction(s.node.CompleteJob)),
		"jobs_cancel":   write(s.jobAction(s.node.CancelJob)),
		"jobs_dispute":  write(s.jobAction(s.node.DisputeJob)),
		"jobs_get":      read(s.handleJobsGet),
		"jobs_count":    read(s.handleJobsCount),

		"token_register":  write(s.handleTokenRegister),
		"token_mint":      write(s.handleTokenMint),
		"token_approve":   write(s.handleTokenApprove),
		"token_transfer":  write(s.handleTokenTransfer),
		"token_get":       read(s.handleTokenGet),
		"token_balance":   read(s.handleTokenBalance),
		"token_allowance": read(s.handleTokenAllowance),

		"escrow_vault":                read(s.handleEscrowVault),
		"escrow_createCustody":        write(s.handleEscrowCreateCustody),
		"escrow_deposit":              write(s.custodyAction(s.node.EscrowDeposit)),
		"escrow_release":              write(s.custodyAction(s.node.EscrowRelease)),
		"escrow_cancel":               write(s.custodyAction(s.node.EscrowCancel)),
		"escrow_get":                  read(s.handleEscrowGet),
		"escrow_heldBalance":          read(s.handleEscrowHeldBalance),
		"escrow_config":               read(s.handleEscrowConfig),
		"escrow_setFeeConfig":         write(s.handleEscrowSetFeeConfig),
		"escrow_setIdentityDirectory": write(s.escrowAddressSetter(s.node.EscrowSetIdentityDirectory)),
		"escrow_setJobLedger":         write(s.escrowAddressSetter(s.node.EscrowSetJobLedger)),
		"escrow_setAdmin":             write(s.escrowAddressSetter(s.node.EscrowSetAdmin)),

		"control_setPaused": write(s.handleControlSetPaused),
		"control_paused":    read(s.handleControlPaused),
		"events_list":       read(s.handleEventsList),
	}
}

type identityRegisterParams struct {
	Name       string   `json:"name"`
	Roles      []string `json:"roles"`
	ProfileRef string   `json:"profileRef"`
}

type identitySetActiveParams struct {
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

type jobCreateParams struct {
	Title          string `json:"title"`
	DescriptionRef string `json:"descriptionRef"`
	Budget         string `json:"budget"`
	Deadline       uint64 `json:"deadline"`
}

type jobAssignParams struct {
	ID         uint64 `json:"id"`
	Freelancer string `json:"freelancer"`
}

type jobIDOnly struct {
	ID uint64 `json:"id"`
}

type tokenRegisterParams struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Minter   string `json:"minter"`
}

type tokenAmountParams struct {
	Token   string `json:"token"`
	To      string `json:"to"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenQueryParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

// The caller registers itself; principals cannot be registered on behalf of
// another address.
func (s *Server) handleIdentityRegister(ctx context.Context, c *call) (interface{}, error) {
	var p identityRegisterParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	roles, err := identity.ParseRoles(p.Roles)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	profile, err := s.node.RegisterPrincipal(ctx, c.caller, p.Name, roles, p.ProfileRef)
	if err != nil {
		return nil, err
	}
	return formatProfile(profile), nil
}

func (s *Server) handleIdentityUpdateProfile(ctx context.Context, c *call) (interface{}, error) {
	var p identityRegisterParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	if err := s.node.UpdateProfile(ctx, c.caller, p.Name, p.ProfileRef); err != nil {
		return nil, err
	}
	profile, err := s.node.Profile(ctx, c.caller)
	if err != nil {
		return nil, err
	}
	return formatProfile(profile), nil
}

func (s *Server) handleIdentitySetActive(ctx context.Context, c *call) (interface{}, error) {
	var p identitySetActiveParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	addr := c.caller
	if strings.TrimSpace(p.Address) != "" {
		parsed, err := parseAddressParam("address", p.Address)
		if err != nil {
			return nil, err
		}
		addr = parsed
	}
	if err := s.node.SetPrincipalActive(ctx, c.caller, addr, p.Active); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleIdentityGet(ctx context.Context, c *call) (interface{}, error) {
	var p addressParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	addr, err := parseAddressParam("address", p.Address)
	if err != nil {
		return nil, err
	}
	profile, err := s.node.Profile(ctx, addr)
	if err != nil {
		return nil, err
	}
	return formatProfile(profile), nil
}

func (s *Server) handleJobsCreate(ctx context.Context, c *call) (interface{}, error) {
	var p jobCreateParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	var budget *big.Int
	if strings.TrimSpace(p.Budget) != "" {
		parsed, err := parseAmountParam("budget", p.Budget)
		if err != nil {
			return nil, err
		}
		budget = parsed
	}
	job, err := s.node.CreateJob(ctx, c.caller, p.Title, p.DescriptionRef, budget, p.Deadline)
	if err != nil {
		return nil, err
	}
	return formatJob(job), nil
}

func (s *Server) handleJobsAssign(ctx context.Context, c *call) (interface{}, error) {
	var p jobAssignParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	freelancer, err := parseAddressParam("freelancer", p.Freelancer)
	if err != nil {
		return nil, err
	}
	if err := s.node.AssignFreelancer(ctx, p.ID, c.caller, freelancer); err != nil {
		return nil, err
	}
	return s.jobResult(ctx, p.ID)
}

func (s *Server) jobAction(action func(ctx context.Context, id uint64, caller [20]byte) error) func(context.Context, *call) (interface{}, error) {
	return func(ctx context.Context, c *call) (interface{}, error) {
		var p jobIDOnly
		if err := c.decode(&p); err != nil {
			return nil, err
		}
		if err := action(ctx, p.ID, c.caller); err != nil {
			return nil, err
		}
		return s.jobResult(ctx, p.ID)
	}
}

func (s *Server) jobResult(ctx context.Context, id uint64) (interface{}, error) {
	job, err := s.node.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	return formatJob(job), nil
}

func (s *Server) handleJobsGet(ctx context.Context, c *call) (interface{}, error) {
	var p jobIDOnly
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	return s.jobResult(ctx, p.ID)
}

func (s *Server) handleJobsCount(ctx context.Context, _ *call) (interface{}, error) {
	count, err := s.node.JobCount(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"count": count}, nil
}

func (s *Server) handleTokenRegister(ctx context.Context, c *call) (interface{}, error) {
	var p tokenRegisterParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	meta := &token.Token{Symbol: p.Symbol, Name: p.Name, Decimals: p.Decimals, Minter: c.caller}
	if strings.TrimSpace(p.Address) != "" {
		addr, err := parseAddressParam("address", p.Address)
		if err != nil {
			return nil, err
		}
		meta.Address = addr
	} else {
		meta.Address = genesis.TokenAddress(p.Symbol)
	}
	if strings.TrimSpace(p.Minter) != "" {
		minter, err := parseAddressParam("minter", p.Minter)
		if err != nil {
			return nil, err
		}
		meta.Minter = minter
	}
	registered, err := s.node.RegisterToken(ctx, c.caller, meta)
	if err != nil {
		return nil, err
	}
	return formatToken(registered), nil
}

func (s *Server) handleTokenMint(ctx context.Context, c *call) (interface{}, error) {
	var p tokenAmountParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, to, amount, err := parseTokenMove(p.Token, "to", p.To, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.MintToken(ctx, tok, c.caller, to, amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleTokenApprove(ctx context.Context, c *call) (interface{}, error) {
	var p tokenAmountParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, spender, amount, err := parseTokenMove(p.Token, "spender", p.Spender, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.TokenApprove(ctx, tok, c.caller, spender, amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleTokenTransfer(ctx context.Context, c *call) (interface{}, error) {
	var p tokenAmountParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, to, amount, err := parseTokenMove(p.Token, "to", p.To, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.TokenTransfer(ctx, tok, c.caller, to, amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func parseTokenMove(tokenStr, counterpartyField, counterparty, amountStr string) ([20]byte, [20]byte, *big.Int, error) {
	tok, err := parseAddressParam("token", tokenStr)
	if err != nil {
		return [20]byte{}, [20]byte{}, nil, err
	}
	other, err := parseAddressParam(counterpartyField, counterparty)
	if err != nil {
		return [20]byte{}, [20]byte{}, nil, err
	}
	amount, err := parseAmountParam("amount", amountStr)
	if err != nil {
		return [20]byte{}, [20]byte{}, nil, err
	}
	return tok, other, amount, nil
}

func (s *Server) handleTokenGet(ctx context.Context, c *call) (interface{}, error) {
	var p tokenQueryParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, err := parseAddressParam("token", p.Token)
	if err != nil {
		return nil, err
	}
	meta, err := s.node.Token(ctx, tok)
	if err != nil {
		return nil, err
	}
	return formatToken(meta), nil
}

func (s *Server) handleTokenBalance(ctx context.Context, c *call) (interface{}, error) {
	var p tokenQueryParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, err := parseAddressParam("token", p.Token)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddressParam("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.TokenBalance(ctx, tok, owner)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": amountString(balance)}, nil
}

func (s *Server) handleTokenAllowance(ctx context.Context, c *call) (interface{}, error) {
	var p tokenQueryParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, err := parseAddressParam("token", p.Token)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddressParam("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddressParam("spender", p.Spender)
	if err != nil {
		return nil, err
	}
	allowance, err := s.node.TokenAllowance(ctx, tok, owner, spender)
	if err != nil {
		return nil, err
	}
	return map[string]string{"allowance": amountString(allowance)}, nil
}
