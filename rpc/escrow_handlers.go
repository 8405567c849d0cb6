package rpc

import (
	"context"
	"math"

	"gigchain/crypto"
)

type jobIDParams struct {
	JobID uint64 `json:"jobId"`
}

type escrowCreateParams struct {
	JobID  uint64 `json:"jobId"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type feeConfigParams struct {
	FeePercent   uint8  `json:"feePercent"`
	FeeRecipient string `json:"feeRecipient"`
}

type addressParams struct {
	Address string `json:"address"`
}

type pauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type eventsListParams struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleEscrowVault(context.Context, *call) (interface{}, error) {
	return map[string]string{"address": crypto.FormatAddress(s.node.EscrowVault())}, nil
}

func (s *Server) handleEscrowCreateCustody(ctx context.Context, c *call) (interface{}, error) {
	var p escrowCreateParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	tok, err := parseAddressParam("token", p.Token)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountParam("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	custody, err := s.node.EscrowCreateCustody(ctx, p.JobID, tok, amount, c.caller)
	if err != nil {
		return nil, err
	}
	return formatCustody(custody), nil
}

// custodyAction adapts a settlement call taking (jobID, caller).
func (s *Server) custodyAction(action func(ctx context.Context, jobID uint64, caller [20]byte) error) func(context.Context, *call) (interface{}, error) {
	return func(ctx context.Context, c *call) (interface{}, error) {
		var p jobIDParams
		if err := c.decode(&p); err != nil {
			return nil, err
		}
		if err := action(ctx, p.JobID, c.caller); err != nil {
			return nil, err
		}
		custody, err := s.node.EscrowCustody(ctx, p.JobID)
		if err != nil {
			return nil, err
		}
		return formatCustody(custody), nil
	}
}

func (s *Server) handleEscrowGet(ctx context.Context, c *call) (interface{}, error) {
	var p jobIDParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	custody, err := s.node.EscrowCustody(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	return formatCustody(custody), nil
}

func (s *Server) handleEscrowHeldBalance(ctx context.Context, c *call) (interface{}, error) {
	var p jobIDParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	held, err := s.node.EscrowHeldBalance(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount": amountString(held)}, nil
}

func (s *Server) handleEscrowConfig(ctx context.Context, _ *call) (interface{}, error) {
	cfg, err := s.node.EscrowConfig(ctx)
	if err != nil {
		return nil, err
	}
	return formatEscrowConfig(cfg), nil
}

func (s *Server) handleEscrowSetFeeConfig(ctx context.Context, c *call) (interface{}, error) {
	var p feeConfigParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	recipient, err := parseAddressParam("feeRecipient", p.FeeRecipient)
	if err != nil {
		return nil, err
	}
	if err := s.node.EscrowSetFeeConfig(ctx, c.caller, p.FeePercent, recipient); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

// escrowAddressSetter adapts the admin calls that rebind one address.
func (s *Server) escrowAddressSetter(set func(ctx context.Context, caller, addr [20]byte) error) func(context.Context, *call) (interface{}, error) {
	return func(ctx context.Context, c *call) (interface{}, error) {
		var p addressParams
		if err := c.decode(&p); err != nil {
			return nil, err
		}
		addr, err := parseAddressParam("address", p.Address)
		if err != nil {
			return nil, err
		}
		if err := set(ctx, c.caller, addr); err != nil {
			return nil, err
		}
		return okResult{OK: true}, nil
	}
}

func (s *Server) handleControlSetPaused(ctx context.Context, c *call) (interface{}, error) {
	var p pauseParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	if err := s.node.SetModulePaused(ctx, c.caller, p.Module, p.Paused); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleControlPaused(ctx context.Context, c *call) (interface{}, error) {
	var p pauseParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	paused, err := s.node.ModulePaused(ctx, p.Module)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"paused": paused}, nil
}

func (s *Server) handleEventsList(ctx context.Context, c *call) (interface{}, error) {
	var p eventsListParams
	if err := c.decode(&p); err != nil {
		return nil, err
	}
	if p.Limit < 0 || p.Limit > math.MaxInt32 {
		return nil, invalidParams("limit out of range")
	}
	records, err := s.node.Events(ctx, p.From, p.Limit)
	if err != nil {
		return nil, err
	}
	return formatEvents(records), nil
}
