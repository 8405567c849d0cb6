package core

import (
	"context"
	"math/big"

	"gigchain/native/identity"
	"gigchain/native/jobs"
	"gigchain/native/token"
)

func (n *Node) RegisterPrincipal(ctx context.Context, addr [20]byte, name string, roles identity.Role, profileRef string) (*identity.Profile, error) {
	var profile *identity.Profile
	err := n.execute(ctx, ModuleIdentity, "register", func(tx *ledgerTx) error {
		var err error
		profile, err = tx.identity.Register(addr, name, roles, profileRef)
		return err
	})
	return profile, err
}

func (n *Node) UpdateProfile(ctx context.Context, caller [20]byte, name, profileRef string) error {
	return n.execute(ctx, ModuleIdentity, "update_profile", func(tx *ledgerTx) error {
		return tx.identity.UpdateProfile(caller, name, profileRef)
	})
}

// SetPrincipalActive activates or deactivates addr. The principal itself or
// the ledger administrator may call it.
func (n *Node) SetPrincipalActive(ctx context.Context, caller, addr [20]byte, active bool) error {
	return n.execute(ctx, ModuleIdentity, "set_active", func(tx *ledgerTx) error {
		return tx.identity.SetActive(caller, addr, active)
	})
}

func (n *Node) Profile(ctx context.Context, addr [20]byte) (*identity.Profile, error) {
	var profile *identity.Profile
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		profile, err = tx.identity.Profile(addr)
		return err
	})
	return profile, err
}

func (n *Node) CreateJob(ctx context.Context, client [20]byte, title, descriptionRef string, budget *big.Int, deadline uint64) (*jobs.Job, error) {
	var job *jobs.Job
	err := n.execute(ctx, ModuleJobs, "create", func(tx *ledgerTx) error {
		var err error
		job, err = tx.jobs.CreateJob(client, title, descriptionRef, budget, deadline)
		return err
	})
	return job, err
}

func (n *Node) AssignFreelancer(ctx context.Context, id uint64, caller, freelancer [20]byte) error {
	return n.execute(ctx, ModuleJobs, "assign", func(tx *ledgerTx) error {
		return tx.jobs.AssignFreelancer(id, caller, freelancer)
	})
}

func (n *Node) StartJob(ctx context.Context, id uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleJobs, "start", func(tx *ledgerTx) error {
		return tx.jobs.StartJob(id, caller)
	})
}

func (n *Node) CompleteJob(ctx context.Context, id uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleJobs, "complete", func(tx *ledgerTx) error {
		return tx.jobs.CompleteJob(id, caller)
	})
}

func (n *Node) CancelJob(ctx context.Context, id uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleJobs, "cancel", func(tx *ledgerTx) error {
		return tx.jobs.CancelJob(id, caller)
	})
}

func (n *Node) DisputeJob(ctx context.Context, id uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleJobs, "dispute", func(tx *ledgerTx) error {
		return tx.jobs.DisputeJob(id, caller)
	})
}

func (n *Node) Job(ctx context.Context, id uint64) (*jobs.Job, error) {
	var job *jobs.Job
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		job, err = tx.jobs.Job(id)
		return err
	})
	return job, err
}

func (n *Node) JobCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		count, err = tx.jobs.JobCount()
		return err
	})
	return count, err
}

func (n *Node) Token(ctx context.Context, addr [20]byte) (*token.Token, error) {
	var meta *token.Token
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		meta, err = tx.tokens.Token(addr)
		return err
	})
	return meta, err
}

// RegisterToken adds token metadata. Restricted to the ledger administrator.
func (n *Node) RegisterToken(ctx context.Context, caller [20]byte, meta *token.Token) (*token.Token, error) {
	var registered *token.Token
	err := n.execute(ctx, ModuleToken, "register", func(tx *ledgerTx) error {
		if err := requireLedgerAdmin(tx, caller); err != nil {
			return err
		}
		var err error
		registered, err = tx.tokens.Register(meta)
		return err
	})
	return registered, err
}

func (n *Node) MintToken(ctx context.Context, tok, caller, to [20]byte, amount *big.Int) error {
	return n.execute(ctx, ModuleToken, "mint", func(tx *ledgerTx) error {
		return tx.tokens.Mint(tok, caller, to, amount)
	})
}

func (n *Node) TokenApprove(ctx context.Context, tok, owner, spender [20]byte, amount *big.Int) error {
	return n.execute(ctx, ModuleToken, "approve", func(tx *ledgerTx) error {
		return tx.tokens.Approve(tok, owner, spender, amount)
	})
}

func (n *Node) TokenTransfer(ctx context.Context, tok, from, to [20]byte, amount *big.Int) error {
	return n.execute(ctx, ModuleToken, "transfer", func(tx *ledgerTx) error {
		return tx.tokens.Transfer(tok, from, to, amount)
	})
}

func (n *Node) TokenBalance(ctx context.Context, tok, owner [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		balance, err = tx.tokens.BalanceOf(tok, owner)
		return err
	})
	return balance, err
}

func (n *Node) TokenAllowance(ctx context.Context, tok, owner, spender [20]byte) (*big.Int, error) {
	var allowance *big.Int
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		allowance, err = tx.tokens.Allowance(tok, owner, spender)
		return err
	})
	return allowance, err
}
