package core

import (
	"context"
	"math/big"

	"gigchain/native/escrow"
)

// EscrowVault returns the account holding custody funds. Clients approve this
// address before calling EscrowDeposit.
func (n *Node) EscrowVault() [20]byte { return EscrowVaultAddress }

func (n *Node) EscrowCreateCustody(ctx context.Context, jobID uint64, token [20]byte, amount *big.Int, caller [20]byte) (*escrow.Custody, error) {
	var custody *escrow.Custody
	err := n.execute(ctx, ModuleEscrow, "create_custody", func(tx *ledgerTx) error {
		var err error
		custody, err = tx.escrow.CreateCustody(jobID, token, amount, caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return custody, nil
}

func (n *Node) EscrowDeposit(ctx context.Context, jobID uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleEscrow, "deposit", func(tx *ledgerTx) error {
		return tx.escrow.Deposit(jobID, caller)
	})
}

func (n *Node) EscrowRelease(ctx context.Context, jobID uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleEscrow, "release", func(tx *ledgerTx) error {
		return tx.escrow.Release(jobID, caller)
	})
}

func (n *Node) EscrowCancel(ctx context.Context, jobID uint64, caller [20]byte) error {
	return n.execute(ctx, ModuleEscrow, "cancel", func(tx *ledgerTx) error {
		return tx.escrow.Cancel(jobID, caller)
	})
}

func (n *Node) EscrowCustody(ctx context.Context, jobID uint64) (*escrow.Custody, error) {
	var custody *escrow.Custody
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		custody, err = tx.escrow.Custody(jobID)
		return err
	})
	return custody, err
}

func (n *Node) EscrowHeldBalance(ctx context.Context, jobID uint64) (*big.Int, error) {
	var held *big.Int
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		held, err = tx.escrow.HeldBalance(jobID)
		return err
	})
	return held, err
}

func (n *Node) EscrowConfig(ctx context.Context) (*escrow.Config, error) {
	var cfg *escrow.Config
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		cfg, err = tx.escrow.Config()
		return err
	})
	return cfg, err
}

func (n *Node) EscrowSetFeeConfig(ctx context.Context, caller [20]byte, percent uint8, recipient [20]byte) error {
	return n.administer(ctx, ModuleEscrow, "set_fee_config", func(tx *ledgerTx) error {
		return tx.escrow.SetFeeConfig(caller, percent, recipient)
	})
}

func (n *Node) EscrowSetIdentityDirectory(ctx context.Context, caller, addr [20]byte) error {
	return n.administer(ctx, ModuleEscrow, "set_identity_directory", func(tx *ledgerTx) error {
		return tx.escrow.SetIdentityDirectory(caller, addr)
	})
}

func (n *Node) EscrowSetJobLedger(ctx context.Context, caller, addr [20]byte) error {
	return n.administer(ctx, ModuleEscrow, "set_job_ledger", func(tx *ledgerTx) error {
		return tx.escrow.SetJobLedger(caller, addr)
	})
}

func (n *Node) EscrowSetAdmin(ctx context.Context, caller, next [20]byte) error {
	return n.administer(ctx, ModuleEscrow, "set_admin", func(tx *ledgerTx) error {
		return tx.escrow.SetAdmin(caller, next)
	})
}
