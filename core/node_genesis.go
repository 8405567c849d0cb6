package core

import (
	"context"
	"fmt"

	"gigchain/core/genesis"
	"gigchain/native/common"
)

// Initialised reports whether genesis has been applied.
func (n *Node) Initialised(ctx context.Context) (bool, error) {
	var ok bool
	err := n.view(ctx, func(tx *ledgerTx) error {
		var err error
		_, ok, err = tx.state.LedgerAdmin()
		return err
	})
	return ok, err
}

// InitGenesis seeds an empty ledger from spec. Records created here carry the
// genesis timestamp. Applying genesis twice fails with ErrInvalidState.
func (n *Node) InitGenesis(ctx context.Context, spec *genesis.GenesisSpec) error {
	if spec == nil {
		return fmt.Errorf("genesis: %w: nil spec", common.ErrInvalidArgument)
	}
	genesisTime := spec.GenesisTimestamp().Unix()
	return n.execute(ctx, ModuleControl, "genesis", func(tx *ledgerTx) error {
		_, exists, err := tx.state.LedgerAdmin()
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("genesis: %w: ledger already initialised", common.ErrInvalidState)
		}
		admin := spec.AdminAddress()
		if err := tx.state.SetLedgerAdmin(admin); err != nil {
			return err
		}
		clock := func() int64 { return genesisTime }
		tx.identity.SetNowFunc(clock)
		tx.identity.SetAdmin(admin)
		tx.escrow.SetNowFunc(clock)

		minters := make(map[[20]byte][20]byte)
		for _, meta := range spec.TokenMetadata() {
			if _, err := tx.tokens.Register(meta); err != nil {
				return fmt.Errorf("genesis: token %s: %w", meta.Symbol, err)
			}
			minters[meta.Address] = meta.Minter
		}
		for _, alloc := range spec.Allocations() {
			if err := tx.tokens.Mint(alloc.Token, minters[alloc.Token], alloc.Owner, alloc.Amount); err != nil {
				return fmt.Errorf("genesis: alloc: %w", err)
			}
		}
		for _, profile := range spec.PrincipalProfiles() {
			if _, err := tx.identity.Register(profile.Address, profile.Name, profile.Roles, profile.ProfileRef); err != nil {
				return fmt.Errorf("genesis: principal %s: %w", profile.Name, err)
			}
			if !profile.Active {
				if err := tx.identity.SetActive(admin, profile.Address, false); err != nil {
					return fmt.Errorf("genesis: principal %s: %w", profile.Name, err)
				}
			}
		}
		if err := tx.escrow.InitConfig(spec.EscrowConfig(IdentityModuleAddress, JobsModuleAddress)); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		for _, module := range spec.Paused {
			if err := tx.state.SetPaused(module, true); err != nil {
				return err
			}
		}
		return nil
	})
}
