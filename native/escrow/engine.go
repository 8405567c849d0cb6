package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"gigchain/core/events"
	"gigchain/core/types"
	"gigchain/native/common"
	"gigchain/native/identity"
	"gigchain/native/jobs"
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilAssets = errors.New("escrow engine: asset ledger not configured")
	errNilVault  = errors.New("escrow engine: vault not configured")
)

type engineState interface {
	CustodyPut(*Custody) error
	CustodyGet(jobID uint64) (*Custody, bool, error)
	CustodyCredit(jobID uint64, token [20]byte, amt *big.Int) error
	CustodyDebit(jobID uint64, token [20]byte, amt *big.Int) error
	CustodyBalance(jobID uint64, token [20]byte) (*big.Int, error)
	EscrowConfig() (*Config, bool, error)
	PutEscrowConfig(*Config) error
}

// AssetLedger moves fungible balances on behalf of the engine.
type AssetLedger interface {
	Transfer(token, from, to [20]byte, amount *big.Int) error
	TransferFrom(token, spender, from, to [20]byte, amount *big.Int) error
}

// IdentityDirectory is the principal registry consulted when custody is
// opened.
type IdentityDirectory interface {
	IsRegistered(addr [20]byte) (bool, error)
	Profile(addr [20]byte) (*identity.Profile, error)
}

// JobLedger exposes the job records custody is opened against.
type JobLedger interface {
	Job(id uint64) (*jobs.Job, error)
}

// Collaborators resolves the configured collaborator addresses to live
// module handles.
type Collaborators interface {
	IdentityDirectoryAt(addr [20]byte) (IdentityDirectory, bool)
	JobLedgerAt(addr [20]byte) (JobLedger, bool)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine holds client funds for assigned jobs and settles them exactly once,
// either to the freelancer minus the platform fee or back to the client.
type Engine struct {
	state         engineState
	assets        AssetLedger
	collaborators Collaborators
	vault         [20]byte
	emitter       events.Emitter
	nowFn         func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the token ledger used for deposits and payouts.
func (e *Engine) SetAssets(assets AssetLedger) { e.assets = assets }

// SetCollaborators configures the resolver for the identity directory and job
// ledger addresses stored in the configuration.
func (e *Engine) SetCollaborators(c Collaborators) { e.collaborators = c }

// SetVault configures the account that holds custody funds.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// InitConfig stores the initial configuration. It fails once a configuration
// exists; later changes go through the administrator operations.
func (e *Engine) InitConfig(cfg *Config) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("escrow: %w: %v", common.ErrInvalidArgument, err)
	}
	if err := e.checkFeeRecipient(cfg.FeeRecipient); err != nil {
		return err
	}
	_, exists, err := e.state.EscrowConfig()
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("escrow: %w: config already initialised", common.ErrInvalidState)
	}
	return e.state.PutEscrowConfig(cfg.Clone())
}

// Config returns the current configuration.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok, err := e.state.EscrowConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("escrow: %w: config not initialised", common.ErrPreconditionFailed)
	}
	return cfg, nil
}

// CreateCustody opens a custody record for an assigned job. The caller must be
// the job's client and both parties must be active principals.
func (e *Engine) CreateCustody(jobID uint64, token [20]byte, amount *big.Int, caller [20]byte) (*Custody, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if token == ([20]byte{}) {
		return nil, fmt.Errorf("escrow: %w: token required", common.ErrInvalidArgument)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: %w: amount must be positive", common.ErrInvalidArgument)
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	ledger, directory, err := e.resolve(cfg)
	if err != nil {
		return nil, err
	}
	job, err := ledger.Job(jobID)
	if err != nil {
		return nil, fmt.Errorf("escrow: job %d: %w", jobID, err)
	}
	if job.Client != caller {
		return nil, fmt.Errorf("escrow: %w: caller is not the job client", common.ErrUnauthorized)
	}
	if job.Status != jobs.StatusAssigned {
		return nil, fmt.Errorf("escrow: %w: job is %s, want assigned", common.ErrPreconditionFailed, job.Status)
	}
	if !job.HasFreelancer() {
		return nil, fmt.Errorf("escrow: %w: job has no freelancer", common.ErrPreconditionFailed)
	}
	_, exists, err := e.state.CustodyGet(jobID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("escrow: %w: custody already exists for job %d", common.ErrInvalidState, jobID)
	}
	if err := requireActive(directory, job.Freelancer, "freelancer"); err != nil {
		return nil, err
	}
	if err := requireActive(directory, caller, "client"); err != nil {
		return nil, err
	}
	now := uint64(e.now())
	custody := &Custody{
		JobID:      jobID,
		Client:     caller,
		Freelancer: job.Freelancer,
		Token:      token,
		Amount:     new(big.Int).Set(amount),
		Status:     StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store(custody); err != nil {
		return nil, err
	}
	e.emit(NewCustodyCreatedEvent(custody))
	return custody.Clone(), nil
}

// Deposit pulls the custody amount from the client into the vault. The client
// must have approved the vault to spend at least the amount.
func (e *Engine) Deposit(jobID uint64, caller [20]byte) error {
	custody, err := e.loadForClient(jobID, caller, StatusCreated)
	if err != nil {
		return err
	}
	if err := e.requireAssets(); err != nil {
		return err
	}
	if err := e.assets.TransferFrom(custody.Token, e.vault, custody.Client, e.vault, custody.Amount); err != nil {
		return transferError(err)
	}
	if err := e.state.CustodyCredit(jobID, custody.Token, custody.Amount); err != nil {
		return err
	}
	now := e.now()
	custody.Status = StatusFunded
	custody.UpdatedAt = uint64(now)
	if err := e.store(custody); err != nil {
		return err
	}
	e.emit(NewCustodyFundedEvent(custody, now))
	return nil
}

// Release pays the freelancer the custody amount minus the platform fee. The
// fee transfer happens first and a zero fee is skipped.
func (e *Engine) Release(jobID uint64, caller [20]byte) error {
	custody, err := e.loadForClient(jobID, caller, StatusFunded)
	if err != nil {
		return err
	}
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	fee, payout := SplitFee(custody.Amount, cfg.FeePercent)
	if payout.Sign() <= 0 {
		return fmt.Errorf("escrow: %w: payout must be positive", common.ErrInvalidArgument)
	}
	if err := e.requireAssets(); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := e.assets.Transfer(custody.Token, e.vault, cfg.FeeRecipient, fee); err != nil {
			return transferError(err)
		}
	}
	if err := e.assets.Transfer(custody.Token, e.vault, custody.Freelancer, payout); err != nil {
		return transferError(err)
	}
	if err := e.state.CustodyDebit(jobID, custody.Token, custody.Amount); err != nil {
		return err
	}
	now := e.now()
	custody.Status = StatusReleased
	custody.UpdatedAt = uint64(now)
	if err := e.store(custody); err != nil {
		return err
	}
	e.emit(NewCustodyReleasedEvent(custody, payout, fee, now))
	return nil
}

// Cancel refunds the full custody amount to the client. Only funded custody can
// be cancelled.
func (e *Engine) Cancel(jobID uint64, caller [20]byte) error {
	custody, err := e.loadForClient(jobID, caller, StatusFunded)
	if err != nil {
		return err
	}
	if err := e.requireAssets(); err != nil {
		return err
	}
	if err := e.assets.Transfer(custody.Token, e.vault, custody.Client, custody.Amount); err != nil {
		return transferError(err)
	}
	if err := e.state.CustodyDebit(jobID, custody.Token, custody.Amount); err != nil {
		return err
	}
	now := e.now()
	custody.Status = StatusCancelled
	custody.UpdatedAt = uint64(now)
	if err := e.store(custody); err != nil {
		return err
	}
	e.emit(NewCustodyCancelledEvent(custody, now))
	return nil
}

// Custody returns the record for jobID.
func (e *Engine) Custody(jobID uint64) (*Custody, error) {
	return e.load(jobID)
}

// HeldBalance returns the amount currently held for jobID.
func (e *Engine) HeldBalance(jobID uint64) (*big.Int, error) {
	custody, err := e.load(jobID)
	if err != nil {
		return nil, err
	}
	return e.state.CustodyBalance(jobID, custody.Token)
}

// SetFeeConfig updates the platform fee. Restricted to the administrator.
func (e *Engine) SetFeeConfig(caller [20]byte, percent uint8, recipient [20]byte) error {
	cfg, err := e.adminConfig(caller)
	if err != nil {
		return err
	}
	if percent > MaxFeePercent {
		return fmt.Errorf("escrow: %w: fee percent %d exceeds %d", common.ErrInvalidArgument, percent, MaxFeePercent)
	}
	if recipient == ([20]byte{}) {
		return fmt.Errorf("escrow: %w: fee recipient required", common.ErrInvalidArgument)
	}
	if err := e.checkFeeRecipient(recipient); err != nil {
		return err
	}
	cfg.FeePercent = percent
	cfg.FeeRecipient = recipient
	if err := e.state.PutEscrowConfig(cfg); err != nil {
		return err
	}
	e.emit(NewFeeConfigUpdatedEvent(percent, recipient))
	return nil
}

// SetIdentityDirectory rebinds the identity directory consulted by
// CreateCustody.
func (e *Engine) SetIdentityDirectory(caller, addr [20]byte) error {
	return e.setCollaborator(caller, addr, CollaboratorIdentityDirectory, func(cfg *Config) {
		cfg.IdentityDirectory = addr
	})
}

// SetJobLedger rebinds the job ledger consulted by CreateCustody.
func (e *Engine) SetJobLedger(caller, addr [20]byte) error {
	return e.setCollaborator(caller, addr, CollaboratorJobLedger, func(cfg *Config) {
		cfg.JobLedger = addr
	})
}

// SetAdmin hands administration to next.
func (e *Engine) SetAdmin(caller, next [20]byte) error {
	cfg, err := e.adminConfig(caller)
	if err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return fmt.Errorf("escrow: %w: admin required", common.ErrInvalidArgument)
	}
	previous := cfg.Admin
	cfg.Admin = next
	if err := e.state.PutEscrowConfig(cfg); err != nil {
		return err
	}
	e.emit(NewAdminUpdatedEvent(previous, next))
	return nil
}

func (e *Engine) setCollaborator(caller, addr [20]byte, kind string, apply func(*Config)) error {
	cfg, err := e.adminConfig(caller)
	if err != nil {
		return err
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("escrow: %w: %s address required", common.ErrInvalidArgument, kind)
	}
	apply(cfg)
	if err := e.state.PutEscrowConfig(cfg); err != nil {
		return err
	}
	e.emit(NewCollaboratorUpdatedEvent(kind, addr))
	return nil
}

func (e *Engine) adminConfig(caller [20]byte) (*Config, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Admin {
		return nil, fmt.Errorf("escrow: %w: caller is not the administrator", common.ErrUnauthorized)
	}
	return cfg, nil
}

func (e *Engine) resolve(cfg *Config) (JobLedger, IdentityDirectory, error) {
	if e.collaborators == nil {
		return nil, nil, fmt.Errorf("escrow: %w: collaborators not configured", common.ErrPreconditionFailed)
	}
	ledger, ok := e.collaborators.JobLedgerAt(cfg.JobLedger)
	if !ok || ledger == nil {
		return nil, nil, fmt.Errorf("escrow: %w: no job ledger at configured address", common.ErrPreconditionFailed)
	}
	directory, ok := e.collaborators.IdentityDirectoryAt(cfg.IdentityDirectory)
	if !ok || directory == nil {
		return nil, nil, fmt.Errorf("escrow: %w: no identity directory at configured address", common.ErrPreconditionFailed)
	}
	return ledger, directory, nil
}

func requireActive(directory IdentityDirectory, addr [20]byte, label string) error {
	registered, err := directory.IsRegistered(addr)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("escrow: %w: %s is not registered", common.ErrPreconditionFailed, label)
	}
	profile, err := directory.Profile(addr)
	if err != nil {
		return fmt.Errorf("escrow: %w: %s profile: %v", common.ErrPreconditionFailed, label, err)
	}
	if !profile.Active {
		return fmt.Errorf("escrow: %w: %s is not active", common.ErrPreconditionFailed, label)
	}
	return nil
}

func (e *Engine) requireAssets() error {
	if e.assets == nil {
		return errNilAssets
	}
	if e.vault == ([20]byte{}) {
		return errNilVault
	}
	return nil
}

// checkFeeRecipient rejects the vault as fee recipient. A fee paid to the
// vault would stay in it untracked by any custody.
func (e *Engine) checkFeeRecipient(recipient [20]byte) error {
	if e.vault != ([20]byte{}) && recipient == e.vault {
		return fmt.Errorf("escrow: %w: fee recipient cannot be the escrow vault", common.ErrInvalidArgument)
	}
	return nil
}

func transferError(err error) error {
	return fmt.Errorf("escrow: %w: %v", common.ErrAssetTransferFailed, err)
}

func (e *Engine) loadForClient(jobID uint64, caller [20]byte, want Status) (*Custody, error) {
	custody, err := e.load(jobID)
	if err != nil {
		return nil, err
	}
	if custody.Client != caller {
		return nil, fmt.Errorf("escrow: %w: caller is not the custody client", common.ErrUnauthorized)
	}
	if custody.Status != want {
		return nil, fmt.Errorf("escrow: %w: custody is %s, want %s", common.ErrInvalidState, custody.Status, want)
	}
	return custody, nil
}

func (e *Engine) load(jobID uint64) (*Custody, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	custody, ok, err := e.state.CustodyGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok || !custody.Exists() {
		return nil, fmt.Errorf("escrow: %w: no custody for job %d", common.ErrNotFound, jobID)
	}
	return custody, nil
}

func (e *Engine) store(custody *Custody) error {
	sanitized, err := SanitizeCustody(custody)
	if err != nil {
		return fmt.Errorf("escrow: %w: %v", common.ErrInvalidArgument, err)
	}
	return e.state.CustodyPut(sanitized)
}
