package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"gigchain/core/events"
	"gigchain/core/types"
	"gigchain/native/common"
	"gigchain/native/identity"
	"gigchain/native/jobs"
)

type mockState struct {
	custody  map[uint64]*Custody
	balances map[uint64]*big.Int
	config   *Config
}

func newMockState() *mockState {
	return &mockState{
		custody:  make(map[uint64]*Custody),
		balances: make(map[uint64]*big.Int),
	}
}

func (m *mockState) CustodyPut(c *Custody) error {
	m.custody[c.JobID] = c.Clone()
	return nil
}

func (m *mockState) CustodyGet(jobID uint64) (*Custody, bool, error) {
	c, ok := m.custody[jobID]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) CustodyCredit(jobID uint64, _ [20]byte, amt *big.Int) error {
	bal := m.balances[jobID]
	if bal == nil {
		bal = big.NewInt(0)
	}
	m.balances[jobID] = new(big.Int).Add(bal, amt)
	return nil
}

func (m *mockState) CustodyDebit(jobID uint64, _ [20]byte, amt *big.Int) error {
	bal := m.balances[jobID]
	if bal == nil || bal.Cmp(amt) < 0 {
		return fmt.Errorf("insufficient custody balance")
	}
	m.balances[jobID] = new(big.Int).Sub(bal, amt)
	return nil
}

func (m *mockState) CustodyBalance(jobID uint64, _ [20]byte) (*big.Int, error) {
	if bal, ok := m.balances[jobID]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) EscrowConfig() (*Config, bool, error) {
	if m.config == nil {
		return nil, false, nil
	}
	return m.config.Clone(), true, nil
}

func (m *mockState) PutEscrowConfig(cfg *Config) error {
	m.config = cfg.Clone()
	return nil
}

type transferCall struct {
	from, to [20]byte
	amount   int64
}

type mockAssets struct {
	balances  map[[20]byte]*big.Int
	allowance map[[20]byte]*big.Int
	calls     []transferCall
	failTo    map[[20]byte]bool
}

func newMockAssets() *mockAssets {
	return &mockAssets{
		balances:  make(map[[20]byte]*big.Int),
		allowance: make(map[[20]byte]*big.Int),
		failTo:    make(map[[20]byte]bool),
	}
}

func (a *mockAssets) balance(addr [20]byte) *big.Int {
	if bal, ok := a.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (a *mockAssets) Transfer(_ [20]byte, from, to [20]byte, amount *big.Int) error {
	if a.failTo[to] {
		return errors.New("recipient rejected")
	}
	if a.balance(from).Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	a.balances[from] = new(big.Int).Sub(a.balance(from), amount)
	a.balances[to] = new(big.Int).Add(a.balance(to), amount)
	a.calls = append(a.calls, transferCall{from: from, to: to, amount: amount.Int64()})
	return nil
}

func (a *mockAssets) TransferFrom(token, _ [20]byte, from, to [20]byte, amount *big.Int) error {
	allowed := a.allowance[from]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return errors.New("insufficient allowance")
	}
	if err := a.Transfer(token, from, to, amount); err != nil {
		return err
	}
	a.allowance[from] = new(big.Int).Sub(allowed, amount)
	return nil
}

type mockDirectory map[[20]byte]*identity.Profile

func (d mockDirectory) IsRegistered(addr [20]byte) (bool, error) {
	_, ok := d[addr]
	return ok, nil
}

func (d mockDirectory) Profile(addr [20]byte) (*identity.Profile, error) {
	p, ok := d[addr]
	if !ok {
		return nil, fmt.Errorf("identity: %w", common.ErrNotFound)
	}
	return p.Clone(), nil
}

type mockLedger map[uint64]*jobs.Job

func (l mockLedger) Job(id uint64) (*jobs.Job, error) {
	job, ok := l[id]
	if !ok {
		return nil, fmt.Errorf("jobs: %w: job %d", common.ErrNotFound, id)
	}
	return job.Clone(), nil
}

type mockCollaborators struct {
	directories map[[20]byte]IdentityDirectory
	ledgers     map[[20]byte]JobLedger
}

func (c *mockCollaborators) IdentityDirectoryAt(addr [20]byte) (IdentityDirectory, bool) {
	d, ok := c.directories[addr]
	return d, ok
}

func (c *mockCollaborators) JobLedgerAt(addr [20]byte) (JobLedger, bool) {
	l, ok := c.ledgers[addr]
	return l, ok
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *capturingEmitter) last(t *testing.T) *types.Event {
	t.Helper()
	if len(c.events) == 0 {
		t.Fatalf("no events emitted")
	}
	return events.ToTypesEvent(c.events[len(c.events)-1])
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	adminAddr      = newTestAddress(0xAD)
	clientAddr     = newTestAddress(0x01)
	freelancerAddr = newTestAddress(0x02)
	strangerAddr   = newTestAddress(0x03)
	feeAddr        = newTestAddress(0xFE)
	vaultAddr      = newTestAddress(0xEE)
	tokenAddr      = newTestAddress(0x7A)
	directoryAddr  = newTestAddress(0xD1)
	ledgerAddr     = newTestAddress(0xD2)
)

const testJobID = 7

type harness struct {
	engine    *Engine
	state     *mockState
	assets    *mockAssets
	directory mockDirectory
	ledger    mockLedger
	collab    *mockCollaborators
	emitter   *capturingEmitter
}

func newHarness(t *testing.T, feePercent uint8) *harness {
	t.Helper()
	h := &harness{
		state:  newMockState(),
		assets: newMockAssets(),
		directory: mockDirectory{
			clientAddr:     {Address: clientAddr, Name: "client", Roles: identity.RoleClient, Active: true},
			freelancerAddr: {Address: freelancerAddr, Name: "freelancer", Roles: identity.RoleFreelancer, Active: true},
			strangerAddr:   {Address: strangerAddr, Name: "stranger", Roles: identity.RoleClient, Active: true},
		},
		ledger: mockLedger{
			testJobID: {ID: testJobID, Client: clientAddr, Freelancer: freelancerAddr, Title: "logo", Status: jobs.StatusAssigned},
		},
		emitter: &capturingEmitter{},
	}
	h.collab = &mockCollaborators{
		directories: map[[20]byte]IdentityDirectory{directoryAddr: h.directory},
		ledgers:     map[[20]byte]JobLedger{ledgerAddr: h.ledger},
	}
	h.assets.balances[clientAddr] = big.NewInt(1_000)
	h.assets.allowance[clientAddr] = big.NewInt(1_000)

	h.engine = NewEngine()
	h.engine.SetState(h.state)
	h.engine.SetAssets(h.assets)
	h.engine.SetCollaborators(h.collab)
	h.engine.SetVault(vaultAddr)
	h.engine.SetEmitter(h.emitter)
	h.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	err := h.engine.InitConfig(&Config{
		Admin:             adminAddr,
		FeePercent:        feePercent,
		FeeRecipient:      feeAddr,
		IdentityDirectory: directoryAddr,
		JobLedger:         ledgerAddr,
	})
	if err != nil {
		t.Fatalf("init config: %v", err)
	}
	return h
}

func (h *harness) fund(t *testing.T) {
	t.Helper()
	if _, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(100), clientAddr); err != nil {
		t.Fatalf("create custody: %v", err)
	}
	if err := h.engine.Deposit(testJobID, clientAddr); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (h *harness) held(t *testing.T) int64 {
	t.Helper()
	bal, err := h.engine.HeldBalance(testJobID)
	if err != nil {
		t.Fatalf("held balance: %v", err)
	}
	return bal.Int64()
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	c, err := h.engine.Custody(testJobID)
	if err != nil {
		t.Fatalf("custody: %v", err)
	}
	return c.Status
}

func TestHappyPathRelease(t *testing.T) {
	h := newHarness(t, 5)
	custody, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(100), clientAddr)
	if err != nil {
		t.Fatalf("create custody: %v", err)
	}
	if custody.Status != StatusCreated || custody.Freelancer != freelancerAddr || custody.Client != clientAddr {
		t.Fatalf("unexpected custody %+v", custody)
	}
	created := h.emitter.last(t)
	if created.Type != EventTypeCustodyCreated || created.Attributes["amount"] != "100" || created.Attributes["jobId"] != "7" {
		t.Fatalf("unexpected created event %+v", created)
	}

	if err := h.engine.Deposit(testJobID, clientAddr); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if h.status(t) != StatusFunded || h.held(t) != 100 || h.assets.balance(vaultAddr).Int64() != 100 {
		t.Fatalf("expected funded custody holding 100")
	}
	if funded := h.emitter.last(t); funded.Type != EventTypeCustodyFunded || funded.Attributes["timestamp"] != "1700000000" {
		t.Fatalf("unexpected funded event %+v", funded)
	}

	if err := h.engine.Release(testJobID, clientAddr); err != nil {
		t.Fatalf("release: %v", err)
	}
	if h.status(t) != StatusReleased || h.held(t) != 0 {
		t.Fatalf("expected released custody with zero held balance")
	}
	if got := h.assets.balance(freelancerAddr).Int64(); got != 95 {
		t.Fatalf("expected freelancer payout 95, got %d", got)
	}
	if got := h.assets.balance(feeAddr).Int64(); got != 5 {
		t.Fatalf("expected fee 5, got %d", got)
	}
	if got := h.assets.balance(vaultAddr).Int64(); got != 0 {
		t.Fatalf("expected empty vault, got %d", got)
	}
	payouts := h.assets.calls[len(h.assets.calls)-2:]
	if payouts[0].to != feeAddr || payouts[1].to != freelancerAddr {
		t.Fatalf("fee transfer must precede payout: %+v", payouts)
	}
	released := h.emitter.last(t)
	if released.Type != EventTypeCustodyReleased || released.Attributes["payout"] != "95" || released.Attributes["fee"] != "5" {
		t.Fatalf("unexpected released event %+v", released)
	}
}

func TestReleaseWithoutFeeSkipsFeeTransfer(t *testing.T) {
	h := newHarness(t, 0)
	h.fund(t)
	before := len(h.assets.calls)
	if err := h.engine.Release(testJobID, clientAddr); err != nil {
		t.Fatalf("release: %v", err)
	}
	calls := h.assets.calls[before:]
	if len(calls) != 1 || calls[0].to != freelancerAddr || calls[0].amount != 100 {
		t.Fatalf("expected single full payout, got %+v", calls)
	}
	if h.assets.balance(feeAddr).Sign() != 0 {
		t.Fatalf("fee recipient must receive nothing")
	}
}

func TestReleaseRejectsZeroPayout(t *testing.T) {
	h := newHarness(t, 100)
	h.fund(t)
	if err := h.engine.Release(testJobID, clientAddr); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected zero payout rejection, got %v", err)
	}
	if h.status(t) != StatusFunded || h.held(t) != 100 {
		t.Fatalf("failed release must leave custody funded")
	}
}

func TestCancelRefundsClient(t *testing.T) {
	h := newHarness(t, 5)
	h.fund(t)
	if err := h.engine.Cancel(testJobID, clientAddr); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if h.status(t) != StatusCancelled || h.held(t) != 0 {
		t.Fatalf("expected cancelled custody with zero held balance")
	}
	if got := h.assets.balance(clientAddr).Int64(); got != 1_000 {
		t.Fatalf("expected client balance restored, got %d", got)
	}
	cancelled := h.emitter.last(t)
	if cancelled.Type != EventTypeCustodyCancelled || cancelled.Attributes["amountReturned"] != "100" {
		t.Fatalf("unexpected cancelled event %+v", cancelled)
	}
	if err := h.engine.Release(testJobID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("release after cancel must fail with invalid state, got %v", err)
	}
}

func TestSettlementHappensOnce(t *testing.T) {
	for _, settle := range []string{"release", "cancel"} {
		t.Run(settle, func(t *testing.T) {
			h := newHarness(t, 5)
			h.fund(t)
			op := h.engine.Release
			if settle == "cancel" {
				op = h.engine.Cancel
			}
			if err := op(testJobID, clientAddr); err != nil {
				t.Fatalf("first %s: %v", settle, err)
			}
			calls := len(h.assets.calls)
			emitted := len(h.emitter.events)
			if err := op(testJobID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
				t.Fatalf("second %s must fail with invalid state, got %v", settle, err)
			}
			if len(h.assets.calls) != calls || len(h.emitter.events) != emitted {
				t.Fatalf("second %s must not move funds or emit", settle)
			}
		})
	}
}

func TestCreatedCustodyCannotSettle(t *testing.T) {
	h := newHarness(t, 5)
	if _, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(100), clientAddr); err != nil {
		t.Fatalf("create custody: %v", err)
	}
	if err := h.engine.Release(testJobID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("release on created must fail, got %v", err)
	}
	if err := h.engine.Cancel(testJobID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("cancel on created must fail, got %v", err)
	}
	if err := h.engine.Deposit(testJobID, clientAddr); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Deposit(testJobID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("second deposit must fail, got %v", err)
	}
}

func TestUnauthorizedSettlement(t *testing.T) {
	h := newHarness(t, 5)
	h.fund(t)
	for name, op := range map[string]func(uint64, [20]byte) error{
		"release": h.engine.Release,
		"cancel":  h.engine.Cancel,
	} {
		if err := op(testJobID, strangerAddr); !errors.Is(err, common.ErrUnauthorized) {
			t.Fatalf("%s by stranger must be unauthorized, got %v", name, err)
		}
		if err := op(testJobID, freelancerAddr); !errors.Is(err, common.ErrUnauthorized) {
			t.Fatalf("%s by freelancer must be unauthorized, got %v", name, err)
		}
	}
	if h.status(t) != StatusFunded || h.held(t) != 100 {
		t.Fatalf("custody must remain funded")
	}
}

func TestDepositTransferFailure(t *testing.T) {
	h := newHarness(t, 5)
	h.assets.allowance[clientAddr] = big.NewInt(99)
	if _, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(100), clientAddr); err != nil {
		t.Fatalf("create custody: %v", err)
	}
	if err := h.engine.Deposit(testJobID, strangerAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("deposit by stranger must fail, got %v", err)
	}
	if err := h.engine.Deposit(testJobID, clientAddr); !errors.Is(err, common.ErrAssetTransferFailed) {
		t.Fatalf("expected asset transfer failure, got %v", err)
	}
	if h.status(t) != StatusCreated || h.held(t) != 0 {
		t.Fatalf("failed deposit must not fund custody")
	}
	if h.assets.balance(clientAddr).Int64() != 1_000 {
		t.Fatalf("failed deposit must not move funds")
	}
}

func TestReleaseTransferFailureKeepsFunded(t *testing.T) {
	tests := []struct {
		name       string
		feePercent uint8
		failTo     [20]byte
	}{
		{name: "payout rejected without fee", feePercent: 0, failTo: freelancerAddr},
		{name: "payout rejected after fee", feePercent: 5, failTo: freelancerAddr},
		{name: "fee rejected", feePercent: 5, failTo: feeAddr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.feePercent)
			h.fund(t)
			emitted := len(h.emitter.events)
			h.assets.failTo[tc.failTo] = true
			if err := h.engine.Release(testJobID, clientAddr); !errors.Is(err, common.ErrAssetTransferFailed) {
				t.Fatalf("expected asset transfer failure, got %v", err)
			}
			if h.status(t) != StatusFunded || h.held(t) != 100 {
				t.Fatalf("failed release must leave custody funded")
			}
			if len(h.emitter.events) != emitted {
				t.Fatalf("failed release must not emit events")
			}
			if h.assets.balance(freelancerAddr).Sign() != 0 {
				t.Fatalf("freelancer must not be paid")
			}
		})
	}
}

func TestCreateCustodyValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness)
		jobID   uint64
		token   [20]byte
		amount  *big.Int
		caller  [20]byte
		wantErr error
	}{
		{name: "zero amount", jobID: testJobID, token: tokenAddr, amount: big.NewInt(0), caller: clientAddr, wantErr: common.ErrInvalidArgument},
		{name: "nil amount", jobID: testJobID, token: tokenAddr, caller: clientAddr, wantErr: common.ErrInvalidArgument},
		{name: "null token", jobID: testJobID, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrInvalidArgument},
		{name: "missing job", jobID: 99, token: tokenAddr, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrNotFound},
		{name: "wrong caller", jobID: testJobID, token: tokenAddr, amount: big.NewInt(100), caller: strangerAddr, wantErr: common.ErrUnauthorized},
		{name: "job not assigned", mutate: func(h *harness) { h.ledger[testJobID].Status = jobs.StatusInProgress }, jobID: testJobID, token: tokenAddr, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrPreconditionFailed},
		{name: "freelancer unset", mutate: func(h *harness) { h.ledger[testJobID].Freelancer = [20]byte{} }, jobID: testJobID, token: tokenAddr, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrPreconditionFailed},
		{name: "freelancer inactive", mutate: func(h *harness) { h.directory[freelancerAddr].Active = false }, jobID: testJobID, token: tokenAddr, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrPreconditionFailed},
		{name: "freelancer unregistered", mutate: func(h *harness) { delete(h.directory, freelancerAddr) }, jobID: testJobID, token: tokenAddr, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrPreconditionFailed},
		{name: "client inactive", mutate: func(h *harness) { h.directory[clientAddr].Active = false }, jobID: testJobID, token: tokenAddr, amount: big.NewInt(100), caller: clientAddr, wantErr: common.ErrPreconditionFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 5)
			if tc.mutate != nil {
				tc.mutate(h)
			}
			_, err := h.engine.CreateCustody(tc.jobID, tc.token, tc.amount, tc.caller)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if _, err := h.engine.Custody(testJobID); !errors.Is(err, common.ErrNotFound) {
				t.Fatalf("rejected creation must not store a record, got %v", err)
			}
			if len(h.emitter.events) != 0 {
				t.Fatalf("rejected creation must not emit")
			}
		})
	}
}

func TestCreateCustodyRejectsDuplicate(t *testing.T) {
	h := newHarness(t, 5)
	h.fund(t)
	if err := h.engine.Release(testJobID, clientAddr); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(50), clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("terminal custody must not be reused, got %v", err)
	}
	stored, err := h.engine.Custody(testJobID)
	if err != nil {
		t.Fatalf("custody: %v", err)
	}
	if stored.Amount.Int64() != 100 || stored.Status != StatusReleased {
		t.Fatalf("terminal record must persist unchanged: %+v", stored)
	}
}

func TestCustodyNotFound(t *testing.T) {
	h := newHarness(t, 5)
	if _, err := h.engine.Custody(testJobID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := h.engine.Deposit(testJobID, clientAddr); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("deposit without custody must be not found, got %v", err)
	}
}

func TestAdministration(t *testing.T) {
	h := newHarness(t, 5)
	if err := h.engine.SetFeeConfig(clientAddr, 10, feeAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized fee update, got %v", err)
	}
	if err := h.engine.SetFeeConfig(adminAddr, 101, feeAddr); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected fee bound rejection, got %v", err)
	}
	if err := h.engine.SetFeeConfig(adminAddr, 10, [20]byte{}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected recipient rejection, got %v", err)
	}
	if err := h.engine.SetFeeConfig(adminAddr, 10, vaultAddr); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected vault recipient rejection, got %v", err)
	}
	newFee := newTestAddress(0xFA)
	if err := h.engine.SetFeeConfig(adminAddr, 10, newFee); err != nil {
		t.Fatalf("set fee config: %v", err)
	}
	if evt := h.emitter.last(t); evt.Type != EventTypeFeeConfigUpdated || evt.Attributes["feePercent"] != "10" {
		t.Fatalf("unexpected fee event %+v", evt)
	}

	if err := h.engine.SetJobLedger(strangerAddr, ledgerAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized rebind, got %v", err)
	}
	if err := h.engine.SetIdentityDirectory(adminAddr, [20]byte{}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected zero address rejection, got %v", err)
	}

	next := newTestAddress(0xAE)
	if err := h.engine.SetAdmin(adminAddr, next); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if err := h.engine.SetFeeConfig(adminAddr, 1, newFee); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("previous admin must lose access, got %v", err)
	}
	cfg, err := h.engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Admin != next || cfg.FeePercent != 10 || cfg.FeeRecipient != newFee {
		t.Fatalf("unexpected config %+v", cfg)
	}

	h.fund(t)
	if err := h.engine.Release(testJobID, clientAddr); err != nil {
		t.Fatalf("release: %v", err)
	}
	if h.assets.balance(newFee).Int64() != 10 || h.assets.balance(freelancerAddr).Int64() != 90 {
		t.Fatalf("release must use the updated fee config")
	}
}

func TestRebindCollaborators(t *testing.T) {
	h := newHarness(t, 5)
	other := newTestAddress(0xD3)
	if err := h.engine.SetJobLedger(adminAddr, other); err != nil {
		t.Fatalf("set job ledger: %v", err)
	}
	if evt := h.emitter.last(t); evt.Type != EventTypeCollaboratorUpdated || evt.Attributes["kind"] != CollaboratorJobLedger {
		t.Fatalf("unexpected collaborator event %+v", evt)
	}
	if _, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(100), clientAddr); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("unresolvable ledger must fail creation, got %v", err)
	}
	h.collab.ledgers[other] = mockLedger{
		testJobID: {ID: testJobID, Client: clientAddr, Freelancer: freelancerAddr, Status: jobs.StatusAssigned},
	}
	if _, err := h.engine.CreateCustody(testJobID, tokenAddr, big.NewInt(100), clientAddr); err != nil {
		t.Fatalf("create against rebound ledger: %v", err)
	}
}

func TestInitConfigOnce(t *testing.T) {
	h := newHarness(t, 5)
	err := h.engine.InitConfig(&Config{
		Admin: adminAddr, FeeRecipient: feeAddr, IdentityDirectory: directoryAddr, JobLedger: ledgerAddr,
	})
	if !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected second init to fail, got %v", err)
	}
	fresh := NewEngine()
	fresh.SetState(newMockState())
	if err := fresh.InitConfig(&Config{Admin: adminAddr, FeePercent: 120}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected invalid config rejection, got %v", err)
	}
	fresh.SetVault(vaultAddr)
	err = fresh.InitConfig(&Config{
		Admin: adminAddr, FeeRecipient: vaultAddr, IdentityDirectory: directoryAddr, JobLedger: ledgerAddr,
	})
	if !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected vault fee recipient rejection, got %v", err)
	}
	if _, err := fresh.CreateCustody(testJobID, tokenAddr, big.NewInt(1), clientAddr); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("creation without config must fail, got %v", err)
	}
}
