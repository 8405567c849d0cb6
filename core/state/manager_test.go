package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gigchain/core/types"
	"gigchain/native/escrow"
	"gigchain/native/identity"
	"gigchain/native/jobs"
	"gigchain/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestOverlayCommitAndDiscard(t *testing.T) {
	mgr, db := newTestManager(t)

	require.NoError(t, mgr.KVPut([]byte("alpha"), uint64(7)))
	var got uint64
	ok, err := mgr.KVGet([]byte("alpha"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), got)
	require.Equal(t, 0, db.Len(), "writes must stay buffered until commit")

	mgr.Discard()
	ok, err = mgr.KVGet([]byte("alpha"), &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVPut([]byte("alpha"), uint64(9)))
	require.Equal(t, 1, mgr.Pending())
	require.NoError(t, mgr.Commit())
	require.Equal(t, 1, db.Len())
	require.Zero(t, mgr.Pending())

	fresh := NewManager(db)
	ok, err = fresh.KVGet([]byte("alpha"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), got)

	require.NoError(t, fresh.KVDelete([]byte("alpha")))
	ok, err = fresh.KVGet([]byte("alpha"), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, fresh.Commit())
	require.Equal(t, 0, db.Len())
}

func TestKVGetListDefaultsEmpty(t *testing.T) {
	mgr, _ := newTestManager(t)
	var list [][]byte
	require.NoError(t, mgr.KVGetList([]byte("missing"), &list))
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestIdentityAndJobRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := testAddress(0x01)
	profile := &identity.Profile{Address: addr, Name: "ada", Roles: identity.RoleClient | identity.RoleFreelancer, Active: true, RegisteredAt: 10}
	require.NoError(t, mgr.IdentityPut(profile))
	stored, ok, err := mgr.IdentityGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, profile, stored)

	first, err := mgr.JobNextID()
	require.NoError(t, err)
	second, err := mgr.JobNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(2), second)

	job := &jobs.Job{ID: first, Client: addr, Title: "site", Budget: big.NewInt(250), Status: jobs.StatusAssigned}
	require.NoError(t, mgr.JobPut(job))
	loaded, ok, err := mgr.JobGet(first)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, job.Title, loaded.Title)
	require.Equal(t, jobs.StatusAssigned, loaded.Status)
	require.Zero(t, loaded.Budget.Cmp(big.NewInt(250)))

	_, ok, err = mgr.JobGet(0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTokenBalancesAndAllowances(t *testing.T) {
	mgr, _ := newTestManager(t)
	tok, owner, spender := testAddress(0x7A), testAddress(0x01), testAddress(0x02)

	bal, err := mgr.TokenBalance(tok, owner)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	require.NoError(t, mgr.SetTokenBalance(tok, owner, big.NewInt(500)))
	require.NoError(t, mgr.SetTokenAllowance(tok, owner, spender, big.NewInt(20)))
	bal, err = mgr.TokenBalance(tok, owner)
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Int64())
	allowance, err := mgr.TokenAllowance(tok, owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(20), allowance.Int64())

	require.Error(t, mgr.SetTokenBalance(tok, owner, big.NewInt(-1)))
}

func TestCustodyStorage(t *testing.T) {
	mgr, _ := newTestManager(t)
	tok := testAddress(0x7A)
	custody := &escrow.Custody{
		JobID:      3,
		Client:     testAddress(0x01),
		Freelancer: testAddress(0x02),
		Token:      tok,
		Amount:     big.NewInt(100),
		Status:     escrow.StatusFunded,
		CreatedAt:  1_700_000_000,
	}
	require.NoError(t, mgr.CustodyPut(custody))
	stored, ok, err := mgr.CustodyGet(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, custody.Client, stored.Client)
	require.Equal(t, escrow.StatusFunded, stored.Status)
	require.NotSame(t, custody.Amount, stored.Amount)

	require.Error(t, mgr.CustodyPut(&escrow.Custody{JobID: 4, Client: testAddress(0x01), Amount: big.NewInt(0)}))

	require.NoError(t, mgr.CustodyCredit(3, tok, big.NewInt(100)))
	require.Error(t, mgr.CustodyDebit(3, tok, big.NewInt(101)))
	require.NoError(t, mgr.CustodyDebit(3, tok, big.NewInt(100)))
	held, err := mgr.CustodyBalance(3, tok)
	require.NoError(t, err)
	require.Zero(t, held.Sign())
	require.Error(t, mgr.CustodyCredit(3, tok, big.NewInt(-5)))
}

func TestEscrowConfigRequiresValidFields(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, ok, err := mgr.EscrowConfig()
	require.NoError(t, err)
	require.False(t, ok)

	cfg := &escrow.Config{
		Admin:             testAddress(0xAD),
		FeePercent:        5,
		FeeRecipient:      testAddress(0xFE),
		IdentityDirectory: testAddress(0xD1),
		JobLedger:         testAddress(0xD2),
	}
	require.NoError(t, mgr.PutEscrowConfig(cfg))
	stored, ok, err := mgr.EscrowConfig()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg, stored)

	bad := cfg.Clone()
	bad.FeePercent = 101
	require.Error(t, mgr.PutEscrowConfig(bad))
}

func TestPauseFlagsAndEventLog(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.False(t, mgr.IsPaused("escrow"))
	require.NoError(t, mgr.SetPaused("Escrow", true))
	require.True(t, mgr.IsPaused("escrow"))
	require.NoError(t, mgr.SetPaused("escrow", false))
	require.False(t, mgr.IsPaused("escrow"))

	seq, err := mgr.AppendEvent(&types.Event{Type: "escrow.custody.funded", Attributes: map[string]string{"jobId": "1", "amount": "100"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)
	seq, err = mgr.AppendEvent(&types.Event{Type: "escrow.custody.released"})
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)

	evt, ok, err := mgr.EventAt(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", evt.Attributes["amount"])
	count, err := mgr.EventCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	_, err = mgr.AppendEvent(&types.Event{})
	require.Error(t, err)
}
