package jobs

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"gigchain/core/events"
	"gigchain/native/common"
	"gigchain/native/identity"
)

type mockState struct {
	jobs   map[uint64]*Job
	nextID uint64
}

func newMockState() *mockState {
	return &mockState{jobs: make(map[uint64]*Job)}
}

func (m *mockState) JobPut(job *Job) error {
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *mockState) JobGet(id uint64) (*Job, bool, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return job.Clone(), true, nil
}

func (m *mockState) JobNextID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) JobCount() (uint64, error) { return m.nextID, nil }

type mockDirectory map[[20]byte]*identity.Profile

func (d mockDirectory) Profile(addr [20]byte) (*identity.Profile, error) {
	p, ok := d[addr]
	if !ok {
		return nil, fmt.Errorf("identity: %w", common.ErrNotFound)
	}
	return p.Clone(), nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	clientAddr     = newTestAddress(0x01)
	freelancerAddr = newTestAddress(0x02)
	strangerAddr   = newTestAddress(0x03)
)

func newTestEngine() (*Engine, mockDirectory, *capturingEmitter) {
	dir := mockDirectory{
		clientAddr:     {Address: clientAddr, Name: "client", Roles: identity.RoleClient, Active: true},
		freelancerAddr: {Address: freelancerAddr, Name: "freelancer", Roles: identity.RoleFreelancer, Active: true},
		strangerAddr:   {Address: strangerAddr, Name: "stranger", Roles: identity.RoleClient, Active: true},
	}
	emitter := &capturingEmitter{}
	engine := NewEngine()
	engine.SetState(newMockState())
	engine.SetDirectory(dir)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, dir, emitter
}

func mustCreateJob(t *testing.T, engine *Engine) *Job {
	t.Helper()
	job, err := engine.CreateJob(clientAddr, "Build landing page", "bafyjob", big.NewInt(500), 0)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestCreateJobAssignsMonotonicIDs(t *testing.T) {
	engine, _, emitter := newTestEngine()
	first := mustCreateJob(t, engine)
	second := mustCreateJob(t, engine)
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("unexpected ids %d %d", first.ID, second.ID)
	}
	if first.Status != StatusOpen || first.HasFreelancer() {
		t.Fatalf("new job must be open and unassigned: %+v", first)
	}
	count, err := engine.JobCount()
	if err != nil || count != 2 {
		t.Fatalf("expected 2 jobs, got %d %v", count, err)
	}
	if len(emitter.events) != 2 || emitter.events[0].EventType() != EventTypeJobCreated {
		t.Fatalf("unexpected events %+v", emitter.events)
	}
}

func TestCreateJobEligibility(t *testing.T) {
	engine, dir, _ := newTestEngine()
	if _, err := engine.CreateJob(freelancerAddr, "t", "", nil, 0); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("freelancer-only principal must not post jobs, got %v", err)
	}
	if _, err := engine.CreateJob(newTestAddress(0x44), "t", "", nil, 0); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("unregistered client must be rejected, got %v", err)
	}
	dir[clientAddr].Active = false
	if _, err := engine.CreateJob(clientAddr, "t", "", nil, 0); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("inactive client must be rejected, got %v", err)
	}
	dir[clientAddr].Active = true
	if _, err := engine.CreateJob(clientAddr, "", "", nil, 0); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("empty title must be rejected, got %v", err)
	}
	if _, err := engine.CreateJob(clientAddr, "t", "", big.NewInt(-1), 0); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("negative budget must be rejected, got %v", err)
	}
	if _, err := engine.CreateJob(clientAddr, "t", "", nil, 1); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("past deadline must be rejected, got %v", err)
	}
}

func TestAssignFreelancer(t *testing.T) {
	engine, dir, _ := newTestEngine()
	job := mustCreateJob(t, engine)

	if err := engine.AssignFreelancer(job.ID, strangerAddr, freelancerAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.AssignFreelancer(job.ID, clientAddr, clientAddr); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected self-assign rejection, got %v", err)
	}
	if err := engine.AssignFreelancer(job.ID, clientAddr, strangerAddr); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("expected role rejection, got %v", err)
	}
	dir[freelancerAddr].Active = false
	if err := engine.AssignFreelancer(job.ID, clientAddr, freelancerAddr); !errors.Is(err, common.ErrPreconditionFailed) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}
	dir[freelancerAddr].Active = true
	if err := engine.AssignFreelancer(job.ID, clientAddr, freelancerAddr); err != nil {
		t.Fatalf("assign: %v", err)
	}
	stored, err := engine.Job(job.ID)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if stored.Status != StatusAssigned || stored.Freelancer != freelancerAddr {
		t.Fatalf("unexpected job after assign: %+v", stored)
	}
	if err := engine.AssignFreelancer(job.ID, clientAddr, freelancerAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("reassign must fail, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	engine, _, _ := newTestEngine()
	job := mustCreateJob(t, engine)
	if err := engine.StartJob(job.ID, freelancerAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("unassigned job cannot be started by outsider, got %v", err)
	}
	if err := engine.AssignFreelancer(job.ID, clientAddr, freelancerAddr); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := engine.CompleteJob(job.ID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("complete before start must fail, got %v", err)
	}
	if err := engine.StartJob(job.ID, clientAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("client cannot start, got %v", err)
	}
	if err := engine.StartJob(job.ID, freelancerAddr); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.CancelJob(job.ID, clientAddr); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("cancel in progress must fail, got %v", err)
	}
	if err := engine.DisputeJob(job.ID, strangerAddr); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("outsider dispute must fail, got %v", err)
	}
	if err := engine.CompleteJob(job.ID, clientAddr); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored, _ := engine.Job(job.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
}

func TestCancelAndDispute(t *testing.T) {
	engine, _, emitter := newTestEngine()
	open := mustCreateJob(t, engine)
	if err := engine.CancelJob(open.ID, clientAddr); err != nil {
		t.Fatalf("cancel open: %v", err)
	}
	last := emitter.events[len(emitter.events)-1].(StatusChanged)
	if last.From != StatusOpen || last.To != StatusCancelled {
		t.Fatalf("unexpected status event %+v", last)
	}

	disputed := mustCreateJob(t, engine)
	if err := engine.AssignFreelancer(disputed.ID, clientAddr, freelancerAddr); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := engine.StartJob(disputed.ID, freelancerAddr); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.DisputeJob(disputed.ID, freelancerAddr); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	stored, _ := engine.Job(disputed.ID)
	if stored.Status != StatusDisputed {
		t.Fatalf("expected disputed, got %s", stored.Status)
	}
}

func TestJobNotFound(t *testing.T) {
	engine, _, _ := newTestEngine()
	for _, id := range []uint64{0, 42} {
		if _, err := engine.Job(id); !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("job %d: expected not found, got %v", id, err)
		}
	}
}
