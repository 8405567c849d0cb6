package jobs

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"gigchain/core/events"
	"gigchain/native/common"
	"gigchain/native/identity"
)

var (
	errNilState     = errors.New("jobs engine: state not configured")
	errNilDirectory = errors.New("jobs engine: identity directory not configured")
)

const titleMaxLength = 128

type engineState interface {
	JobPut(*Job) error
	JobGet(id uint64) (*Job, bool, error)
	JobNextID() (uint64, error)
	JobCount() (uint64, error)
}

// Directory is the identity surface used to check principal eligibility.
type Directory interface {
	Profile(addr [20]byte) (*identity.Profile, error)
}

// Engine owns job records and their lifecycle.
type Engine struct {
	state     engineState
	directory Directory
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates a job ledger with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetDirectory configures the identity directory consulted for eligibility.
func (e *Engine) SetDirectory(dir Directory) { e.directory = dir }

// SetNowFunc overrides the time source used by the engine.
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

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn())
}

// requireEligible checks that addr is an active principal holding role.
func (e *Engine) requireEligible(addr [20]byte, role identity.Role, label string) error {
	if e.directory == nil {
		return errNilDirectory
	}
	profile, err := e.directory.Profile(addr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("jobs: %w: %s not registered", common.ErrPreconditionFailed, label)
		}
		return err
	}
	if !profile.Active {
		return fmt.Errorf("jobs: %w: %s not active", common.ErrPreconditionFailed, label)
	}
	if !profile.Roles.Has(role) {
		return fmt.Errorf("jobs: %w: %s lacks %s role", common.ErrPreconditionFailed, label, role)
	}
	return nil
}

// CreateJob posts a new job for client and returns it with its assigned ID.
func (e *Engine) CreateJob(client [20]byte, title, descriptionRef string, budget *big.Int, deadline uint64) (*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalizedTitle, err := identity.NormalizeName(title)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w: title %v", common.ErrInvalidArgument, err)
	}
	if len(normalizedTitle) > titleMaxLength {
		return nil, fmt.Errorf("jobs: %w: title exceeds %d bytes", common.ErrInvalidArgument, titleMaxLength)
	}
	ref, err := identity.NormalizeRef(descriptionRef)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w: %v", common.ErrInvalidArgument, err)
	}
	amt := big.NewInt(0)
	if budget != nil {
		amt.Set(budget)
	}
	if amt.Sign() < 0 {
		return nil, fmt.Errorf("jobs: %w: budget must be non-negative", common.ErrInvalidArgument)
	}
	now := e.now()
	if deadline != 0 && deadline <= now {
		return nil, fmt.Errorf("jobs: %w: deadline must be in the future", common.ErrInvalidArgument)
	}
	if err := e.requireEligible(client, identity.RoleClient, "client"); err != nil {
		return nil, err
	}
	id, err := e.state.JobNextID()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:             id,
		Client:         client,
		Title:          normalizedTitle,
		DescriptionRef: ref,
		Budget:         amt,
		Deadline:       deadline,
		Status:         StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	e.emit(Created{Job: job.Clone()})
	return job.Clone(), nil
}

// AssignFreelancer binds an eligible freelancer to an open job.
func (e *Engine) AssignFreelancer(id uint64, caller, freelancer [20]byte) error {
	job, err := e.load(id)
	if err != nil {
		return err
	}
	if caller != job.Client {
		return fmt.Errorf("jobs: %w: only the client may assign", common.ErrUnauthorized)
	}
	if job.Status != StatusOpen {
		return fmt.Errorf("jobs: %w: cannot assign in status %s", common.ErrInvalidState, job.Status)
	}
	if freelancer == ([20]byte{}) {
		return fmt.Errorf("jobs: %w: freelancer required", common.ErrInvalidArgument)
	}
	if freelancer == job.Client {
		return fmt.Errorf("jobs: %w: client cannot assign themselves", common.ErrInvalidArgument)
	}
	if err := e.requireEligible(freelancer, identity.RoleFreelancer, "freelancer"); err != nil {
		return err
	}
	job.Freelancer = freelancer
	job.Status = StatusAssigned
	job.UpdatedAt = e.now()
	if err := e.state.JobPut(job); err != nil {
		return err
	}
	e.emit(Assigned{JobID: id, Freelancer: freelancer})
	return nil
}

// StartJob marks an assigned job as in progress. Only the assigned
// freelancer may start it.
func (e *Engine) StartJob(id uint64, caller [20]byte) error {
	return e.transition(id, caller, StatusInProgress, func(job *Job) error {
		if caller != job.Freelancer {
			return fmt.Errorf("jobs: %w: only the freelancer may start", common.ErrUnauthorized)
		}
		return expectStatus(job, StatusAssigned)
	})
}

// CompleteJob marks an in-progress job as completed. Only the client may
// complete it.
func (e *Engine) CompleteJob(id uint64, caller [20]byte) error {
	return e.transition(id, caller, StatusCompleted, func(job *Job) error {
		if caller != job.Client {
			return fmt.Errorf("jobs: %w: only the client may complete", common.ErrUnauthorized)
		}
		return expectStatus(job, StatusInProgress)
	})
}

// CancelJob withdraws an open or assigned job.
func (e *Engine) CancelJob(id uint64, caller [20]byte) error {
	return e.transition(id, caller, StatusCancelled, func(job *Job) error {
		if caller != job.Client {
			return fmt.Errorf("jobs: %w: only the client may cancel", common.ErrUnauthorized)
		}
		return expectStatus(job, StatusOpen, StatusAssigned)
	})
}

// DisputeJob flags an in-progress job. Either party may raise the dispute.
func (e *Engine) DisputeJob(id uint64, caller [20]byte) error {
	return e.transition(id, caller, StatusDisputed, func(job *Job) error {
		if caller != job.Client && caller != job.Freelancer {
			return fmt.Errorf("jobs: %w: only job parties may dispute", common.ErrUnauthorized)
		}
		return expectStatus(job, StatusInProgress)
	})
}

// Job returns the job record or ErrNotFound. The zero ID never exists.
func (e *Engine) Job(id uint64) (*Job, error) {
	return e.load(id)
}

// JobCount returns the number of jobs ever created.
func (e *Engine) JobCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.JobCount()
}

func (e *Engine) transition(id uint64, caller [20]byte, to Status, check func(*Job) error) error {
	job, err := e.load(id)
	if err != nil {
		return err
	}
	if err := check(job); err != nil {
		return err
	}
	from := job.Status
	job.Status = to
	job.UpdatedAt = e.now()
	if err := e.state.JobPut(job); err != nil {
		return err
	}
	e.emit(StatusChanged{JobID: id, From: from, To: to, By: caller})
	return nil
}

func expectStatus(job *Job, allowed ...Status) error {
	for _, status := range allowed {
		if job.Status == status {
			return nil
		}
	}
	return fmt.Errorf("jobs: %w: job %d is %s", common.ErrInvalidState, job.ID, job.Status)
}

func (e *Engine) load(id uint64) (*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if id == 0 {
		return nil, fmt.Errorf("jobs: %w: job 0", common.ErrNotFound)
	}
	job, ok, err := e.state.JobGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("jobs: %w: job %d", common.ErrNotFound, id)
	}
	return job, nil
}
