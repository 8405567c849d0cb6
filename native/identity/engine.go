package identity

import (
	"errors"
	"fmt"
	"time"

	"gigchain/core/events"
	"gigchain/native/common"
)

var errNilState = errors.New("identity engine: state not configured")

type engineState interface {
	IdentityPut(*Profile) error
	IdentityGet(addr [20]byte) (*Profile, bool, error)
}

// Engine maintains the principal directory. It is the leaf dependency of the
// job ledger and the escrow engine, which only ever read from it.
type Engine struct {
	state   engineState
	emitter events.Emitter
	admin   [20]byte
	nowFn   func() int64
}

// NewEngine creates an identity engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdmin configures the principal allowed to change any profile's status.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

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

// Register adds a new active principal to the directory.
func (e *Engine) Register(addr [20]byte, name string, roles Role, profileRef string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if addr == ([20]byte{}) {
		return nil, fmt.Errorf("identity: %w: address required", common.ErrInvalidArgument)
	}
	normalizedName, err := NormalizeName(name)
	if err != nil {
		return nil, fmt.Errorf("identity: %w: %v", common.ErrInvalidArgument, err)
	}
	ref, err := NormalizeRef(profileRef)
	if err != nil {
		return nil, fmt.Errorf("identity: %w: %v", common.ErrInvalidArgument, err)
	}
	if !roles.Valid() {
		return nil, fmt.Errorf("identity: %w: invalid roles %d", common.ErrInvalidArgument, roles)
	}
	_, exists, err := e.state.IdentityGet(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("identity: %w: principal already registered", common.ErrInvalidState)
	}
	now := e.now()
	profile := &Profile{
		Address:      addr,
		Name:         normalizedName,
		Roles:        roles,
		ProfileRef:   ref,
		Active:       true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := e.state.IdentityPut(profile); err != nil {
		return nil, err
	}
	e.emit(Registered{Address: addr, Name: normalizedName, Roles: roles})
	return profile.Clone(), nil
}

// UpdateProfile replaces the display name and content reference of the
// caller's own profile.
func (e *Engine) UpdateProfile(caller [20]byte, name string, profileRef string) error {
	profile, err := e.load(caller)
	if err != nil {
		return err
	}
	normalizedName, err := NormalizeName(name)
	if err != nil {
		return fmt.Errorf("identity: %w: %v", common.ErrInvalidArgument, err)
	}
	ref, err := NormalizeRef(profileRef)
	if err != nil {
		return fmt.Errorf("identity: %w: %v", common.ErrInvalidArgument, err)
	}
	profile.Name = normalizedName
	profile.ProfileRef = ref
	profile.UpdatedAt = e.now()
	if err := e.state.IdentityPut(profile); err != nil {
		return err
	}
	e.emit(Updated{Address: caller, Name: normalizedName, ProfileRef: ref})
	return nil
}

// SetActive toggles the active flag of addr. The principal itself or the
// directory administrator may invoke it. Setting the current value is a
// no-op that emits nothing.
func (e *Engine) SetActive(caller, addr [20]byte, active bool) error {
	profile, err := e.load(addr)
	if err != nil {
		return err
	}
	if caller != addr && (e.admin == ([20]byte{}) || caller != e.admin) {
		return fmt.Errorf("identity: %w: caller may not change this profile", common.ErrUnauthorized)
	}
	if profile.Active == active {
		return nil
	}
	profile.Active = active
	profile.UpdatedAt = e.now()
	if err := e.state.IdentityPut(profile); err != nil {
		return err
	}
	e.emit(StatusChanged{Address: addr, Active: active, By: caller})
	return nil
}

// IsRegistered reports whether addr has a directory entry.
func (e *Engine) IsRegistered(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.state.IdentityGet(addr)
	return ok, err
}

// Profile returns the directory entry for addr or ErrNotFound.
func (e *Engine) Profile(addr [20]byte) (*Profile, error) {
	return e.load(addr)
}

func (e *Engine) load(addr [20]byte) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	profile, ok, err := e.state.IdentityGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("identity: %w: principal not registered", common.ErrNotFound)
	}
	return profile, nil
}
