package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gigchain/core/events"
	ledgerstate "gigchain/core/state"
	"gigchain/core/types"
	"gigchain/crypto"
	"gigchain/native/common"
	"gigchain/native/escrow"
	"gigchain/native/identity"
	"gigchain/native/jobs"
	"gigchain/native/token"
	"gigchain/observability"
	gigotel "gigchain/observability/otel"
	"gigchain/storage"
)

// Module names used for pause flags, metrics and spans.
const (
	ModuleIdentity = "identity"
	ModuleJobs     = "jobs"
	ModuleToken    = "token"
	ModuleEscrow   = "escrow"
	ModuleControl  = "control"
)

var (
	// IdentityModuleAddress is the address the identity directory answers on.
	IdentityModuleAddress = crypto.ModuleAddress(ModuleIdentity)
	// JobsModuleAddress is the address the job ledger answers on.
	JobsModuleAddress = crypto.ModuleAddress(ModuleJobs)
	// EscrowVaultAddress holds every custody balance.
	EscrowVaultAddress = crypto.ModuleAddress("escrow/vault")
)

// ErrNotInitialised is returned by operations that need genesis state.
var ErrNotInitialised = fmt.Errorf("%w: ledger not initialised", common.ErrPreconditionFailed)

// Node is the central controller. It serialises every ledger operation,
// applies it against a journaled view of state and commits the journal, the
// event log entries included, as one batch.
type Node struct {
	db      storage.Database
	stateMu sync.Mutex
	logger  *slog.Logger
	metrics *observability.LedgerMetrics
	tracer  trace.Tracer
	nowFn   func() int64
	sinks   []events.Sink

	subsMu  sync.Mutex
	subs    map[int]chan events.Record
	nextSub int
}

// Option configures a Node.
type Option func(*Node)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithMetrics(m *observability.LedgerMetrics) Option {
	return func(n *Node) { n.metrics = m }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(n *Node) {
		if tracer != nil {
			n.tracer = tracer
		}
	}
}

// WithNowFunc overrides the clock used for record timestamps.
func WithNowFunc(now func() int64) Option {
	return func(n *Node) {
		if now != nil {
			n.nowFn = now
		}
	}
}

// WithSink registers a sink that receives every committed event.
func WithSink(sink events.Sink) Option {
	return func(n *Node) {
		if sink != nil {
			n.sinks = append(n.sinks, sink)
		}
	}
}

func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	n := &Node{
		db:     db,
		logger: slog.Default(),
		tracer: otel.Tracer(gigotel.TracerName),
		nowFn:  func() int64 { return time.Now().Unix() },
		subs:   make(map[int]chan events.Record),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(slog.String("component", "node"))
	return n, nil
}

type bufferedEmitter struct {
	events []*types.Event
}

func (b *bufferedEmitter) Emit(evt events.Event) {
	if converted := events.ToTypesEvent(evt); converted != nil {
		b.events = append(b.events, converted)
	}
}

// ledgerTx is one operation's view of the ledger: engines wired to a fresh
// journaled state manager and a private event buffer.
type ledgerTx struct {
	state    *ledgerstate.Manager
	emitter  *bufferedEmitter
	identity *identity.Engine
	jobs     *jobs.Engine
	tokens   *token.Engine
	escrow   *escrow.Engine
}

type collaborators struct {
	directories map[[20]byte]escrow.IdentityDirectory
	ledgers     map[[20]byte]escrow.JobLedger
}

func (c collaborators) IdentityDirectoryAt(addr [20]byte) (escrow.IdentityDirectory, bool) {
	d, ok := c.directories[addr]
	return d, ok
}

func (c collaborators) JobLedgerAt(addr [20]byte) (escrow.JobLedger, bool) {
	l, ok := c.ledgers[addr]
	return l, ok
}

func (n *Node) newLedgerTx() (*ledgerTx, error) {
	manager := ledgerstate.NewManager(n.db)
	emitter := &bufferedEmitter{}
	admin, _, err := manager.LedgerAdmin()
	if err != nil {
		return nil, err
	}

	identityEngine := identity.NewEngine()
	identityEngine.SetState(manager)
	identityEngine.SetAdmin(admin)
	identityEngine.SetEmitter(emitter)
	identityEngine.SetNowFunc(n.nowFn)

	jobsEngine := jobs.NewEngine()
	jobsEngine.SetState(manager)
	jobsEngine.SetDirectory(identityEngine)
	jobsEngine.SetEmitter(emitter)
	jobsEngine.SetNowFunc(n.nowFn)

	tokenEngine := token.NewEngine()
	tokenEngine.SetState(manager)
	tokenEngine.SetEmitter(emitter)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(manager)
	escrowEngine.SetAssets(tokenEngine)
	escrowEngine.SetVault(EscrowVaultAddress)
	escrowEngine.SetEmitter(emitter)
	escrowEngine.SetNowFunc(n.nowFn)
	escrowEngine.SetCollaborators(collaborators{
		directories: map[[20]byte]escrow.IdentityDirectory{IdentityModuleAddress: identityEngine},
		ledgers:     map[[20]byte]escrow.JobLedger{JobsModuleAddress: jobsEngine},
	})

	return &ledgerTx{
		state:    manager,
		emitter:  emitter,
		identity: identityEngine,
		jobs:     jobsEngine,
		tokens:   tokenEngine,
		escrow:   escrowEngine,
	}, nil
}

// execute runs fn as one indivisible ledger operation. Either every state
// write and event of fn is committed or none is. Operations of a paused module
// are rejected.
func (n *Node) execute(ctx context.Context, module, operation string, fn func(tx *ledgerTx) error) error {
	return n.run(ctx, module, operation, module != ModuleControl, fn)
}

// administer runs an administrator operation of module. It is exempt from the
// pause guard so configuration can be repaired while a module is halted.
func (n *Node) administer(ctx context.Context, module, operation string, fn func(tx *ledgerTx) error) error {
	return n.run(ctx, module, operation, false, fn)
}

func (n *Node) run(ctx context.Context, module, operation string, guarded bool, fn func(tx *ledgerTx) error) error {
	ctx, span := n.tracer.Start(ctx, module+"."+operation, trace.WithAttributes(
		attribute.String("ledger.module", module),
		attribute.String("ledger.operation", operation),
	))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	n.stateMu.Lock()
	records, err := n.apply(module, guarded, fn)
	if err == nil {
		n.publish(ctx, records)
	}
	n.stateMu.Unlock()

	kind := common.ErrorKind(err)
	n.metrics.ObserveOperation(module, operation, kind, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		n.logger.LogAttrs(ctx, slog.LevelWarn, "ledger operation rejected",
			slog.String("module", module),
			slog.String("operation", operation),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		return err
	}
	span.SetAttributes(attribute.Int("ledger.events", len(records)))
	n.logger.LogAttrs(ctx, slog.LevelDebug, "ledger operation committed",
		slog.String("module", module),
		slog.String("operation", operation),
		slog.Int("events", len(records)))
	n.observeCommitted(records)
	return nil
}

func (n *Node) apply(module string, guarded bool, fn func(tx *ledgerTx) error) ([]events.Record, error) {
	tx, err := n.newLedgerTx()
	if err != nil {
		return nil, err
	}
	if guarded {
		if err := common.Guard(tx.state, module); err != nil {
			return nil, fmt.Errorf("%s: %w", module, err)
		}
	}
	if err := fn(tx); err != nil {
		tx.state.Discard()
		return nil, err
	}
	records := make([]events.Record, 0, len(tx.emitter.events))
	for _, evt := range tx.emitter.events {
		seq, err := tx.state.AppendEvent(evt)
		if err != nil {
			tx.state.Discard()
			return nil, err
		}
		records = append(records, events.Record{Sequence: seq, Event: *evt.Clone()})
	}
	if err := tx.state.Commit(); err != nil {
		tx.state.Discard()
		return nil, err
	}
	return records, nil
}

// view runs fn against a read-only snapshot. Any writes fn makes are dropped.
func (n *Node) view(ctx context.Context, fn func(tx *ledgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	tx, err := n.newLedgerTx()
	if err != nil {
		return err
	}
	defer tx.state.Discard()
	return fn(tx)
}

func (n *Node) observeCommitted(records []events.Record) {
	if n.metrics == nil {
		return
	}
	n.metrics.RecordEvents(len(records))
	for _, rec := range records {
		attrs := rec.Event.Attributes
		switch rec.Event.Type {
		case escrow.EventTypeCustodyCreated:
			n.metrics.RecordTransition(escrow.StatusCreated.String())
		case escrow.EventTypeCustodyFunded:
			n.metrics.RecordTransition(escrow.StatusFunded.String())
		case escrow.EventTypeCustodyReleased:
			n.metrics.RecordTransition(escrow.StatusReleased.String())
			n.metrics.RecordSettlement("freelancer", parseAmount(attrs["payout"]))
			n.metrics.RecordSettlement("fee", parseAmount(attrs["fee"]))
		case escrow.EventTypeCustodyCancelled:
			n.metrics.RecordTransition(escrow.StatusCancelled.String())
			n.metrics.RecordSettlement("refund", parseAmount(attrs["amountReturned"]))
		}
	}
}

func parseAmount(raw string) *big.Int {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil
	}
	return v
}

// publish hands committed records to sinks and subscribers in log order. It
// runs under stateMu. Committed records are never retracted, so sink failures
// are logged rather than returned.
func (n *Node) publish(ctx context.Context, records []events.Record) {
	if len(records) == 0 {
		return
	}
	for _, sink := range n.sinks {
		if err := sink.Publish(ctx, records); err != nil {
			n.logger.LogAttrs(ctx, slog.LevelError, "event sink publish failed",
				slog.String("error", err.Error()),
				slog.Uint64("fromSeq", records[0].Sequence))
		}
	}
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for id, ch := range n.subs {
		for _, rec := range records {
			select {
			case ch <- rec:
			default:
				n.logger.LogAttrs(ctx, slog.LevelWarn, "dropping event for slow subscriber",
					slog.Int("subscriber", id),
					slog.Uint64("seq", rec.Sequence))
			}
		}
	}
}

// Subscribe returns a channel receiving every event committed after the call.
// The returned function cancels the subscription and closes the channel.
func (n *Node) Subscribe(buffer int) (<-chan events.Record, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan events.Record, buffer)
	n.subsMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch
	n.subsMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.subsMu.Lock()
			delete(n.subs, id)
			n.subsMu.Unlock()
			close(ch)
		})
	}
}

// Events returns up to limit committed events starting at sequence from.
func (n *Node) Events(ctx context.Context, from uint64, limit int) ([]events.Record, error) {
	if from == 0 {
		from = 1
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var out []events.Record
	err := n.view(ctx, func(tx *ledgerTx) error {
		count, err := tx.state.EventCount()
		if err != nil {
			return err
		}
		for seq := from; seq <= count && len(out) < limit; seq++ {
			evt, ok, err := tx.state.EventAt(seq)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("events: missing record %d", seq)
			}
			out = append(out, events.Record{Sequence: seq, Event: *evt})
		}
		return nil
	})
	return out, err
}

// SetModulePaused halts or resumes module. Restricted to the ledger
// administrator.
func (n *Node) SetModulePaused(ctx context.Context, caller [20]byte, module string, paused bool) error {
	return n.execute(ctx, ModuleControl, "set_paused", func(tx *ledgerTx) error {
		if err := requireLedgerAdmin(tx, caller); err != nil {
			return err
		}
		if !slices.Contains(Modules(), module) {
			return fmt.Errorf("control: %w: unknown module %q", common.ErrInvalidArgument, module)
		}
		return tx.state.SetPaused(module, paused)
	})
}

// Modules lists the ledger modules that can be paused.
func Modules() []string {
	return []string{ModuleIdentity, ModuleJobs, ModuleToken, ModuleEscrow}
}

func requireLedgerAdmin(tx *ledgerTx, caller [20]byte) error {
	admin, ok, err := tx.state.LedgerAdmin()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialised
	}
	if caller != admin {
		return fmt.Errorf("control: %w: caller is not the ledger administrator", common.ErrUnauthorized)
	}
	return nil
}

// ModulePaused reports whether module is halted.
func (n *Node) ModulePaused(ctx context.Context, module string) (bool, error) {
	var paused bool
	err := n.view(ctx, func(tx *ledgerTx) error {
		paused = tx.state.IsPaused(module)
		return nil
	})
	return paused, err
}
