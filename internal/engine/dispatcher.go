package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/flame/internal/api"
	"github.com/roach88/flame/internal/catalog"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/metrics"
	"github.com/roach88/flame/internal/state"
)

// Backend issues one envelope-decoded request. *api.Client implements it.
type Backend interface {
	Do(ctx context.Context, method, path, rawQuery string, body, out any) error
}

// AlertFunc is called when a protected route answers 401. It is the
// user-visible "please log in" signal and runs on the task goroutine.
type AlertFunc func(op ir.Op, err error)

// AuthRequiredMessage is the text the default alert logs.
const AuthRequiredMessage = "You need to be logged in to do that."

// SubmissionCancelledMessage marks a submission whose request was cut off
// by Close.
const SubmissionCancelledMessage = "submission cancelled"

// StrategyLocal labels journal records of ops that never reach the backend.
const StrategyLocal = "local"

// Dispatcher routes intents to their handlers.
//
// Thread-safety model:
//   - Dispatch(): safe from any goroutine, including store listeners
//   - Wait(), Close(): safe from any goroutine except a handler or listener
//     running on a task goroutine (they would wait for themselves)
type Dispatcher struct {
	backend  Backend
	catalog  *catalog.Catalog
	store    *state.Store
	logger   *zap.Logger
	metrics  *metrics.Recorder
	clock    *Clock
	flowGen  FlowTokenGenerator
	alert    AlertFunc
	maxSteps int
	journal  *recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	slots  map[ir.Op]*slot

	tasks     taskGroup
	closeOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCatalog replaces the embedded default route catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(d *Dispatcher) { d.catalog = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records dispatch counters and request durations.
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithJournal writes every intent and outcome to j.
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) {
		if j != nil {
			d.journal = newRecorder(j, d.logger)
		}
	}
}

// WithClock sets the logical clock, e.g. NewClockAt(journal max seq).
func WithClock(c *Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithFlowGenerator sets the flow token source.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(d *Dispatcher) { d.flowGen = g }
}

// WithAlert sets the 401 alert for protected routes.
func WithAlert(fn AlertFunc) Option {
	return func(d *Dispatcher) { d.alert = fn }
}

// WithMaxSteps sets the per-flow intent quota.
//
// Default: 32 steps (DefaultMaxSteps).
func WithMaxSteps(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxSteps = n
		}
	}
}

// New creates a Dispatcher writing to st through backend.
//
// Options are applied in order; pass WithLogger before WithJournal so the
// journal writer logs through it.
func New(backend Backend, st *state.Store, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		backend:  backend,
		catalog:  catalog.Default(),
		store:    st,
		logger:   zap.NewNop(),
		clock:    NewClock(),
		flowGen:  UUIDv7Generator{},
		maxSteps: DefaultMaxSteps,
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(map[ir.Op]*slot),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.alert == nil {
		logger := d.logger
		d.alert = func(op ir.Op, err error) {
			logger.Warn(AuthRequiredMessage, zap.String("op", string(op)), zap.Error(err))
		}
	}
	return d
}

// Store returns the state container the dispatcher writes to.
func (d *Dispatcher) Store() *state.Store {
	return d.store
}

// Catalog returns the route catalog in use.
func (d *Dispatcher) Catalog() *catalog.Catalog {
	return d.catalog
}

// flow is the correlation context shared by a root dispatch and its
// follow-ups.
type flow struct {
	token string
	quota *QuotaEnforcer
}

// slot serializes commits of one latest-wins op.
type slot struct {
	mu     sync.Mutex
	gen    atomic.Uint64
	cancel context.CancelFunc // guarded by Dispatcher.mu
}

// task is one running handler invocation.
type task struct {
	d      *Dispatcher
	in     ir.Intent
	op     ir.Op
	id     string
	seq    int64
	flow   *flow
	route  catalog.Route
	ctx    context.Context
	cancel context.CancelFunc

	// latest-wins bookkeeping; slot is nil for every-strategy tasks
	slot *slot
	gen  uint64

	// set at dispatch time
	submission int      // PostSubmission: index of the appended record
	staged     []string // PostStagedSpecies: list captured at dispatch

	// filled by the handler
	httpStatus int
	stale      bool
	next       []ir.Intent
}

// Dispatch starts handling in. It returns once the intent is accepted:
// local ops have been applied and a submission record has been appended,
// but remote work is still running. The returned error only reports
// refusal (closed dispatcher, missing route, quota); handler outcomes are
// observed through the store.
func (d *Dispatcher) Dispatch(in ir.Intent) error {
	fl := &flow{token: d.flowGen.Generate(), quota: NewQuotaEnforcer(d.maxSteps)}
	return d.dispatch(fl, "", in)
}

func (d *Dispatcher) dispatch(fl *flow, parentID string, in ir.Intent) error {
	if in == nil {
		return newUnknownIntentError(nil)
	}
	op := in.Op()
	h, ok := handlers[op]
	if !ok {
		return newUnknownIntentError(in)
	}

	if err := fl.quota.Check(fl.token); err != nil {
		d.logger.Warn("flow refused",
			zap.String("op", string(op)),
			zap.String("flow_token", fl.token),
			zap.Error(err),
		)
		return err
	}

	in = ir.ResolveKind(in, d.store.Snapshot().ReactionMode)

	strategy := StrategyLocal
	var route catalog.Route
	if !op.Local() {
		route, ok = d.catalog.Route(op)
		if !ok {
			return newNoRouteError(op, d.catalog.Name())
		}
		strategy = string(route.Strategy)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return newClosedError(op)
	}

	seq := d.clock.Next()
	rec, err := d.intentRecord(fl, parentID, in, seq, strategy)
	if err != nil {
		d.mu.Unlock()
		return err
	}

	if op.Local() {
		d.mu.Unlock()
		d.metrics.IntentDispatched(string(op), strategy)
		d.recordIntent(rec)
		applyLocal(d.store, in)
		d.recordOutcome(rec.ID, op, ir.OutcomeOK, 0, "")
		d.logger.Debug("local intent applied",
			zap.String("op", string(op)),
			zap.String("flow_token", fl.token),
			zap.Int64("seq", seq),
		)
		return nil
	}

	ctx, cancel := context.WithCancel(d.ctx)
	t := &task{
		d:      d,
		in:     in,
		op:     op,
		id:     rec.ID,
		seq:    seq,
		flow:   fl,
		route:  route,
		ctx:    ctx,
		cancel: cancel,
	}

	if route.Strategy == catalog.StrategyLatest {
		s := d.slotFor(op)
		t.slot = s
		t.gen = s.gen.Add(1)
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel = cancel
	}

	d.tasks.add()
	d.mu.Unlock()

	d.metrics.IntentDispatched(string(op), strategy)
	d.recordIntent(rec)

	// Work that must be visible before Dispatch returns.
	switch v := in.(type) {
	case ir.PostSubmission:
		t.submission = d.store.AppendSubmission(ir.Submission{
			Smiles:     v.Smiles,
			IsReaction: v.IsReaction,
			Status:     ir.StatusSubmitted,
		})
	case ir.PostStagedSpecies:
		t.staged = d.store.Snapshot().StagedSpecies
	}

	d.logger.Debug("intent dispatched",
		zap.String("op", string(op)),
		zap.String("strategy", strategy),
		zap.String("flow_token", fl.token),
		zap.String("intent_id", rec.ID),
		zap.Int64("seq", seq),
	)

	go d.run(t, h)
	return nil
}

// slotFor returns the slot for op. Caller holds d.mu.
func (d *Dispatcher) slotFor(op ir.Op) *slot {
	s, ok := d.slots[op]
	if !ok {
		s = &slot{}
		d.slots[op] = s
	}
	return s
}

func (d *Dispatcher) intentRecord(fl *flow, parentID string, in ir.Intent, seq int64, strategy string) (ir.IntentRecord, error) {
	payload, err := ir.Payload(in)
	if err != nil {
		return ir.IntentRecord{}, err
	}
	payload = ir.Redact(payload)
	id, err := ir.IntentID(fl.token, in.Op(), payload, seq)
	if err != nil {
		return ir.IntentRecord{}, fmt.Errorf("dispatch %s: %w", in.Op(), err)
	}
	return ir.IntentRecord{
		ID:        id,
		FlowToken: fl.token,
		Op:        in.Op(),
		Payload:   payload,
		Seq:       seq,
		ParentID:  parentID,
		Strategy:  strategy,
		IRVersion: ir.IRVersion,
	}, nil
}

func (d *Dispatcher) run(t *task, h handler) {
	d.metrics.TaskStarted()
	defer func() {
		t.cancel()
		d.metrics.TaskFinished()
		d.tasks.done()
	}()

	err := h(t)

	status := ir.OutcomeOK
	detail := ""
	switch {
	case t.stale || IsSuperseded(err):
		status = ir.OutcomeSuperseded
		detail = newSupersededError(t.op, t.flow.token).Message
		t.next = nil
	case err != nil:
		status = ir.OutcomeFailed
		detail = api.ServerMessage(err)
		d.logger.Warn("intent failed",
			zap.String("op", string(t.op)),
			zap.String("flow_token", t.flow.token),
			zap.String("intent_id", t.id),
			zap.Int("status", t.httpStatus),
			zap.Error(err),
		)
	}
	d.recordOutcome(t.id, t.op, status, t.httpStatus, detail)

	for _, in := range t.next {
		if err := d.dispatch(t.flow, t.id, in); err != nil {
			d.logger.Warn("follow-up refused",
				zap.String("op", string(in.Op())),
				zap.String("parent_op", string(t.op)),
				zap.String("flow_token", t.flow.token),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) recordIntent(rec ir.IntentRecord) {
	if d.journal == nil {
		return
	}
	d.journal.record(journalEvent{Intent: &rec})
}

func (d *Dispatcher) recordOutcome(intentID string, op ir.Op, status ir.OutcomeStatus, httpStatus int, detail string) {
	d.metrics.OutcomeRecorded(string(op), string(status))
	if d.journal == nil {
		return
	}
	seq := d.clock.Next()
	id, err := ir.OutcomeID(intentID, string(status), seq)
	if err != nil {
		d.logger.Warn("outcome id failed", zap.String("intent_id", intentID), zap.Error(err))
		return
	}
	d.journal.record(journalEvent{Outcome: &ir.OutcomeRecord{
		ID:         id,
		IntentID:   intentID,
		Status:     status,
		HTTPStatus: httpStatus,
		Detail:     detail,
		Seq:        seq,
	}})
}

// Wait blocks until every in-flight task, follow-ups included, has
// finished and the journal has caught up.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if err := d.tasks.wait(ctx); err != nil {
		return err
	}
	if d.journal != nil {
		return d.journal.flush(ctx)
	}
	return nil
}

// Close cancels every in-flight task, waits for them and stops the
// journal writer. Later dispatches fail with DISPATCHER_CLOSED.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		d.cancel()
		_ = d.tasks.wait(context.Background())
		if d.journal != nil {
			d.journal.close()
		}
	})
	return nil
}

// commit applies fn unless the task is stale. For latest-wins tasks the
// generation check and fn run under the slot lock, so two commits of the
// same op never interleave and a superseded task never writes. A dispatch
// that bumps the generation after a passed check is ordered after that
// commit.
func (t *task) commit(fn func()) bool {
	if t.slot == nil {
		if t.ctx.Err() != nil {
			t.stale = true
			return false
		}
		fn()
		return true
	}

	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	if t.slot.gen.Load() != t.gen || t.ctx.Err() != nil {
		t.stale = true
		return false
	}
	fn()
	return true
}

// then queues a follow-up. Follow-ups are dispatched after the outcome is
// recorded, and dropped when the task turns out stale.
func (t *task) then(in ir.Intent) {
	t.next = append(t.next, in)
}

// call issues the task's one request. params fill the route placeholders.
func (t *task) call(kind ir.Kind, params map[string]string, query string, body, out any) error {
	path, err := t.route.Resolve(kind, params)
	if err != nil {
		return err
	}

	start := time.Now()
	err = t.d.backend.Do(t.ctx, t.route.Method, path, query, body, out)
	t.d.metrics.ObserveRequest(string(t.op), time.Since(start))

	t.httpStatus = api.StatusCode(err)
	if err != nil && t.ctx.Err() != nil && t.slot != nil && t.slot.gen.Load() != t.gen {
		return newSupersededError(t.op, t.flow.token)
	}
	if err != nil && t.route.Protected && api.IsUnauthorized(err) {
		t.d.alert(t.op, err)
	}
	return err
}

// taskGroup counts running tasks. Unlike sync.WaitGroup it may gain tasks
// while someone is waiting.
type taskGroup struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (g *taskGroup) add() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n == 0 {
		g.idle = make(chan struct{})
	}
	g.n++
}

func (g *taskGroup) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n--
	if g.n == 0 {
		close(g.idle)
	}
}

func (g *taskGroup) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.n == 0 {
			g.mu.Unlock()
			return nil
		}
		idle := g.idle
		g.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
