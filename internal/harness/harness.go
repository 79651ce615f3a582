package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/flame/internal/api"
	"github.com/roach88/flame/internal/catalog"
	"github.com/roach88/flame/internal/devserver"
	"github.com/roach88/flame/internal/engine"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
	"github.com/roach88/flame/internal/store"
	"github.com/roach88/flame/internal/testutil"
)

// DefaultTimeout bounds each wait for in-flight tasks.
const DefaultTimeout = 30 * time.Second

// Harness runs scenarios. Each run gets a fresh development backend, a
// fresh store, an in-memory journal, a logical clock starting at zero and
// deterministic flow tokens, so identical scenarios produce identical
// traces.
type Harness struct {
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes dispatcher, client and backend logs to l.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithTimeout bounds each wait for in-flight tasks.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.timeout = d }
}

// New creates a Harness. Logs are discarded by default.
func New(opts ...Option) *Harness {
	h := &Harness{logger: zap.NewNop(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes s with a default Harness.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return New().Run(ctx, s)
}

// Run executes s and evaluates its assertions.
//
// A refused dispatch or a failed assertion fails the Result. An error is
// returned only when the scenario could not run at all: an unreadable
// fixture or catalog, or a wait that timed out.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	fx, err := devserver.LoadFixture(s.Fixture)
	if err != nil {
		return nil, err
	}
	cat := catalog.Default()
	if s.Catalog != "" {
		if cat, err = catalog.Load(s.Catalog); err != nil {
			return nil, err
		}
	}

	srv := devserver.New(devserver.WithLogger(h.logger))
	if err := srv.Seed(fx); err != nil {
		return nil, fmt.Errorf("failed to seed backend: %w", err)
	}
	faults := &faultSet{}
	srv.SetHook(faults.match)

	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	tr := &http.Transport{}
	defer tr.CloseIdleConnections()

	client, err := api.New(hs.URL, api.WithHTTPClient(&http.Client{Transport: tr}), api.WithLogger(h.logger))
	if err != nil {
		return nil, err
	}

	journal, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer journal.Close()

	var flows engine.FlowTokenGenerator = testutil.NewSequenceFlowGenerator(s.Name)
	if len(s.FlowTokens) > 0 {
		flows = engine.NewFixedGenerator(s.FlowTokens...)
	}

	var alerts atomic.Int64
	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithCatalog(cat),
		engine.WithJournal(journal),
		engine.WithClock(engine.NewClock()),
		engine.WithFlowGenerator(flows),
		engine.WithAlert(func(ir.Op, error) { alerts.Add(1) }),
	}
	if s.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(s.MaxSteps))
	}
	st := state.New()
	d := engine.New(client, st, opts...)

	result := NewResult()
	runErr := h.execute(ctx, d, faults, s.Steps, result)

	// Close cancels whatever is still in flight and drains the journal.
	if err := d.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}

	intents, err := journal.ReadAllIntents(ctx)
	if err != nil {
		return nil, err
	}
	outcomes, err := journal.ReadAllOutcomes(ctx)
	if err != nil {
		return nil, err
	}
	result.Trace = buildTrace(intents, outcomes)
	result.Alerts = int(alerts.Load())

	if result.State, err = stateMap(st.Snapshot()); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, d *engine.Dispatcher, faults *faultSet, steps []Step, result *Result) error {
	for i, step := range steps {
		where := fmt.Sprintf("steps[%d]", i)

		switch {
		case step.Fault != nil:
			faults.add(*step.Fault)
			continue
		case step.ClearFaults:
			faults.clear()
			continue
		case len(step.Parallel) > 0:
			var g errgroup.Group
			for j, sub := range step.Parallel {
				g.Go(func() error {
					if err := dispatch(d, sub); err != nil {
						return fmt.Errorf("%s.parallel[%d]: %w", where, j, err)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				result.AddError(err.Error())
			}
		default:
			if err := dispatch(d, step); err != nil {
				result.AddError(fmt.Sprintf("%s: %v", where, err))
			}
			if step.Async {
				continue
			}
		}

		if err := h.wait(ctx, d); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	return h.wait(ctx, d)
}

func (h *Harness) wait(ctx context.Context, d *engine.Dispatcher) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for in-flight tasks: %w", err)
	}
	return nil
}

func dispatch(d *engine.Dispatcher, step Step) error {
	in, err := ir.Encode(step.Dispatch, step.Payload)
	if err != nil {
		return err
	}
	return d.Dispatch(in)
}

// stateMap renders a snapshot in its JSON form so assertions compare
// against plain YAML values.
func stateMap(snap state.Snapshot) (map[string]any, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return out, nil
}

// faultSet is the backend hook driven by fault steps. The most recently
// added matching fault wins.
type faultSet struct {
	mu     sync.Mutex
	faults []FaultStep
}

func (f *faultSet) add(fs FaultStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, fs)
}

func (f *faultSet) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

func (f *faultSet) match(r *http.Request) *devserver.Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.faults) - 1; i >= 0; i-- {
		fs := f.faults[i]
		if fs.Method != "" && !strings.EqualFold(fs.Method, r.Method) {
			continue
		}
		if fs.Path != r.URL.Path || !strings.Contains(r.URL.RawQuery, fs.Query) {
			continue
		}
		return &devserver.Fault{Delay: fs.delay, Status: fs.Status, Message: fs.Message}
	}
	return nil
}
