package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/flame/internal/api"
	"github.com/roach88/flame/internal/catalog"
	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/config"
	"github.com/roach88/flame/internal/engine"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/logging"
	"github.com/roach88/flame/internal/metrics"
	"github.com/roach88/flame/internal/state"
	"github.com/roach88/flame/internal/store"
	"github.com/roach88/flame/internal/view"
)

// session is one CLI invocation's client: configuration, backend client,
// state store, dispatcher and renderers, wired the same way for every
// command.
type session struct {
	cfg        *config.Config
	logger     *zap.Logger
	client     *api.Client
	state      *state.Store
	renderer   *chem.CatalogRenderer
	dispatcher *engine.Dispatcher
	journal    *sessionJournal
	text       *view.Text
	out        *OutputFormatter

	store      *store.Store // nil without --journal
	metricsSrv *http.Server // nil without --metrics-addr

	mu     sync.Mutex
	alerts []ir.Op

	unlearn func()
}

// openSession loads configuration and builds the session for cmd.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(config.Options{File: opts.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger, err := newLogger(cmd, cfg, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	client, err := api.New(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout), api.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid backend", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	s := &session{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		state:    state.New(),
		renderer: chem.NewCatalogRenderer(),
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}
	s.text = view.NewText(cmd.OutOrStdout(), s.renderer)
	s.unlearn = s.state.Subscribe(func(changed state.Slice, snap state.Snapshot) {
		if changed == state.SliceReactions {
			s.renderer.Learn(snap.Reactions)
			return
		}
		s.renderer.Learn(snap.Species)
	}, state.SliceSpecies, state.SliceReactions)

	clock := engine.NewClock()
	if cfg.Journal.Path != "" {
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		seq, err := st.MaxSeq(cmd.Context())
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		s.store = st
		clock = engine.NewClockAt(seq)
	}
	s.journal = newSessionJournal(s.store)

	var rec *metrics.Recorder
	if cfg.Metrics.Addr != "" {
		rec = metrics.New()
		if err := s.serveMetrics(rec); err != nil {
			s.closeStore()
			return nil, WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
	}

	s.dispatcher = engine.New(client, s.state,
		engine.WithLogger(logger),
		engine.WithCatalog(cat),
		engine.WithMetrics(rec),
		engine.WithJournal(s.journal),
		engine.WithClock(clock),
		engine.WithMaxSteps(cfg.Engine.MaxSteps),
		engine.WithAlert(s.alert),
	)
	return s, nil
}

// withSession runs fn with a fresh session and closes it afterwards.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(cmd.Context(), s)
}

func newLogger(cmd *cobra.Command, cfg *config.Config, verbose bool) (*zap.Logger, error) {
	lc := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	if verbose {
		lc.Level = "debug"
	}
	switch strings.ToLower(lc.Output) {
	case "", "stderr":
		return logging.NewWithWriter(lc, cmd.ErrOrStderr())
	}
	return logging.New(lc)
}

func (s *session) serveMetrics(rec *metrics.Recorder) error {
	ln, err := net.Listen("tcp", s.cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

func (s *session) alert(op ir.Op, err error) {
	s.mu.Lock()
	s.alerts = append(s.alerts, op)
	s.mu.Unlock()
	s.logger.Warn(engine.AuthRequiredMessage, zap.String("op", string(op)), zap.Error(err))
}

// run dispatches each intent in turn and waits for it, follow-ups
// included, before the next.
func (s *session) run(ctx context.Context, intents ...ir.Intent) error {
	for _, in := range intents {
		if err := s.dispatcher.Dispatch(in); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("dispatch %s", in.Op()), err)
		}
		if err := s.dispatcher.Wait(ctx); err != nil {
			return WrapExitError(ExitCommandError, "waiting for backend", err)
		}
	}
	return nil
}

// authenticate logs in with the configured credentials, if any. Commands
// that hit protected routes call it first; the session cookie lives only
// as long as the process.
func (s *session) authenticate(ctx context.Context) error {
	if s.cfg.Auth.Email == "" {
		return nil
	}
	creds := ir.Credentials{Email: s.cfg.Auth.Email, Password: s.cfg.Auth.Password}
	if err := s.run(ctx, ir.LoginUser{Credentials: creds}); err != nil {
		return err
	}
	if snap := s.state.Snapshot(); snap.User == nil {
		msg := snap.Error
		if msg == "" {
			msg = state.LoginErrorMessage
		}
		return NewExitError(ExitFailure, msg)
	}
	s.out.VerboseLog("logged in as %s", s.cfg.Auth.Email)
	return nil
}

// finish renders the named slices and reports whether the invocation
// failed: a 401 alert, an error message in state, or a failed root intent.
func (s *session) finish(slices ...state.Slice) error {
	snap := s.state.Snapshot()
	code, failure := s.failure(snap)

	if s.out.JSON() {
		data := pick(snap, slices)
		if failure != nil {
			if err := s.out.Error(code, failure.Message, data); err != nil {
				return err
			}
			return failure
		}
		return s.out.Success(data)
	}

	if err := s.out.Success(s.renderText(snap, slices)); err != nil {
		return err
	}
	if failure != nil {
		return failure
	}
	return nil
}

// render writes the named slices without judging the outcome.
func (s *session) render(slices ...state.Slice) error {
	snap := s.state.Snapshot()
	if s.out.JSON() {
		return s.out.Success(pick(snap, slices))
	}
	return s.out.Success(s.renderText(snap, slices))
}

func (s *session) renderText(snap state.Snapshot, slices []state.Slice) string {
	var b strings.Builder
	for _, sl := range slices {
		b.WriteString(s.text.Slice(sl, snap))
	}
	return b.String()
}

func (s *session) failure(snap state.Snapshot) (string, *ExitError) {
	s.mu.Lock()
	alerted := len(s.alerts) > 0
	s.mu.Unlock()
	if alerted {
		return CodeAuthRequired, NewExitError(ExitFailure, engine.AuthRequiredMessage)
	}
	if snap.Error != "" {
		return CodeRequestFailed, NewExitError(ExitFailure, snap.Error)
	}
	if f, ok := s.journal.firstRootFailure(); ok {
		msg := fmt.Sprintf("%s failed", f.op)
		if f.detail != "" {
			msg += ": " + f.detail
		}
		return CodeRequestFailed, NewExitError(ExitFailure, msg)
	}
	return "", nil
}

// pick returns the JSON form of the named slices.
func pick(snap state.Snapshot, slices []state.Slice) map[string]json.RawMessage {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(slices))
	for _, sl := range slices {
		out[string(sl)] = all[string(sl)]
	}
	return out
}

func (s *session) close() {
	_ = s.dispatcher.Close()
	s.unlearn()
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}
	s.closeStore()
	_ = s.logger.Sync()
}

func (s *session) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("journal close failed", zap.Error(err))
	}
}

// sessionJournal remembers the failed outcomes of this invocation and
// forwards every record to the persistent journal, when one is open.
type sessionJournal struct {
	next engine.Journal

	mu       sync.Mutex
	intents  map[string]ir.IntentRecord
	failures []failedIntent
}

type failedIntent struct {
	op         ir.Op
	root       bool
	httpStatus int
	detail     string
}

func newSessionJournal(st *store.Store) *sessionJournal {
	j := &sessionJournal{intents: make(map[string]ir.IntentRecord)}
	if st != nil {
		j.next = st
	}
	return j
}

func (j *sessionJournal) WriteIntent(ctx context.Context, rec ir.IntentRecord) error {
	j.mu.Lock()
	j.intents[rec.ID] = rec
	j.mu.Unlock()
	if j.next == nil {
		return nil
	}
	return j.next.WriteIntent(ctx, rec)
}

func (j *sessionJournal) WriteOutcome(ctx context.Context, rec ir.OutcomeRecord) error {
	if rec.Status == ir.OutcomeFailed {
		j.mu.Lock()
		in := j.intents[rec.IntentID]
		j.failures = append(j.failures, failedIntent{
			op:         in.Op,
			root:       in.ParentID == "",
			httpStatus: rec.HTTPStatus,
			detail:     rec.Detail,
		})
		j.mu.Unlock()
	}
	if j.next == nil {
		return nil
	}
	return j.next.WriteOutcome(ctx, rec)
}

// firstRootFailure returns the first failed root intent. A 401 from the
// session probe only means nobody is logged in.
func (j *sessionJournal) firstRootFailure() (failedIntent, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, f := range j.failures {
		if !f.root {
			continue
		}
		if f.op == ir.OpGetUser && f.httpStatus == http.StatusUnauthorized {
			continue
		}
		return f, true
	}
	return failedIntent{}, false
}
