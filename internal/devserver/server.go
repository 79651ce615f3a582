// Package devserver is an in-memory implementation of the flame-data REST
// API for local development and tests.
//
// It keeps the backend's observable behavior: cookie sessions, 401 on
// protected routes without a session, 409 on duplicate registration, a
// "My Data" collection per user that receives that user's submissions, and
// formula search with exact and partial matching sorted by formula. Chemistry
// is not computed: formulas are heavy-atom counts unless seeded.
package devserver

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "session"

// MyDataCollection is created for every user and receives their submissions.
const MyDataCollection = "My Data"

// Fault overrides the handling of one request.
type Fault struct {
	// Delay holds the request before handling it. The request's context
	// cutting the delay short aborts the request.
	Delay time.Duration

	// Status, when non-zero, is returned instead of handling the request.
	Status  int
	Message string
}

// Hook inspects a request before it is handled and may return a Fault.
// Hooks may block; they run on the request goroutine.
type Hook func(r *http.Request) *Fault

type account struct {
	user ir.User
	hash []byte
}

type collection struct {
	id        int64
	owner     int64
	name      string
	species   []int64
	reactions []int64
}

// table holds one kind's connectivities and detail records.
type table struct {
	conns   map[int64]ir.Connectivity
	details map[int64][]ir.Detail
}

func newTable() *table {
	return &table{conns: map[int64]ir.Connectivity{}, details: map[int64][]ir.Detail{}}
}

// Server is the in-memory backend.
//
// Thread-safety: Handler is safe for concurrent requests; all data is
// guarded by one mutex, never held while a Hook runs.
type Server struct {
	logger *zap.Logger
	cost   int

	hookMu sync.RWMutex
	hook   Hook

	mu          sync.Mutex
	accounts    map[string]*account // by email
	sessions    map[string]int64    // token -> user id
	tables      map[ir.Kind]*table
	collections map[int64]*collection
	nextUser    int64
	nextConn    int64
	nextDetail  int64
	nextColl    int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs each request at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHook installs a request hook at construction.
func WithHook(h Hook) Option {
	return func(s *Server) { s.hook = h }
}

// WithBcryptCost sets the password hashing cost.
//
// Default: bcrypt.MinCost, which keeps test fixtures fast.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// New creates an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		logger:      zap.NewNop(),
		cost:        bcrypt.MinCost,
		accounts:    map[string]*account{},
		sessions:    map[string]int64{},
		tables:      map[ir.Kind]*table{ir.KindSpecies: newTable(), ir.KindReaction: newTable()},
		collections: map[int64]*collection{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHook replaces the request hook; nil removes it.
func (s *Server) SetHook(h Hook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hook = h
}

// Seed loads a fixture. Items are added in order, so IDs are predictable:
// the first species is connectivity 1.
func (s *Server) Seed(fx Fixture) error {
	for _, u := range fx.Users {
		if _, err := s.register(u.Email, u.Password, u.Admin); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range fx.Species {
		s.seedItem(ir.KindSpecies, item)
	}
	for _, item := range fx.Reactions {
		s.seedItem(ir.KindReaction, item)
	}
	return nil
}

// seedItem adds one fixture item. Caller holds s.mu.
func (s *Server) seedItem(kind ir.Kind, item FixtureItem) {
	conn := s.addConn(kind, item.Smiles, item.Formula)
	if len(item.Details) == 0 {
		s.addDetail(kind, conn, item.Smiles, "", 0)
		return
	}
	for _, d := range item.Details {
		smiles := d.Smiles
		if smiles == "" {
			smiles = item.Smiles
		}
		s.addDetail(kind, conn, smiles, d.Geometry, d.SpinMult)
	}
}

// lookupConn finds an existing connectivity by SMILES. Caller holds s.mu.
func (s *Server) lookupConn(kind ir.Kind, smiles string) (ir.Connectivity, bool) {
	for _, c := range s.tables[kind].conns {
		if c.ConnSmiles == smiles {
			return c, true
		}
	}
	return ir.Connectivity{}, false
}

// addConn inserts a connectivity. Caller holds s.mu.
func (s *Server) addConn(kind ir.Kind, smiles, formula string) ir.Connectivity {
	if formula == "" {
		formula = heavyAtomFormula(smiles)
	}
	s.nextConn++
	c := ir.Connectivity{ID: s.nextConn, Formula: formula, ConnSmiles: smiles}
	s.tables[kind].conns[c.ID] = c
	return c
}

// addDetail inserts a detail record under conn. Caller holds s.mu.
func (s *Server) addDetail(kind ir.Kind, conn ir.Connectivity, smiles, geometry string, spin int64) {
	if spin == 0 {
		spin = 1
	}
	s.nextDetail++
	t := s.tables[kind]
	t.details[conn.ID] = append(t.details[conn.ID], ir.Detail{
		ID:         s.nextDetail,
		ConnID:     conn.ID,
		Geometry:   geometry,
		Smiles:     smiles,
		SpinMult:   spin,
		Formula:    conn.Formula,
		ConnSmiles: conn.ConnSmiles,
	})
}

// search returns the connectivities matching q sorted by formula, then ID.
func (s *Server) search(kind ir.Kind, q ir.Query) []ir.Connectivity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []ir.Connectivity{}
	for _, c := range s.tables[kind].conns {
		if chem.MatchesFormula(c.Formula, q) {
			out = append(out, c)
		}
	}
	sortConns(out)
	return out
}

func sortConns(items []ir.Connectivity) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Formula != items[j].Formula {
			return items[i].Formula < items[j].Formula
		}
		return items[i].ID < items[j].ID
	})
}

func (s *Server) register(email, password string, admin bool) (ir.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return ir.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; ok {
		return ir.User{}, errAlreadyRegistered
	}
	s.nextUser++
	acct := &account{user: ir.User{ID: s.nextUser, Email: email, Admin: admin}, hash: hash}
	s.accounts[email] = acct
	s.addCollection(acct.user.ID, MyDataCollection)
	return acct.user, nil
}

// addCollection creates a collection. Caller holds s.mu.
func (s *Server) addCollection(owner int64, name string) *collection {
	s.nextColl++
	c := &collection{id: s.nextColl, owner: owner, name: name}
	s.collections[c.id] = c
	return c
}

// myData returns the user's "My Data" collection. Caller holds s.mu.
func (s *Server) myData(owner int64) *collection {
	var found *collection
	for _, c := range s.collections {
		if c.owner == owner && c.name == MyDataCollection && (found == nil || c.id < found.id) {
			found = c
		}
	}
	return found
}
