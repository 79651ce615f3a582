package devserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
)

var errAlreadyRegistered = errors.New("A user with this email already exists")

var kinds = []ir.Kind{ir.KindSpecies, ir.KindReaction}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/@me", s.getMe)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("POST /api/logout", s.logout)
	mux.HandleFunc("POST /api/register", s.registerUser)

	for _, kind := range kinds {
		base := "/api/" + string(kind) + "/connectivity"
		mux.HandleFunc("GET "+base, s.listConns(kind))
		mux.HandleFunc("POST "+base, s.protected(s.postConn(kind)))
		mux.HandleFunc("GET "+base+"/{id}", s.getDetails(kind))
		mux.HandleFunc("DELETE "+base+"/{id}", s.protected(s.deleteConn(kind)))
		mux.HandleFunc("POST /api/collection/"+string(kind)+"/{id}", s.protected(s.addToCollection(kind)))
		mux.HandleFunc("DELETE /api/collection/"+string(kind)+"/{id}", s.protected(s.removeFromCollection(kind)))
	}
	mux.HandleFunc("POST /api/species/connectivity/batch", s.protected(s.postBatch))
	mux.HandleFunc("PUT /api/species/{id}", s.protected(s.putGeometry(ir.KindSpecies)))
	mux.HandleFunc("PUT /api/reaction/ts/{id}", s.protected(s.putGeometry(ir.KindReaction)))

	mux.HandleFunc("GET /api/collection", s.protected(s.listCollections))
	mux.HandleFunc("POST /api/collection", s.protected(s.postCollection))
	mux.HandleFunc("DELETE /api/collection/{id}", s.protected(s.deleteCollection))

	return s.withFaults(mux)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defer func() {
			s.logger.Debug("devserver request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		}()

		s.hookMu.RLock()
		hook := s.hook
		s.hookMu.RUnlock()

		if hook != nil {
			if f := hook(r); f != nil {
				if f.Delay > 0 {
					// net/http only notices a client hanging up once the
					// body has been read.
					body, _ := io.ReadAll(r.Body)
					r.Body = io.NopCloser(bytes.NewReader(body))
					timer := time.NewTimer(f.Delay)
					select {
					case <-timer.C:
					case <-r.Context().Done():
						timer.Stop()
						return
					}
				}
				if f.Status != 0 {
					writeError(rec, f.Status, f.Message)
					return
				}
			}
		}
		next.ServeHTTP(rec, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, user ir.User)

// protected answers 401 unless the request carries a live session.
func (s *Server) protected(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h(w, r, user)
	}
}

func (s *Server) sessionUser(r *http.Request) (ir.User, bool) {
	ck, err := r.Cookie(SessionCookie)
	if err != nil {
		return ir.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[ck.Value]
	if !ok {
		return ir.User{}, false
	}
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return ir.User{}, false
}

func (s *Server) startSession(w http.ResponseWriter, user ir.User) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = user.ID
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeContents(w, http.StatusOK, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds ir.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[creds.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	s.startSession(w, acct.user)
	writeContents(w, http.StatusOK, acct.user)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, ck.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var creds ir.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.register(creds.Email, creds.Password, false)
	if errors.Is(err, errAlreadyRegistered) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.startSession(w, user)
	writeContents(w, http.StatusCreated, user)
}

func (s *Server) listConns(kind ir.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := ir.Query{
			Formula: r.URL.Query().Get("formula"),
			Partial: r.URL.Query().Has("partial"),
		}
		writeContents(w, http.StatusOK, s.search(kind, q))
	}
}

// addSubmission inserts smiles (or reuses an existing connectivity) and
// files it under the user's "My Data" collection. It returns a non-zero
// status on rejection.
func (s *Server) addSubmission(kind ir.Kind, user ir.User, smiles string) (int, string) {
	if !chem.PlausibleSmiles(smiles) {
		return http.StatusBadRequest, "Invalid SMILES string: " + smiles
	}
	if kind == ir.KindReaction && !chem.IsReactionSmiles(smiles) {
		return http.StatusBadRequest, "Reaction SMILES must contain '>>': " + smiles
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.lookupConn(kind, smiles)
	if !ok {
		conn = s.addConn(kind, smiles, "")
		s.addDetail(kind, conn, smiles, "", 0)
	}
	if coll := s.myData(user.ID); coll != nil {
		coll.add(kind, conn.ID)
	}
	return 0, ""
}

func (s *Server) postConn(kind ir.Kind) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user ir.User) {
		var body struct {
			Smiles string `json:"smiles"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if status, msg := s.addSubmission(kind, user, body.Smiles); status != 0 {
			writeError(w, status, msg)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) postBatch(w http.ResponseWriter, r *http.Request, user ir.User) {
	var body struct {
		SmilesList []string `json:"smilesList"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	for _, smiles := range body.SmilesList {
		if status, msg := s.addSubmission(ir.KindSpecies, user, smiles); status != 0 {
			writeError(w, status, msg)
			return
		}
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getDetails(kind ir.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		records := append([]ir.Detail{}, s.tables[kind].details[id]...)
		s.mu.Unlock()
		writeContents(w, http.StatusOK, records)
	}
}

func (s *Server) deleteConn(kind ir.Kind) userHandler {
	return func(w http.ResponseWriter, r *http.Request, _ ir.User) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		t := s.tables[kind]
		if _, ok := t.conns[id]; !ok {
			writeError(w, http.StatusNotFound, "No such "+string(kind)+" connectivity")
			return
		}
		delete(t.conns, id)
		delete(t.details, id)
		for _, c := range s.collections {
			c.remove(kind, id)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) putGeometry(kind ir.Kind) userHandler {
	return func(w http.ResponseWriter, r *http.Request, _ ir.User) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body struct {
			ConnID   int64  `json:"conn_id"`
			Geometry string `json:"geometry"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if _, err := chem.ParseXYZ(body.Geometry); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		records := s.tables[kind].details[body.ConnID]
		for i := range records {
			if records[i].ID == id {
				records[i].Geometry = body.Geometry
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeError(w, http.StatusNotFound, "No such "+string(kind)+" record")
	}
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request, user ir.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []ir.Collection{}
	for _, c := range s.collections {
		if c.owner != user.ID {
			continue
		}
		out = append(out, ir.Collection{
			ID:        c.id,
			Name:      c.name,
			Species:   s.members(ir.KindSpecies, c.species),
			Reactions: s.members(ir.KindReaction, c.reactions),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeContents(w, http.StatusOK, out)
}

// members resolves connectivity IDs, skipping deleted ones. Caller holds s.mu.
func (s *Server) members(kind ir.Kind, ids []int64) []ir.Connectivity {
	out := []ir.Connectivity{}
	for _, id := range ids {
		if c, ok := s.tables[kind].conns[id]; ok {
			out = append(out, c)
		}
	}
	sortConns(out)
	return out
}

func (s *Server) postCollection(w http.ResponseWriter, r *http.Request, user ir.User) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "collection name is required")
		return
	}
	s.mu.Lock()
	s.addCollection(user.ID, body.Name)
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

// ownCollection looks up a collection of user's. Caller holds s.mu.
func (s *Server) ownCollection(w http.ResponseWriter, id int64, user ir.User) (*collection, bool) {
	c, ok := s.collections[id]
	if !ok || c.owner != user.ID {
		writeError(w, http.StatusNotFound, "No such collection")
		return nil, false
	}
	return c, true
}

func (s *Server) addToCollection(kind ir.Kind) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user ir.User) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body struct {
			ConnIDs []int64 `json:"conn_ids"`
		}
		if !decodeBody(w, r, &body) {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.ownCollection(w, id, user)
		if !ok {
			return
		}
		for _, connID := range body.ConnIDs {
			if _, exists := s.tables[kind].conns[connID]; exists {
				c.add(kind, connID)
			}
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) removeFromCollection(kind ir.Kind) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user ir.User) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body struct {
			ConnIDs []int64 `json:"conn_ids"`
		}
		if !decodeBody(w, r, &body) {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.ownCollection(w, id, user)
		if !ok {
			return
		}
		for _, connID := range body.ConnIDs {
			c.remove(kind, connID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request, user ir.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ownCollection(w, id, user); !ok {
		return
	}
	delete(s.collections, id)
	w.WriteHeader(http.StatusNoContent)
}

func (c *collection) add(kind ir.Kind, id int64) {
	list := &c.species
	if kind == ir.KindReaction {
		list = &c.reactions
	}
	for _, have := range *list {
		if have == id {
			return
		}
	}
	*list = append(*list, id)
}

func (c *collection) remove(kind ir.Kind, id int64) {
	list := &c.species
	if kind == ir.KindReaction {
		list = &c.reactions
	}
	out := (*list)[:0]
	for _, have := range *list {
		if have != id {
			out = append(out, have)
		}
	}
	*list = out
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id "+strconv.Quote(r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeContents(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"contents": v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
