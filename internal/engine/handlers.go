package engine

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/flame/internal/api"
	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// handler performs one remote op. It returns the request error; state
// changes and follow-ups go through t.commit and t.then.
type handler func(t *task) error

var handlers map[ir.Op]handler

func init() {
	handlers = map[ir.Op]handler{
		ir.OpGetUser:               handleGetUser,
		ir.OpLoginUser:             handleLogin,
		ir.OpRegisterUser:          handleRegister,
		ir.OpLogoutUser:            handleLogout,
		ir.OpGetSpecies:            handleList,
		ir.OpGetReactions:          handleList,
		ir.OpGetDetails:            handleGetDetails,
		ir.OpDeleteItem:            handleDeleteItem,
		ir.OpUpdateItemGeometry:    handleUpdateGeometry,
		ir.OpPostSubmission:        handlePostSubmission,
		ir.OpGetCollections:        handleGetCollections,
		ir.OpPostNewCollection:     handlePostNewCollection,
		ir.OpPostCollectionItems:   handleCollectionItems,
		ir.OpDeleteCollectionItems: handleCollectionItems,
		ir.OpDeleteCollection:      handleDeleteCollection,
		ir.OpPostStagedSpecies:     handlePostStagedSpecies,

		ir.OpSetRetypeError:     nil,
		ir.OpSetReactionMode:    nil,
		ir.OpStageSpecies:       nil,
		ir.OpClearStagedSpecies: nil,
	}
}

// applyLocal performs an op that only touches state.
func applyLocal(st *state.Store, in ir.Intent) {
	switch v := in.(type) {
	case ir.SetRetypeError:
		st.SetRetypeError()
	case ir.SetReactionMode:
		st.SetReactionMode(v.Enabled)
	case ir.StageSpecies:
		st.StageSpecies(v.Smiles)
	case ir.ClearStagedSpecies:
		st.ClearStagedSpecies()
	}
}

func formatID(n int64) string {
	return strconv.FormatInt(n, 10)
}

func handleGetUser(t *task) error {
	var user *ir.User
	if err := t.call("", nil, "", nil, &user); err != nil {
		return err
	}
	t.commit(func() {
		if user == nil {
			t.d.store.UnsetUser()
			return
		}
		t.d.store.SetUser(*user)
	})
	return nil
}

func handleLogin(t *task) error {
	in := t.in.(ir.LoginUser)
	return authenticate(t, in.Credentials, http.StatusUnauthorized, t.d.store.SetLoginError)
}

func handleRegister(t *task) error {
	in := t.in.(ir.RegisterUser)
	return authenticate(t, in.Credentials, http.StatusConflict, t.d.store.SetRegistrationError)
}

// authenticate posts credentials. A rejection with the expected status
// sets its specific message; any other failure sets the codeless one.
func authenticate(t *task, creds ir.Credentials, rejected int, onRejected func()) error {
	if !t.commit(t.d.store.ClearError) {
		return nil
	}
	err := t.call("", nil, "", creds, nil)
	if err != nil {
		if IsSuperseded(err) {
			return err
		}
		t.commit(func() {
			if api.StatusCode(err) == rejected {
				onRejected()
				return
			}
			t.d.store.SetCodelessError()
		})
		return err
	}
	t.commit(func() { t.then(ir.GetUser{}) })
	return nil
}

func handleLogout(t *task) error {
	err := t.call("", nil, "", struct{}{}, nil)
	if IsSuperseded(err) {
		return err
	}
	t.commit(t.d.store.UnsetUser)
	return err
}

func handleList(t *task) error {
	var q ir.Query
	kind := ir.KindSpecies
	switch v := t.in.(type) {
	case ir.GetSpecies:
		q = v.Query
	case ir.GetReactions:
		q = v.Query
		kind = ir.KindReaction
	}

	var items []ir.Connectivity
	if err := t.call(kind, nil, q.Encode(), nil, &items); err != nil {
		return err
	}
	if items == nil {
		items = []ir.Connectivity{}
	}
	t.commit(func() { t.d.store.SetSummaries(kind, items) })
	return nil
}

func handleGetDetails(t *task) error {
	in := t.in.(ir.GetDetails)
	var records []ir.Detail
	if err := t.call(in.Kind, map[string]string{"id": formatID(in.ConnID)}, "", nil, &records); err != nil {
		return err
	}
	if records == nil {
		records = []ir.Detail{}
	}
	t.commit(func() {
		t.d.store.AddDetails(in.Kind, ir.DetailCache{in.ConnID: records})
	})
	return nil
}

func handleDeleteItem(t *task) error {
	in := t.in.(ir.DeleteItem)
	if err := t.call(in.Kind, map[string]string{"id": formatID(in.ConnID)}, "", nil, nil); err != nil {
		return err
	}
	t.commit(func() { t.then(ir.ListIntent(in.Kind, ir.Query{})) })
	return nil
}

func handleUpdateGeometry(t *task) error {
	in := t.in.(ir.UpdateItemGeometry)
	body := struct {
		ID       int64  `json:"id"`
		ConnID   int64  `json:"conn_id"`
		Geometry string `json:"geometry"`
	}{in.ID, in.ConnID, in.Geometry}

	if err := t.call(in.Kind, map[string]string{"id": formatID(in.ID)}, "", body, nil); err != nil {
		return err
	}
	t.commit(func() { t.then(ir.GetDetails{ConnID: in.ConnID, Kind: in.Kind}) })
	return nil
}

func handlePostSubmission(t *task) error {
	in := t.in.(ir.PostSubmission)
	sub := ir.Submission{Smiles: in.Smiles, IsReaction: in.IsReaction}
	kind := sub.Kind()
	body := map[string]string{"smiles": chem.NormalizeSubmission(in.Smiles)}

	err := t.call(kind, nil, "", body, nil)
	if IsSuperseded(err) {
		return err
	}

	upd := ir.SubmissionUpdate{Status: ir.StatusComplete}
	switch {
	case err != nil && t.ctx.Err() != nil:
		upd = ir.SubmissionUpdate{Status: ir.StatusError, Message: SubmissionCancelledMessage}
	case err != nil:
		upd = ir.SubmissionUpdate{Status: ir.StatusError, Message: api.ServerMessage(err)}
	}

	// The record settles even when the dispatcher is closing; only the
	// listing refresh is subject to the stale check.
	if uerr := t.d.store.UpdateSubmission(t.submission, upd); uerr != nil {
		t.d.logger.Warn("submission update rejected",
			zap.Int("index", t.submission),
			zap.Error(uerr),
		)
	}
	if err == nil {
		t.commit(func() { t.then(ir.ListIntent(kind, ir.Query{})) })
	}
	return err
}

func handleGetCollections(t *task) error {
	var items []ir.Collection
	if err := t.call("", nil, "", nil, &items); err != nil {
		return err
	}
	if items == nil {
		items = []ir.Collection{}
	}
	t.commit(func() { t.d.store.SetCollections(items) })
	return nil
}

// refreshCollections queues the collection refetch every collection
// mutation ends with, whether or not the mutation succeeded.
func refreshCollections(t *task, err error) error {
	if IsSuperseded(err) {
		return err
	}
	t.commit(func() { t.then(ir.GetCollections{}) })
	return err
}

func handlePostNewCollection(t *task) error {
	in := t.in.(ir.PostNewCollection)
	err := t.call("", nil, "", map[string]string{"name": in.Name}, nil)
	return refreshCollections(t, err)
}

func handleCollectionItems(t *task) error {
	var body struct {
		CollID  int64   `json:"coll_id"`
		ConnIDs []int64 `json:"conn_ids"`
	}
	var kind ir.Kind
	switch v := t.in.(type) {
	case ir.PostCollectionItems:
		body.CollID, body.ConnIDs, kind = v.CollID, v.ConnIDs, v.Kind
	case ir.DeleteCollectionItems:
		body.CollID, body.ConnIDs, kind = v.CollID, v.ConnIDs, v.Kind
	}
	if body.ConnIDs == nil {
		body.ConnIDs = []int64{}
	}

	err := t.call(kind, map[string]string{"coll_id": formatID(body.CollID)}, "", body, nil)
	return refreshCollections(t, err)
}

func handleDeleteCollection(t *task) error {
	in := t.in.(ir.DeleteCollection)
	err := t.call("", map[string]string{"coll_id": formatID(in.CollID)}, "", nil, nil)
	return refreshCollections(t, err)
}

func handlePostStagedSpecies(t *task) error {
	if len(t.staged) == 0 {
		t.d.logger.Debug("nothing staged", zap.String("flow_token", t.flow.token))
		return nil
	}

	smiles := make([]string, len(t.staged))
	for i, s := range t.staged {
		smiles[i] = chem.NormalizeSubmission(s)
	}
	if err := t.call(ir.KindSpecies, nil, "", map[string][]string{"smilesList": smiles}, nil); err != nil {
		return err
	}
	t.commit(func() {
		t.d.store.ClearStagedSpecies()
		t.then(ir.GetSpecies{})
	})
	return nil
}
