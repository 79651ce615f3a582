package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

var decoders = map[Op]func([]byte) (Intent, error){
	OpGetUser:               decodeAs[GetUser],
	OpLoginUser:             decodeAs[LoginUser],
	OpLogoutUser:            decodeAs[LogoutUser],
	OpRegisterUser:          decodeAs[RegisterUser],
	OpGetSpecies:            decodeAs[GetSpecies],
	OpGetReactions:          decodeAs[GetReactions],
	OpGetDetails:            decodeAs[GetDetails],
	OpDeleteItem:            decodeAs[DeleteItem],
	OpUpdateItemGeometry:    decodeAs[UpdateItemGeometry],
	OpPostSubmission:        decodeAs[PostSubmission],
	OpGetCollections:        decodeAs[GetCollections],
	OpPostNewCollection:     decodeAs[PostNewCollection],
	OpPostCollectionItems:   decodeAs[PostCollectionItems],
	OpDeleteCollectionItems: decodeAs[DeleteCollectionItems],
	OpDeleteCollection:      decodeAs[DeleteCollection],
	OpSetRetypeError:        decodeAs[SetRetypeError],
	OpSetReactionMode:       decodeAs[SetReactionMode],
	OpStageSpecies:          decodeAs[StageSpecies],
	OpClearStagedSpecies:    decodeAs[ClearStagedSpecies],
	OpPostStagedSpecies:     decodeAs[PostStagedSpecies],
}

// EncodeError reports a payload that does not fit its op.
type EncodeError struct {
	Op      string
	Message string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Op, e.Message)
}

// Ops returns every known op in lexical order.
func Ops() []Op {
	ops := make([]Op, 0, len(decoders))
	for op := range decoders {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Encode builds a typed intent from an op name and a loosely typed payload,
// as read from a scenario file or shell line. A nil payload is treated as
// empty. Unknown ops and mis-shaped payloads (unknown keys, wrong types) are
// rejected; semantic checks are left to the backend.
func Encode(op string, payload map[string]any) (Intent, error) {
	decode, ok := decoders[Op(op)]
	if !ok {
		return nil, &EncodeError{Op: op, Message: "unknown op"}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &EncodeError{Op: op, Message: err.Error()}
	}
	in, err := decode(data)
	if err != nil {
		return nil, &EncodeError{Op: op, Message: err.Error()}
	}
	return in, nil
}

// Payload flattens an intent back into its loosely typed form. Numbers are
// kept as json.Number so the result stays canonicalizable.
func Payload(in Intent) (map[string]any, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", in.Op(), err)
	}
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("payload %s: %w", in.Op(), err)
	}
	return out, nil
}

func decodeAs[T Intent](data []byte) (Intent, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
