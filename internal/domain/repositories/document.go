package repositories

import (
	"encoding/json"
	"fmt"
	"reflect"
)

var childFields = map[Kind][]string{
	KindWorkspace: {"dashboards"},
	KindDashboard: {"tiles", "notes", "contacts"},
}

// StripChildren removes embedded child collections from a node document so
// that containers are stored and returned without their children.
func StripChildren(kind Kind, doc json.RawMessage) (json.RawMessage, error) {
	fields, ok := childFields[kind]
	if !ok {
		return doc, nil
	}
	return RewriteDocument(doc, func(body map[string]json.RawMessage) {
		for _, f := range fields {
			delete(body, f)
		}
	})
}

// RewriteDocument decodes a JSON object, lets fn edit its top-level fields and
// re-encodes it.
func RewriteDocument(doc json.RawMessage, fn func(body map[string]json.RawMessage)) (json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(doc, &body); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if body == nil {
		body = make(map[string]json.RawMessage)
	}
	fn(body)
	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}

// MergeDocument applies fields to the JSON object doc. Plain values replace
// the stored field; Append and Increment values are applied to it.
func MergeDocument(doc json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	patch, err := EncodePatch(fields)
	if err != nil {
		return nil, err
	}
	return ApplyPatch(doc, patch)
}

// MatchesDocument reports whether every field in match equals the same
// top-level field of doc after JSON normalisation.
func MatchesDocument(doc json.RawMessage, match map[string]any) bool {
	if len(match) == 0 {
		return true
	}
	var body map[string]any
	if err := json.Unmarshal(doc, &body); err != nil {
		return false
	}
	for field, want := range match {
		if !reflect.DeepEqual(body[field], normalize(want)) {
			return false
		}
	}
	return true
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
