package repositories

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Append, used as a Patch value, adds items to the end of an array field
// instead of replacing it. Backends apply it against the stored document in
// the same write, so concurrent appends never drop each other's items.
type Append []any

// Increment, used as a Patch value, adds to a numeric field in the same way.
type Increment int

// DocumentPatch is a Patch in the form drivers apply: plain fields are
// shallow-merged, Append and Increment fields are applied relative to the
// stored value.
type DocumentPatch struct {
	Set       map[string]json.RawMessage
	Append    map[string]json.RawMessage
	Increment map[string]int
}

// EncodePatch splits p into its wire form. A field cannot be both set and
// appended to.
func EncodePatch(p Patch) (DocumentPatch, error) {
	out := DocumentPatch{Set: make(map[string]json.RawMessage, len(p))}
	for field, v := range p {
		switch op := v.(type) {
		case Append:
			raw, err := json.Marshal([]any(op))
			if err != nil {
				return DocumentPatch{}, fmt.Errorf("encode append %s: %w", field, err)
			}
			if out.Append == nil {
				out.Append = make(map[string]json.RawMessage)
			}
			out.Append[field] = raw
		case Increment:
			if out.Increment == nil {
				out.Increment = make(map[string]int)
			}
			out.Increment[field] = int(op)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return DocumentPatch{}, fmt.Errorf("encode field %s: %w", field, err)
			}
			out.Set[field] = raw
		}
	}
	return out, nil
}

// SetJSON returns the plain fields as one JSON object.
func (p DocumentPatch) SetJSON() (json.RawMessage, error) {
	if len(p.Set) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(p.Set)
}

// AppendFields and IncrementFields list operator fields in a stable order.
func (p DocumentPatch) AppendFields() []string    { return sortedKeys(p.Append) }
func (p DocumentPatch) IncrementFields() []string { return sortedKeys(p.Increment) }

// ApplyPatch applies p to the JSON object doc. A missing or null array field
// counts as empty, a missing number as zero.
func ApplyPatch(doc json.RawMessage, p DocumentPatch) (json.RawMessage, error) {
	var applyErr error
	out, err := RewriteDocument(doc, func(body map[string]json.RawMessage) {
		for k, v := range p.Set {
			body[k] = v
		}
		for _, field := range p.AppendFields() {
			var current, items []json.RawMessage
			if raw, ok := body[field]; ok && string(raw) != "null" {
				if err := json.Unmarshal(raw, &current); err != nil {
					applyErr = fmt.Errorf("append to %s: field is not an array", field)
					return
				}
			}
			if err := json.Unmarshal(p.Append[field], &items); err != nil {
				applyErr = fmt.Errorf("append to %s: %w", field, err)
				return
			}
			merged, err := json.Marshal(append(current, items...))
			if err != nil {
				applyErr = err
				return
			}
			body[field] = merged
		}
		for _, field := range p.IncrementFields() {
			var current int
			if raw, ok := body[field]; ok && string(raw) != "null" {
				if err := json.Unmarshal(raw, &current); err != nil {
					applyErr = fmt.Errorf("increment %s: field is not a number", field)
					return
				}
			}
			body[field] = json.RawMessage(fmt.Sprint(current + p.Increment[field]))
		}
	})
	if err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
