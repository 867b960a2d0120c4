package world

import (
	"fmt"
	"reflect"
	"strconv"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
)

// ErrTypeMismatch indicates a delta addressed a value whose shape does
// not support the requested operation.
var ErrTypeMismatch = apperrors.New(apperrors.CodeDeltaTypeMismatch, "delta path type mismatch")

// Apply mutates the state tree according to one delta record.
//
// Intermediate path segments address maps (or integer indices into
// lists of maps) and missing intermediates are created as empty maps.
// The final segment is where the operation happens. Apply is the single
// mutation path for both live forward-application and cold replay.
func Apply(s *State, d delta.Delta) error {
	if !d.Op.IsValid() {
		return delta.ErrInvalidOp
	}
	if len(d.Path) == 0 {
		return delta.ErrEmptyPath
	}
	root, err := s.Subtree(d.Target)
	if err != nil {
		return err
	}

	container, writeBack, err := resolve(root, d.Path[:len(d.Path)-1])
	if err != nil {
		return fmt.Errorf("delta %s: %w", d.ID, err)
	}
	last := d.Path[len(d.Path)-1]

	switch c := container.(type) {
	case map[string]any:
		return applyToMap(c, last, d)
	case []any:
		updated, err := applyToList(c, last, d)
		if err != nil {
			return err
		}
		writeBack(updated)
		return nil
	default:
		return fmt.Errorf("delta %s: %w", d.ID, ErrTypeMismatch)
	}
}

func applyToMap(m map[string]any, key string, d delta.Delta) error {
	switch d.Op {
	case delta.OpSet, delta.OpCreate:
		m[key] = normalize(d.Value)
		return nil

	case delta.OpIncrement, delta.OpDecrement:
		current, err := numberAt(m[key])
		if err != nil {
			return fmt.Errorf("delta %s: %w", d.ID, err)
		}
		amount, err := numberAt(d.Value)
		if err != nil {
			return fmt.Errorf("delta %s: %w", d.ID, err)
		}
		if d.Op == delta.OpDecrement {
			amount = -amount
		}
		m[key] = current + amount
		return nil

	case delta.OpAppend:
		list, err := listAt(m[key])
		if err != nil {
			return fmt.Errorf("delta %s: %w", d.ID, err)
		}
		m[key] = append(list, normalize(d.Value))
		return nil

	case delta.OpInsert:
		// Insert addresses its index through the final path key; when the
		// addressed field is not a list the value is appended instead.
		list, err := listAt(m[key])
		if err != nil {
			return fmt.Errorf("delta %s: %w", d.ID, err)
		}
		m[key] = append(list, normalize(d.Value))
		return nil

	case delta.OpRemove:
		existing, ok := m[key]
		if !ok {
			return nil
		}
		if list, isList := existing.([]any); isList {
			m[key] = removeFirstEqual(list, normalize(d.Value))
			return nil
		}
		delete(m, key)
		return nil

	case delta.OpDelete, delta.OpDestroy:
		delete(m, key)
		return nil
	}
	return delta.ErrInvalidOp
}

func applyToList(list []any, key string, d delta.Delta) ([]any, error) {
	idx, err := strconv.Atoi(key)
	if err != nil {
		return nil, fmt.Errorf("delta %s: list index %q: %w", d.ID, key, ErrTypeMismatch)
	}

	switch d.Op {
	case delta.OpInsert:
		if idx < 0 || idx > len(list) {
			return nil, fmt.Errorf("delta %s: insert index %d out of range: %w", d.ID, idx, ErrTypeMismatch)
		}
		out := make([]any, 0, len(list)+1)
		out = append(out, list[:idx]...)
		out = append(out, normalize(d.Value))
		out = append(out, list[idx:]...)
		return out, nil
	}

	if idx < 0 || idx >= len(list) {
		return nil, fmt.Errorf("delta %s: index %d out of range: %w", d.ID, idx, ErrTypeMismatch)
	}

	switch d.Op {
	case delta.OpSet, delta.OpCreate:
		list[idx] = normalize(d.Value)
		return list, nil

	case delta.OpIncrement, delta.OpDecrement:
		current, err := numberAt(list[idx])
		if err != nil {
			return nil, fmt.Errorf("delta %s: %w", d.ID, err)
		}
		amount, err := numberAt(d.Value)
		if err != nil {
			return nil, fmt.Errorf("delta %s: %w", d.ID, err)
		}
		if d.Op == delta.OpDecrement {
			amount = -amount
		}
		list[idx] = current + amount
		return list, nil

	case delta.OpRemove, delta.OpDelete, delta.OpDestroy:
		out := make([]any, 0, len(list)-1)
		out = append(out, list[:idx]...)
		out = append(out, list[idx+1:]...)
		return out, nil
	}

	return nil, fmt.Errorf("delta %s: %w on list index", d.ID, delta.ErrInvalidOp)
}

// resolve walks the intermediate path segments, creating missing maps,
// and returns the container the final segment addresses together with a
// write-back for container replacement (list growth).
func resolve(root map[string]any, intermediate []string) (any, func(any), error) {
	var cur any = root
	writeBack := func(any) {}

	for _, key := range intermediate {
		switch c := cur.(type) {
		case map[string]any:
			child, ok := c[key]
			if !ok || child == nil {
				m := map[string]any{}
				c[key] = m
				child = m
			}
			k := key
			holder := c
			writeBack = func(v any) { holder[k] = v }
			cur = child

		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, nil, fmt.Errorf("list segment %q: %w", key, ErrTypeMismatch)
			}
			child := c[idx]
			if child == nil {
				m := map[string]any{}
				c[idx] = m
				child = m
			}
			holder := c
			writeBack = func(v any) { holder[idx] = v }
			cur = child

		default:
			return nil, nil, fmt.Errorf("segment %q addresses a scalar: %w", key, ErrTypeMismatch)
		}
	}
	return cur, writeBack, nil
}

// normalize deep-copies a value into JSON shape: maps keyed by string,
// []any lists, float64 numbers. It is what makes live application and
// replay of the persisted (JSON-decoded) log converge on identical trees.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, string, float64:
		return val
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return val
	}
}

func numberAt(v any) (float64, error) {
	if v == nil {
		return 0, nil
	}
	switch n := normalize(v).(type) {
	case float64:
		return n, nil
	default:
		return 0, ErrTypeMismatch
	}
}

func listAt(v any) ([]any, error) {
	if v == nil {
		return []any{}, nil
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return nil, ErrTypeMismatch
}

func removeFirstEqual(list []any, value any) []any {
	for i, item := range list {
		if reflect.DeepEqual(item, value) {
			out := make([]any, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out
		}
	}
	return list
}
