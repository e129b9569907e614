package storage

import (
	"time"

	"github.com/bsoera/econ/structs"
)

// Normalize drops every expired "<payload>␟<deadline>" string and every null
// from doc, recursing through objects and arrays. doc is not modified.
// An expired or null top level value normalizes to nil.
func Normalize(doc any, now time.Time) any {
	result, _, _ := normalize(doc, now)
	return result
}

func normalize(v any, now time.Time) (result any, keep bool, changed bool) {
	switch t := v.(type) {
	case nil:
		return nil, false, false
	case string:
		if structs.Expired(t, now) {
			return nil, false, true
		}
		return t, true, false
	case *structs.Ordered[any]:
		if t == nil {
			return nil, false, false
		}
		out := structs.NewOrdered[any]()
		for k, child := range t.Each() {
			r, keep, ch := normalize(child, now)
			if !keep {
				changed = true
				continue
			}
			changed = changed || ch
			out.Set(k, r)
		}
		return out, true, changed
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			r, keep, ch := normalize(child, now)
			if !keep {
				changed = true
				continue
			}
			changed = changed || ch
			out[k] = r
		}
		return out, true, changed
	case []any:
		out := make([]any, 0, len(t))
		for _, child := range t {
			r, keep, ch := normalize(child, now)
			if !keep {
				changed = true
				continue
			}
			changed = changed || ch
			out = append(out, r)
		}
		return out, true, changed
	default:
		return v, true, false
	}
}
