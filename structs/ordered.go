package structs

import (
	"bytes"
	"fmt"
	"iter"
	"slices"
	"sort"

	goccy "github.com/goccy/go-json"
)

// Ordered is a JSON object that remembers the order its keys were read or inserted in.
// Alliance member indexes, leaderboard positions and shop listings depend on that order.
type Ordered[V any] struct {
	keys   []string
	values map[string]V
}

func NewOrdered[V any]() *Ordered[V] {
	return &Ordered[V]{values: map[string]V{}}
}

func (o *Ordered[V]) init() {
	if o.values == nil {
		o.values = map[string]V{}
	}
}

func (o *Ordered[V]) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func (o *Ordered[V]) Has(key string) bool {
	if o == nil {
		return false
	}
	_, found := o.values[key]
	return found
}

func (o *Ordered[V]) Get(key string) (V, bool) {
	if o == nil {
		var zero V
		return zero, false
	}
	v, found := o.values[key]
	return v, found
}

// Set replaces the value of an existing key in place, or appends a new key.
func (o *Ordered[V]) Set(key string, value V) {
	o.init()
	if _, found := o.values[key]; !found {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Ordered[V]) Del(key string) {
	if o == nil {
		return
	}
	if _, found := o.values[key]; !found {
		return
	}
	delete(o.values, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// Index returns the position of key, or -1.
func (o *Ordered[V]) Index(key string) int {
	if o == nil {
		return -1
	}
	return slices.Index(o.keys, key)
}

// KeyAt returns the key at position i.
func (o *Ordered[V]) KeyAt(i int) (string, bool) {
	if o == nil || i < 0 || i >= len(o.keys) {
		return "", false
	}
	return o.keys[i], true
}

func (o *Ordered[V]) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

func (o *Ordered[V]) Each() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		if o == nil {
			return
		}
		for _, k := range slices.Clone(o.keys) {
			if !yield(k, o.values[k]) {
				return
			}
		}
	}
}

// SortFunc reorders the keys stably using less on the values.
func (o *Ordered[V]) SortFunc(less func(a, b V) bool) {
	if o == nil {
		return
	}
	sort.SliceStable(o.keys, func(i, j int) bool {
		return less(o.values[o.keys[i]], o.values[o.keys[j]])
	})
}

func (o *Ordered[V]) Clone() *Ordered[V] {
	result := NewOrdered[V]()
	if o == nil {
		return result
	}
	for k, v := range o.Each() {
		result.Set(k, v)
	}
	return result
}

func (o Ordered[V]) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := goccy.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := goccy.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Ordered[V]) UnmarshalJSON(b []byte) error {
	o.keys = nil
	o.values = map[string]V{}
	dec := goccy.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(goccy.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		tree, err := decodeValue(dec)
		if err != nil {
			return err
		}
		var v V
		if generic, ok := any(&v).(*any); ok {
			// Nested objects of a generic tree stay ordered.
			*generic = tree
		} else if err := retype(tree, &v); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		o.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

func retype(tree any, dst any) error {
	b, err := goccy.Marshal(tree)
	if err != nil {
		return err
	}
	return goccy.Unmarshal(b, dst)
}

// DecodeValue parses JSON into a generic tree where objects are *Ordered[any],
// arrays are []any, integers are int64 and other numbers are float64.
func DecodeValue(b []byte) (any, error) {
	dec := goccy.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *goccy.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case goccy.Delim:
		switch t {
		case '{':
			obj := NewOrdered[any]()
			for dec.More() {
				ktok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := ktok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", ktok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case goccy.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		return t, nil
	}
}
