package http

import (
	nethttp "net/http"
	"net/textproto"
	"slices"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Headers is an ordered multimap of header names to values. Names are canonicalized the
// way net/http does, so "content-type" and "Content-Type" address the same line.
type Headers struct {
	lines *linkedhashmap.Map
}

// NewHeaders creates an empty header store.
func NewHeaders() *Headers {
	return &Headers{lines: linkedhashmap.New()}
}

// Add appends value to the named header. Repeated calls accumulate values.
func (h *Headers) Add(name, value string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	if existing, ok := h.lines.Get(key); ok {
		h.lines.Put(key, append(existing.([]string), value))
		return
	}
	h.lines.Put(key, []string{value})
}

// Replace discards every value of the named header and sets exactly one.
func (h *Headers) Replace(name, value string) {
	h.lines.Put(textproto.CanonicalMIMEHeaderKey(name), []string{value})
}

// Remove deletes the named header.
func (h *Headers) Remove(name string) {
	h.lines.Remove(textproto.CanonicalMIMEHeaderKey(name))
}

// Has reports whether the named header has at least one value.
func (h *Headers) Has(name string) bool {
	_, ok := h.lines.Get(textproto.CanonicalMIMEHeaderKey(name))
	return ok
}

// IsEmpty reports whether the store holds no header at all.
func (h *Headers) IsEmpty() bool {
	return h.lines.Empty()
}

// Len returns the number of distinct header names.
func (h *Headers) Len() int {
	return h.lines.Size()
}

// Get returns the first value of the named header, or "".
func (h *Headers) Get(name string) string {
	values := h.Values(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns a copy of every value recorded for the named header.
func (h *Headers) Values(name string) []string {
	v, ok := h.lines.Get(textproto.CanonicalMIMEHeaderKey(name))
	if !ok {
		return nil
	}
	return slices.Clone(v.([]string))
}

// Names returns the header names in insertion order.
func (h *Headers) Names() []string {
	keys := h.lines.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

// Each calls fn for every header line in insertion order.
func (h *Headers) Each(fn func(name string, values []string)) {
	it := h.lines.Iterator()
	for it.Next() {
		fn(it.Key().(string), slices.Clone(it.Value().([]string)))
	}
}

// Clone returns an independent copy of the store.
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	h.Each(func(name string, values []string) {
		out.lines.Put(name, values)
	})
	return out
}

// Header converts the store to a net/http header map. It returns nil when the store is empty
// so callers can omit headers entirely.
func (h *Headers) Header() nethttp.Header {
	if h.IsEmpty() {
		return nil
	}
	out := make(nethttp.Header, h.Len())
	h.Each(func(name string, values []string) {
		out[name] = values
	})
	return out
}

// AddAll appends every entry of src. See headerEntries for the accepted types.
func (h *Headers) AddAll(src any) error {
	pairs, err := headerEntries(src)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		h.Add(p.name, p.value)
	}
	return nil
}

// ReplaceAll replaces every header named in src. Multi-valued entries keep all of the
// source's values for that name.
func (h *Headers) ReplaceAll(src any) error {
	pairs, err := headerEntries(src)
	if err != nil {
		return err
	}
	replaced := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		key := textproto.CanonicalMIMEHeaderKey(p.name)
		if !replaced[key] {
			h.Replace(key, p.value)
			replaced[key] = true
			continue
		}
		h.Add(key, p.value)
	}
	return nil
}

type headerPair struct {
	name  string
	value string
}

// headerEntries flattens a bulk header source into name/value pairs in the source's natural
// order. Go maps have no order, so map sources are walked by sorted key.
func headerEntries(src any) ([]headerPair, error) {
	var pairs []headerPair
	switch v := src.(type) {
	case *Headers:
		if v == nil {
			return nil, NewInvalidHeaderFormatError()
		}
		v.Each(func(name string, values []string) {
			for _, value := range values {
				pairs = append(pairs, headerPair{name, value})
			}
		})
	case Headers:
		return headerEntries(&v)
	case nethttp.Header:
		for _, name := range sortedKeys(v) {
			for _, value := range v[name] {
				pairs = append(pairs, headerPair{name, value})
			}
		}
	case map[string][]string:
		return headerEntries(nethttp.Header(v))
	case map[string]string:
		for _, name := range sortedKeys(v) {
			pairs = append(pairs, headerPair{name, v[name]})
		}
	case map[string]any:
		for _, name := range sortedKeys(v) {
			switch value := v[name].(type) {
			case string:
				pairs = append(pairs, headerPair{name, value})
			case []string:
				for _, s := range value {
					pairs = append(pairs, headerPair{name, s})
				}
			default:
				return nil, NewInvalidHeaderFormatError()
			}
		}
	default:
		return nil, NewInvalidHeaderFormatError()
	}
	return pairs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
