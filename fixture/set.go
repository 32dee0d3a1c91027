package fixture

import (
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Set maps a collection name to its documents, in insertion order.
type Set map[string][]bson.D

// Collections returns the collection names of s in sorted order.
func (s Set) Collections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, docs := range s {
		cp := make([]bson.D, len(docs))
		for i, doc := range docs {
			cp[i] = cloneValue(doc).(bson.D)
		}
		out[name] = cp
	}
	return out
}

// Normalize re-encodes every document of s through BSON so Go literals carry
// the same types the driver returns: int becomes int32 when it fits, nested
// maps become bson.D and slices become bson.A.
func Normalize(s Set) (Set, error) {
	out := make(Set, len(s))
	for name, docs := range s {
		norm := make([]bson.D, len(docs))
		for i, doc := range docs {
			raw, err := bson.Marshal(canonical(doc, false))
			if err != nil {
				return nil, err
			}
			var d bson.D
			if err := bson.Unmarshal(raw, &d); err != nil {
				return nil, err
			}
			norm[i] = d
		}
		out[name] = norm
	}
	return out, nil
}

// canonical rewrites decoder-specific types into ones the BSON encoder maps
// predictably. Sized integers become int, which encodes as int32 when it fits.
// int32 and int64 are kept unless sized is set, since they are explicit BSON
// types in Go literals and Extended JSON; msgpack sizes carry no such meaning.
func canonical(v any, sized bool) any {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: canonical(e.Value, sized)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = canonical(e, sized)
		}
		return out
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = canonical(e, sized)
		}
		return out
	case int8:
		return int(t)
	case int16:
		return int(t)
	case int32:
		if sized {
			return int(t)
		}
		return t
	case int64:
		if sized {
			return int(t)
		}
		return t
	case uint8:
		return int(t)
	case uint16:
		return int(t)
	case uint32:
		return int(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int(t)
		}
		return t
	case float32:
		return float64(t)
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
