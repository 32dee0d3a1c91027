package coerce

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kbukum/mongofixtures/errors"
)

// IDField is the reserved identifier field of a document.
const IDField = "_id"

// Func transforms one field value.
type Func func(value any) any

// Rules maps a collection name to the per-field transforms for its documents.
type Rules map[string]map[string]Func

// Apply returns a copy of doc with every field listed for collection
// replaced by its rule's output. Field order is preserved and unlisted
// fields are copied unchanged. A rule for a field the document lacks is
// not invoked.
func (r Rules) Apply(collection string, doc bson.D) bson.D {
	rules := r[collection]
	out := make(bson.D, len(doc))
	for i, e := range doc {
		if fn, ok := rules[e.Key]; ok && fn != nil {
			e.Value = fn(e.Value)
		}
		out[i] = e
	}
	return out
}

// Identifier returns a copy of doc whose _id is an ObjectID.
// A hex string is parsed; an ObjectID passes through; a document without an
// _id is returned unchanged. Anything else fails with INVALID_IDENTIFIER.
func Identifier(doc bson.D) (bson.D, error) {
	out := make(bson.D, len(doc))
	copy(out, doc)
	for i, e := range out {
		if e.Key != IDField {
			continue
		}
		id, err := ObjectID(e.Value)
		if err != nil {
			return nil, err
		}
		out[i].Value = id
	}
	return out, nil
}

// ObjectID converts v to an ObjectID.
func ObjectID(v any) (bson.ObjectID, error) {
	switch id := v.(type) {
	case bson.ObjectID:
		return id, nil
	case string:
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return bson.NilObjectID, errors.InvalidIdentifier(v).WithCause(err)
		}
		return oid, nil
	default:
		return bson.NilObjectID, errors.InvalidIdentifier(v)
	}
}

// Document runs the full pre-insert pipeline for one document: format rules
// first, then identifier coercion when useObjectID is set.
func Document(collection string, doc bson.D, rules Rules, useObjectID bool) (bson.D, error) {
	out := rules.Apply(collection, doc)
	if !useObjectID {
		return out, nil
	}
	return Identifier(out)
}

// Documents applies Document to every document of a collection, keeping order.
func Documents(collection string, docs []bson.D, rules Rules, useObjectID bool) ([]bson.D, error) {
	out := make([]bson.D, 0, len(docs))
	for _, doc := range docs {
		d, err := Document(collection, doc, rules, useObjectID)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
