package fixture

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"

	"github.com/kbukum/mongofixtures/errors"
)

// Format identifies the encoding of a structured fixture.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// FormatOf infers the format from a file name, ignoring a trailing .lz4.
func FormatOf(name string) (Format, bool) {
	name = strings.TrimSuffix(strings.ToLower(name), lz4Ext)
	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".msgpack", ".mpk":
		return FormatMsgpack, true
	}
	return "", false
}

// Decode parses structured fixture data. path is only used in error messages.
func Decode(path string, format Format, data []byte) (Set, error) {
	var (
		top bson.D
		err error
	)
	switch format {
	case FormatJSON:
		err = bson.UnmarshalExtJSON(data, false, &top)
	case FormatYAML:
		top, err = decodeYAML(data)
	case FormatMsgpack:
		top, err = decodeMsgpack(data)
	default:
		return nil, errors.InvalidFixture(path, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, errors.InvalidFixture(path, "decode failed").WithCause(err)
	}

	set, err := toSet(path, top)
	if err != nil {
		return nil, err
	}
	norm, err := Normalize(set)
	if err != nil {
		return nil, errors.InvalidFixture(path, "value not representable in BSON").WithCause(err)
	}
	return norm, nil
}

func toSet(path string, top bson.D) (Set, error) {
	set := make(Set, len(top))
	for _, e := range top {
		if _, dup := set[e.Key]; dup {
			return nil, errors.InvalidFixture(path, fmt.Sprintf("collection %q declared twice", e.Key))
		}
		var items []any
		switch v := e.Value.(type) {
		case bson.A:
			items = v
		case []any:
			items = v
		case nil:
		default:
			return nil, errors.InvalidFixture(path, fmt.Sprintf("collection %q must be an array of documents", e.Key))
		}
		docs := make([]bson.D, 0, len(items))
		for i, item := range items {
			doc, ok := item.(bson.D)
			if !ok {
				return nil, errors.InvalidFixture(path, fmt.Sprintf("%s[%d] is not a document", e.Key, i))
			}
			docs = append(docs, doc)
		}
		set[e.Key] = docs
	}
	return set, nil
}

func decodeYAML(data []byte) (bson.D, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		return bson.D{}, nil
	}
	v, err := yamlValue(&root)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("top level must be a mapping, got %T", v)
	}
	return doc, nil
}

// yamlValue converts a node tree keeping mapping order.
func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return bson.D{}, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		doc := make(bson.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Content[i].Line, err)
			}
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: key, Value: v})
		}
		return doc, nil
	case yaml.SequenceNode:
		arr := make(bson.A, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

func decodeMsgpack(data []byte) (bson.D, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetMapDecoder(decodeOrderedMap)
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	doc, ok := canonical(v, true).(bson.D)
	if !ok {
		return nil, fmt.Errorf("top level must be a map, got %T", v)
	}
	return doc, nil
}

// decodeOrderedMap reads a msgpack map into a bson.D so key order survives.
// It is installed on the decoder and so applies to nested maps too.
func decodeOrderedMap(d *msgpack.Decoder) (interface{}, error) {
	n, err := d.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	doc := make(bson.D, 0, n)
	for i := 0; i < n; i++ {
		key, err := d.DecodeString()
		if err != nil {
			return nil, err
		}
		val, err := d.DecodeInterface()
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: key, Value: val})
	}
	return doc, nil
}
