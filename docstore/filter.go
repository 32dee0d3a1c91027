package docstore

import "strings"

// FieldSet is a set of field names.
type FieldSet map[string]bool

// NewFieldSet builds a FieldSet from names.
func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Union returns a new set holding the names of s and other.
func (s FieldSet) Union(other FieldSet) FieldSet {
	out := make(FieldSet, len(s)+len(other))
	for k := range s {
		out[k] = true
	}
	for k := range other {
		out[k] = true
	}
	return out
}

var (
	// StoreFields are added by the store or by ODM layers to every document:
	// the identifier and the version key.
	StoreFields = NewFieldSet("_id", "__v")

	// BucketFields are the implicit fields of chunked-file metadata and
	// chunk records.
	BucketFields = NewFieldSet("chunkSize", "uploadDate", "md5", "files_id", "n", "data")
)

// Filter decides which fields are removed from extracted documents.
type Filter struct {
	// Fields are removed from every collection.
	Fields FieldSet
	// Buckets lists chunked-file bucket names. Their <bucket>.files and
	// <bucket>.chunks collections additionally lose BucketFields.
	Buckets []string
}

// DefaultFilter removes StoreFields everywhere and BucketFields from the
// collections of the named buckets.
func DefaultFilter(buckets ...string) Filter {
	return Filter{Fields: StoreFields, Buckets: buckets}
}

// IsBucket reports whether collection backs one of the filter's buckets.
func (f Filter) IsBucket(collection string) bool {
	for _, b := range f.Buckets {
		if collection == b+".files" || collection == b+".chunks" {
			return true
		}
	}
	return false
}

// For returns the fields removed from documents of collection.
func (f Filter) For(collection string) FieldSet {
	if f.IsBucket(collection) {
		return f.Fields.Union(BucketFields)
	}
	return f.Fields
}

// without returns f with name no longer removed anywhere.
func (f Filter) without(name string) Filter {
	fields := make(FieldSet, len(f.Fields))
	for k := range f.Fields {
		if k != name {
			fields[k] = true
		}
	}
	return Filter{Fields: fields, Buckets: f.Buckets}
}

// isSystem reports whether collection is server-managed and never dumped.
func isSystem(collection string) bool {
	return strings.HasPrefix(collection, "system.")
}
