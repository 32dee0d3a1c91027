// Package fixture resolves fixture files under a root directory.
//
// Three kinds of content are served: structured data (a collection name to
// documents mapping, decoded from JSON, YAML or msgpack with field order
// preserved), plain text, and raw byte streams. A trailing .lz4 suffix on any
// file is decompressed transparently.
//
// JSON fixtures are read as MongoDB Extended JSON, so {"$oid": ...} and
// {"$date": ...} wrappers produce native values. Every decoded set is
// normalized through BSON, which makes fixtures from every format compare
// equal to what the database returns on dump.
package fixture
