// Package docstore is the document side of the fixture engine: it drops a
// database, creates and fills collections, and extracts every collection
// back into a comparable Database value.
//
// The Store talks to a Backend. NewMongoBackend adapts a *mongo.Database;
// docstore/testutil provides an in-memory Backend for unit tests.
//
// Extraction removes fields the store injects on its own. The removed names
// are declared once in a Filter rather than at each call site.
package docstore
