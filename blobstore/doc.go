// Package blobstore manages file content kept in a chunked-file bucket
// (GridFS): dropping the whole bucket, streaming uploads from string, byte
// or reader sources, listing, and downloading either fully into memory or as
// a lazy stream.
//
// The Store talks to a Bucket. NewGridFSBucket adapts a *mongo.GridFSBucket;
// blobstore/testutil provides an in-memory Bucket that chunks content the
// same way.
package blobstore
