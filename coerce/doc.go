// Package coerce holds the pure transforms applied to fixture documents
// before they are inserted: per-collection format rules and conversion of a
// string _id into a native ObjectID.
//
// Nothing in this package performs I/O. Every function returns a new
// document and leaves its input untouched.
package coerce
