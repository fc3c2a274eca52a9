// Package sqlite provides SQLite-backed membership persistence.
//
// A Store holds a single connection and serializes every statement on it, so
// concurrent login checks never interleave on the shared handle.
package sqlite
