// Package storage defines persistence contracts for last known group
// membership.
//
// The gate depends on these contracts so the decision procedure stays
// independent of SQLite schema details.
package storage
