package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates no membership record exists for an account.
var ErrNotFound = errors.New("record not found")

// Membership is the last known group membership of one account.
type Membership struct {
	AccountID int64
	InGroup   bool
}

// Change reports how an upsert affected the store.
type Change int

const (
	// ChangeInserted means the account had no record and one was created.
	ChangeInserted Change = iota + 1
	// ChangeUpdated means the existing record was updated in place.
	ChangeUpdated
)

// String returns the change name used in logs.
func (c Change) String() string {
	switch c {
	case ChangeInserted:
		return "inserted"
	case ChangeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// MembershipStore persists one membership record per account.
type MembershipStore interface {
	UpsertMembership(ctx context.Context, accountID int64, inGroup bool) (Change, error)
	GetMembership(ctx context.Context, accountID int64) (Membership, error)
}
