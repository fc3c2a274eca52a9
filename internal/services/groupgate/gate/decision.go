package gate

import "context"

// Oracle answers live membership questions for the required group. A nil
// Oracle means no live check is available for this attempt.
type Oracle interface {
	HasMember(ctx context.Context, accountID int64) (bool, error)
}

// LoginAttempt is one pending login as seen by the host.
type LoginAttempt struct {
	AccountID int64
	// GroupID is only shown to the rejected player.
	GroupID    int64
	PlayerName string
	// Locale selects the kick message language; empty uses the gate default.
	Locale string
}

// Result is the outcome the host applies to the login.
type Result int

const (
	// ResultAllowed admits the player.
	ResultAllowed Result = iota + 1
	// ResultKickNotInGroup rejects a player who is not in the group.
	ResultKickNotInGroup
	// ResultKickOther rejects a player whose membership could not be read.
	ResultKickOther
)

func (r Result) String() string {
	switch r {
	case ResultAllowed:
		return "allowed"
	case ResultKickNotInGroup:
		return "kick_not_in_group"
	case ResultKickOther:
		return "kick_other"
	default:
		return "unknown"
	}
}

// Source records which information the decision rested on.
type Source int

const (
	// SourceOracle means the live oracle answered.
	SourceOracle Source = iota + 1
	// SourceStore means no oracle was supplied and the stored record decided.
	SourceStore
	// SourceStoreAfterOracleFailure means the oracle failed and the stored
	// record decided.
	SourceStoreAfterOracleFailure
)

func (s Source) String() string {
	switch s {
	case SourceOracle:
		return "oracle"
	case SourceStore:
		return "store"
	case SourceStoreAfterOracleFailure:
		return "store_after_oracle_failure"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one login check. Message is empty when allowed.
type Decision struct {
	Result  Result
	Message string
	Source  Source
}

// Allowed reports whether the login may proceed.
func (d Decision) Allowed() bool {
	return d.Result == ResultAllowed
}
