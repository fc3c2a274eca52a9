// Package redisset checks group membership against a roster set that the
// group bot mirrors into Redis.
package redisset

import (
	"context"
	"errors"
	"strconv"

	apperrors "github.com/louisbranch/groupgate/internal/platform/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every roster key.
const DefaultKeyPrefix = "groupgate:"

// Roster answers membership questions from the set
// "{prefix}group:{groupID}:members".
type Roster struct {
	client redis.Cmdable
	key    string
}

// New creates a Roster for one group. An empty prefix uses DefaultKeyPrefix.
func New(client redis.Cmdable, keyPrefix string, groupID int64) (*Roster, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Roster{client: client, key: RosterKey(keyPrefix, groupID)}, nil
}

// RosterKey returns the set key holding the members of groupID.
func RosterKey(keyPrefix string, groupID int64) string {
	return keyPrefix + "group:" + strconv.FormatInt(groupID, 10) + ":members"
}

// Key returns the roster set key.
func (r *Roster) Key() string {
	return r.key
}

// HasMember reports whether accountID is in the roster. A missing roster is
// an unknown answer, not an empty group.
func (r *Roster) HasMember(ctx context.Context, accountID int64) (bool, error) {
	member := strconv.FormatInt(accountID, 10)

	var (
		isMember *redis.BoolCmd
		exists   *redis.IntCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		isMember = pipe.SIsMember(ctx, r.key, member)
		exists = pipe.Exists(ctx, r.key)
		return nil
	})
	if err != nil {
		return false, r.unavailable(member, "roster lookup", err)
	}
	if exists.Val() == 0 {
		return false, r.unavailable(member, "roster not mirrored", errors.New("missing key "+r.key))
	}
	return isMember.Val(), nil
}

func (r *Roster) unavailable(accountID, message string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeOracleUnavailable, message,
		map[string]string{"account_id": accountID, "oracle": "redis", "key": r.key}, cause)
}
