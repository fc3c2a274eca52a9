package gate

import (
	"context"
	"errors"

	"github.com/louisbranch/groupgate/internal/platform/zlog"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage"
	"go.uber.org/zap"
)

// UpsertMembership records the account's membership and reports whether a new
// record was inserted (false means an existing record was updated).
func (g *Gate) UpsertMembership(ctx context.Context, accountID int64, inGroup bool) (bool, error) {
	change, err := g.store.UpsertMembership(ctx, accountID, inGroup)
	if err != nil {
		return false, err
	}
	return change == storage.ChangeInserted, nil
}

// LookupMembership returns the stored record for the account. found is false
// when the account has never been recorded.
func (g *Gate) LookupMembership(ctx context.Context, accountID int64) (record storage.Membership, found bool, err error) {
	record, err = g.store.GetMembership(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Membership{}, false, nil
	}
	if err != nil {
		return storage.Membership{}, false, err
	}
	return record, true, nil
}

// OnMemberJoined records that the account joined the group. Failures are
// logged, not returned.
func (g *Gate) OnMemberJoined(ctx context.Context, accountID int64) {
	g.recordMemberEvent(ctx, accountID, true, "member_joined")
}

// OnMemberLeft records that the account left the group. Failures are logged,
// not returned.
func (g *Gate) OnMemberLeft(ctx context.Context, accountID int64) {
	g.recordMemberEvent(ctx, accountID, false, "member_left")
}

func (g *Gate) recordMemberEvent(ctx context.Context, accountID int64, inGroup bool, operation string) {
	logger := zlog.FromContext(ctx, g.logger).With(
		zap.Int64("account_id", accountID),
		zap.String("operation", operation),
	)
	change, err := g.store.UpsertMembership(ctx, accountID, inGroup)
	if err != nil {
		g.metrics.observeStoreError(operation)
		logger.Error("record membership event", zap.Error(err))
		return
	}
	logger.Debug("membership event recorded", zap.Stringer("change", change), zap.Bool("in_group", inGroup))
}
