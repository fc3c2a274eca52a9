package gate

import (
	"context"
	"strconv"

	"github.com/louisbranch/groupgate/internal/platform/requestctx"
	"github.com/louisbranch/groupgate/internal/platform/zlog"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DecideLoginAccess decides one login attempt. A non-nil oracle is asked
// first and its answer is written back to the store; a nil oracle, or a
// failing one, leaves the decision to the stored record.
func (g *Gate) DecideLoginAccess(ctx context.Context, attempt LoginAttempt, oracle Oracle) Decision {
	ctx, span := g.tracer.Start(ctx, "gate.DecideLoginAccess", trace.WithAttributes(
		attribute.Int64("groupgate.account_id", attempt.AccountID),
		attribute.Int64("groupgate.group_id", attempt.GroupID),
		attribute.Bool("groupgate.oracle", oracle != nil),
	))
	defer span.End()
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		span.SetAttributes(attribute.String("groupgate.request_id", requestID))
	}

	logger := zlog.FromContext(ctx, g.logger).With(
		zap.Int64("account_id", attempt.AccountID),
		zap.Int64("group_id", attempt.GroupID),
	)

	var decision Decision
	if oracle == nil {
		decision = g.decideFromStore(ctx, span, logger, attempt, SourceStore)
	} else {
		decision = g.decideFromOracle(ctx, span, logger, attempt, oracle)
	}

	span.SetAttributes(
		attribute.String("groupgate.result", decision.Result.String()),
		attribute.String("groupgate.source", decision.Source.String()),
	)
	g.metrics.observeDecision(decision)
	logger.Debug("login decided",
		zap.String("player", attempt.PlayerName),
		zap.Stringer("result", decision.Result),
		zap.Stringer("source", decision.Source),
	)
	return decision
}

func (g *Gate) decideFromOracle(ctx context.Context, span trace.Span, logger *zap.Logger, attempt LoginAttempt, oracle Oracle) Decision {
	inGroup, err := oracle.HasMember(ctx, attempt.AccountID)
	if err != nil {
		span.RecordError(err)
		g.metrics.observeOracleFailure()
		logger.Warn("live membership check failed, using stored membership", zap.Error(err))
		return g.decideFromStore(ctx, span, logger, attempt, SourceStoreAfterOracleFailure)
	}

	// Best effort: a failed write never overrides a live answer.
	change, err := g.store.UpsertMembership(ctx, attempt.AccountID, inGroup)
	switch {
	case err != nil:
		g.metrics.observeStoreError("upsert")
		logger.Warn("record live membership", zap.String("operation", "upsert"), zap.Error(err))
	case change == storage.ChangeInserted:
		logger.Info("membership record added",
			zap.String("player", attempt.PlayerName),
			zap.Bool("in_group", inGroup),
		)
	}

	if !inGroup {
		return g.kickNotInGroup(attempt, SourceOracle)
	}
	return Decision{Result: ResultAllowed, Source: SourceOracle}
}

func (g *Gate) decideFromStore(ctx context.Context, span trace.Span, logger *zap.Logger, attempt LoginAttempt, source Source) Decision {
	record, found, err := g.LookupMembership(ctx, attempt.AccountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "membership lookup failed")
		g.metrics.observeStoreError("lookup")
		logger.Error("membership lookup failed, denying login", zap.String("operation", "lookup"), zap.Error(err))
		return Decision{
			Result:  ResultKickOther,
			Message: g.messages.Sprintf(g.locale(attempt), MessageKeyStoreError, err.Error()),
			Source:  source,
		}
	}

	switch {
	case found && record.InGroup:
		return Decision{Result: ResultAllowed, Source: source}
	case found:
		return g.kickNotInGroup(attempt, source)
	case source == SourceStoreAfterOracleFailure && !g.strictOracleFallback:
		// Oracle down and no history: only an explicit not-in-group record
		// denies on this path.
		return Decision{Result: ResultAllowed, Source: source}
	default:
		return g.kickNotInGroup(attempt, source)
	}
}

func (g *Gate) kickNotInGroup(attempt LoginAttempt, source Source) Decision {
	return Decision{
		Result: ResultKickNotInGroup,
		Message: g.messages.Sprintf(g.locale(attempt), MessageKeyNotInGroup,
			strconv.FormatInt(attempt.GroupID, 10),
			strconv.FormatInt(attempt.AccountID, 10),
		),
		Source: source,
	}
}

func (g *Gate) locale(attempt LoginAttempt) string {
	if attempt.Locale != "" {
		return attempt.Locale
	}
	return g.defaultLocale
}
