package gate

import (
	"errors"
	"strings"

	"github.com/louisbranch/groupgate/internal/platform/i18n/catalog"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/louisbranch/groupgate/internal/services/groupgate/gate"

// Message keys rendered for rejected players.
const (
	MessageKeyNotInGroup = "gate.kick.not_in_group"
	MessageKeyStoreError = "gate.kick.store_error"
)

// MessageRenderer renders a localized message.
type MessageRenderer interface {
	Sprintf(locale, key string, args ...any) string
}

// Config wires a Gate.
type Config struct {
	Store          storage.MembershipStore
	Logger         *zap.Logger
	Metrics        *Metrics
	Messages       MessageRenderer
	TracerProvider trace.TracerProvider
	DefaultLocale  string
	// StrictOracleFallback denies an attempt whose oracle failed and that has
	// no stored record. Off by default: only an explicit not-in-group record
	// denies after an oracle failure.
	StrictOracleFallback bool
}

// Gate decides login access and maintains the membership store.
type Gate struct {
	store                storage.MembershipStore
	logger               *zap.Logger
	metrics              *Metrics
	messages             MessageRenderer
	tracer               trace.Tracer
	defaultLocale        string
	strictOracleFallback bool
}

// New creates a Gate. Store is required.
func New(cfg Config) (*Gate, error) {
	if cfg.Store == nil {
		return nil, errors.New("membership store is required")
	}
	g := &Gate{
		store:                cfg.Store,
		logger:               cfg.Logger,
		metrics:              cfg.Metrics,
		messages:             cfg.Messages,
		defaultLocale:        strings.TrimSpace(cfg.DefaultLocale),
		strictOracleFallback: cfg.StrictOracleFallback,
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil)
	}
	if g.messages == nil {
		g.messages = catalog.Default()
	}
	if g.defaultLocale == "" {
		g.defaultLocale = catalog.BaseLocale
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	g.tracer = tp.Tracer(tracerName)
	return g, nil
}
