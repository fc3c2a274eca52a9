// Package server wires the groupgate runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/groupgate/internal/platform/i18n/catalog"
	"github.com/louisbranch/groupgate/internal/platform/timeouts"
	httpapi "github.com/louisbranch/groupgate/internal/services/groupgate/api/http"
	memberevents "github.com/louisbranch/groupgate/internal/services/groupgate/events/kafka"
	"github.com/louisbranch/groupgate/internal/services/groupgate/gate"
	"github.com/louisbranch/groupgate/internal/services/groupgate/oracle/onebot"
	"github.com/louisbranch/groupgate/internal/services/groupgate/oracle/redisset"
	gatesqlite "github.com/louisbranch/groupgate/internal/services/groupgate/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Oracle kinds accepted by Config.Oracle.Kind.
const (
	OracleNone   = "none"
	OracleOneBot = "onebot"
	OracleRedis  = "redis"
)

// OracleConfig selects and configures the live membership oracle.
type OracleConfig struct {
	Kind string

	OneBotURL     string
	OneBotToken   string
	OneBotTimeout time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// KafkaConfig configures the member event consumer. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// Config holds everything a Server needs.
type Config struct {
	Addr                 string
	DBPath               string
	GroupID              int64
	DefaultLocale        string
	StrictOracleFallback bool
	Oracle               OracleConfig
	Kafka                KafkaConfig
	Logger               *zap.Logger
	// LogLevel is served at /log/level when set.
	LogLevel http.Handler
}

// Server hosts the gate HTTP API, the member event consumer and the store.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *gatesqlite.Store
	closers    []io.Closer
	consumer   *memberevents.Consumer
	logger     *zap.Logger

	consumerWG sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a configured server listening on cfg.Addr.
func New(cfg Config) (*Server, error) {
	if cfg.GroupID <= 0 {
		return nil, errors.New("group id is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	s := &Server{listener: listener, logger: logger}

	s.store, err = openStore(cfg.DBPath, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	oracle, err := s.buildOracle(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bundle := catalog.Default()
	defaultLocale, ok := bundle.Match(cfg.DefaultLocale)
	if !ok {
		defaultLocale = catalog.BaseLocale
		if strings.TrimSpace(cfg.DefaultLocale) != "" {
			logger.Warn("unsupported default locale, using base locale",
				zap.String("locale", cfg.DefaultLocale),
				zap.Strings("supported", bundle.Locales()),
			)
		}
	}
	g, err := gate.New(gate.Config{
		Store:                s.store,
		Logger:               logger,
		Metrics:              gate.NewMetrics(registry),
		Messages:             bundle,
		DefaultLocale:        defaultLocale,
		StrictOracleFallback: cfg.StrictOracleFallback,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	handler, err := httpapi.NewHandler(httpapi.Config{
		Gate:          g,
		Oracle:        oracle,
		GroupID:       cfg.GroupID,
		Locales:       bundle,
		DefaultLocale: defaultLocale,
		Gatherer:      registry,
		LogLevel:      cfg.LogLevel,
		Logger:        logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	if len(cfg.Kafka.Brokers) > 0 {
		reader, err := memberevents.NewReader(memberevents.ReaderConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("member event reader: %w", err)
		}
		s.consumer = memberevents.NewConsumer(reader, g, cfg.GroupID, logger)
	}

	return s, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server and member event consumer until context
// cancellation. A consumer failure shuts the HTTP server down and is
// returned, so the process exits rather than serving with stale memberships.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	consumerErr := make(chan error, 1)
	if s.consumer != nil {
		s.consumerWG.Add(1)
		go func() {
			defer s.consumerWG.Done()
			if err := s.consumer.Run(ctx); err != nil {
				consumerErr <- err
			}
		}()
	}

	s.logger.Info("groupgate listening", zap.String("addr", s.Addr()))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown(serveErr)
	case err := <-consumerErr:
		s.logger.Error("member event consumer stopped, shutting down", zap.Error(err))
		if shutdownErr := s.shutdown(serveErr); shutdownErr != nil {
			s.logger.Warn("shutdown after consumer failure", zap.Error(shutdownErr))
		}
		return fmt.Errorf("member event consumer: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func (s *Server) shutdown(serveErr <-chan error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP: %w", err)
	}
	err := <-serveErr
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve HTTP: %w", err)
}

// Close releases server resources. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.consumer != nil {
			if err := s.consumer.Close(); err != nil {
				s.logger.Warn("close member event consumer", zap.Error(err))
			}
			s.consumerWG.Wait()
		}
		for _, closer := range s.closers {
			if err := closer.Close(); err != nil {
				s.logger.Warn("close oracle client", zap.Error(err))
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Warn("close membership store", zap.Error(err))
			}
		}
	})
}

// buildOracle returns nil when no live oracle is configured.
func (s *Server) buildOracle(cfg Config) (gate.Oracle, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Oracle.Kind))
	switch kind {
	case "", OracleNone:
		s.logger.Info("no live oracle configured, deciding from stored memberships")
		return nil, nil
	case OracleOneBot:
		client, err := onebot.New(onebot.Config{
			BaseURL: cfg.Oracle.OneBotURL,
			Token:   cfg.Oracle.OneBotToken,
			GroupID: cfg.GroupID,
			Timeout: cfg.Oracle.OneBotTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("onebot oracle: %w", err)
		}
		return client, nil
	case OracleRedis:
		if strings.TrimSpace(cfg.Oracle.RedisAddr) == "" {
			return nil, errors.New("redis oracle: address is required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Oracle.RedisAddr,
			Password:     cfg.Oracle.RedisPassword,
			DB:           cfg.Oracle.RedisDB,
			ReadTimeout:  timeouts.OracleRequest,
			WriteTimeout: timeouts.OracleRequest,
		})
		s.closers = append(s.closers, client)
		roster, err := redisset.New(client, cfg.Oracle.RedisKeyPrefix, cfg.GroupID)
		if err != nil {
			return nil, fmt.Errorf("redis oracle: %w", err)
		}
		s.logger.Info("live membership from redis roster", zap.String("key", roster.Key()))
		return roster, nil
	default:
		return nil, fmt.Errorf("unknown oracle %q", cfg.Oracle.Kind)
	}
}

func openStore(path string, logger *zap.Logger) (*gatesqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "groupgate.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := gatesqlite.Open(path, gatesqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open groupgate sqlite store: %w", err)
	}
	return store, nil
}
