// Package groupgate parses groupgate flags and launches the service.
package groupgate

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	entrypoint "github.com/louisbranch/groupgate/internal/platform/cmd"
	"github.com/louisbranch/groupgate/internal/platform/zlog"
	server "github.com/louisbranch/groupgate/internal/services/groupgate/app"
	"go.uber.org/zap"
)

// Config holds groupgate command configuration.
type Config struct {
	Port                 int    `env:"GROUPGATE_PORT" envDefault:"8095"`
	DBPath               string `env:"GROUPGATE_DB_PATH" envDefault:"data/groupgate.db"`
	GroupID              int64  `env:"GROUPGATE_GROUP_ID"`
	DefaultLocale        string `env:"GROUPGATE_DEFAULT_LOCALE" envDefault:"en-US"`
	StrictOracleFallback bool   `env:"GROUPGATE_STRICT_ORACLE_FALLBACK"`

	Oracle        string        `env:"GROUPGATE_ORACLE" envDefault:"none"`
	OneBotURL     string        `env:"GROUPGATE_ONEBOT_URL"`
	OneBotToken   string        `env:"GROUPGATE_ONEBOT_TOKEN"`
	OneBotTimeout time.Duration `env:"GROUPGATE_ONEBOT_TIMEOUT" envDefault:"3s"`

	RedisAddr      string `env:"GROUPGATE_REDIS_ADDR"`
	RedisPassword  string `env:"GROUPGATE_REDIS_PASSWORD"`
	RedisDB        int    `env:"GROUPGATE_REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"GROUPGATE_REDIS_KEY_PREFIX" envDefault:"groupgate:"`

	KafkaBrokers []string `env:"GROUPGATE_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"GROUPGATE_KAFKA_TOPIC" envDefault:"groupgate.member-events"`
	KafkaGroupID string   `env:"GROUPGATE_KAFKA_GROUP_ID" envDefault:"groupgate"`

	Log zlog.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The groupgate HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The membership SQLite database path")
	fs.Int64Var(&cfg.GroupID, "group-id", cfg.GroupID, "The group players must belong to")
	fs.StringVar(&cfg.Oracle, "oracle", cfg.Oracle, "Live membership oracle: none, onebot or redis")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: debug, info, warn or error")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.GroupID <= 0 {
		return Config{}, fmt.Errorf("GROUPGATE_GROUP_ID must be a positive group id")
	}
	cfg.Log.Service = entrypoint.ServiceGroupGate
	if err := cfg.Log.Validate(); err != nil {
		return Config{}, err
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	return cfg, nil
}

// Run starts the groupgate HTTP service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := zlog.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGroupGate, func(context.Context) error {
		return server.Run(ctx, cfg.serverConfig(logger.Logger, logger.LevelHTTPHandler()))
	})
}

func (c Config) serverConfig(logger *zap.Logger, logLevel http.Handler) server.Config {
	return server.Config{
		Addr:                 fmt.Sprintf(":%d", c.Port),
		DBPath:               c.DBPath,
		GroupID:              c.GroupID,
		DefaultLocale:        c.DefaultLocale,
		StrictOracleFallback: c.StrictOracleFallback,
		Oracle: server.OracleConfig{
			Kind:           c.Oracle,
			OneBotURL:      c.OneBotURL,
			OneBotToken:    c.OneBotToken,
			OneBotTimeout:  c.OneBotTimeout,
			RedisAddr:      c.RedisAddr,
			RedisPassword:  c.RedisPassword,
			RedisDB:        c.RedisDB,
			RedisKeyPrefix: c.RedisKeyPrefix,
		},
		Kafka: server.KafkaConfig{
			Brokers:       c.KafkaBrokers,
			Topic:         c.KafkaTopic,
			ConsumerGroup: c.KafkaGroupID,
		},
		Logger:   logger,
		LogLevel: logLevel,
	}
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
