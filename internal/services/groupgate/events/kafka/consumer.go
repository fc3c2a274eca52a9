// Package kafka applies group join and leave events published by the group
// bot to the membership store.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types carried in the "type" field.
const (
	EventJoined = "joined"
	EventLeft   = "left"
)

// DefaultTopic is the member event topic.
const DefaultTopic = "groupgate.member-events"

// MemberEvent is the JSON payload of one member event.
type MemberEvent struct {
	Type      string `json:"type"`
	AccountID int64  `json:"account_id"`
	GroupID   int64  `json:"group_id"`
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MemberEventHandler records membership changes.
type MemberEventHandler interface {
	OnMemberJoined(ctx context.Context, accountID int64)
	OnMemberLeft(ctx context.Context, accountID int64)
}

// ReaderConfig configures a kafka-go reader for member events.
type ReaderConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// NewReader creates a consumer-group reader with manual commits.
func NewReader(cfg ReaderConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.ConsumerGroup) == "" {
		return nil, errors.New("kafka consumer group is required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.ConsumerGroup,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
	}), nil
}

// Consumer applies member events for one group.
type Consumer struct {
	reader  MessageReader
	handler MemberEventHandler
	groupID int64
	logger  *zap.Logger
}

// NewConsumer creates a Consumer for events of groupID.
func NewConsumer(reader MessageReader, handler MemberEventHandler, groupID int64, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:  reader,
		handler: handler,
		groupID: groupID,
		logger:  logger.With(zap.String("component", "member_events")),
	}
}

// Run consumes until ctx is cancelled or the reader is closed. Every fetched
// message is committed once handled, including ones that are skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch member event: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit member event: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	logger := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	var event MemberEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Warn("skip malformed member event", zap.Error(err))
		return
	}
	if event.GroupID != c.groupID {
		logger.Debug("skip member event for other group", zap.Int64("group_id", event.GroupID))
		return
	}
	if event.AccountID <= 0 {
		logger.Warn("skip member event without account", zap.Int64("account_id", event.AccountID))
		return
	}

	switch event.Type {
	case EventJoined:
		c.handler.OnMemberJoined(ctx, event.AccountID)
	case EventLeft:
		c.handler.OnMemberLeft(ctx, event.AccountID)
	default:
		logger.Warn("skip unknown member event", zap.String("type", event.Type))
	}
}
