package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/config"
	"github.com/jebauza/VetFlow/internal/infra/ids"
)

// RevocationLagObserver records the delay between a revocation and its arrival on this node.
type RevocationLagObserver interface {
	ObserveRevocationLag(lag time.Duration)
}

// RevocationConsumer hydrates the local token denylist from token.revoked events.
type RevocationConsumer struct {
	denylist    port.TokenDenylist
	metrics     RevocationLagObserver
	logger      *zap.Logger
	maxEventLag time.Duration
	now         func() time.Time
}

// NewRevocationConsumer constructs a consumer that keeps the denylist current.
func NewRevocationConsumer(denylist port.TokenDenylist, metrics RevocationLagObserver, logger *zap.Logger) *RevocationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevocationConsumer{
		denylist:    denylist,
		metrics:     metrics,
		logger:      logger,
		maxEventLag: 5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the consumer clock for deterministic testing.
func (c *RevocationConsumer) WithClock(clock func() time.Time) *RevocationConsumer {
	if clock != nil {
		c.now = clock
	}
	return c
}

// HandleMessage decodes an event envelope and applies token.revoked payloads.
func (c *RevocationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return errors.New("message is nil")
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}
	if envelope.EventType != EventTokenRevoked {
		return nil
	}

	var event domain.TokenRevokedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return fmt.Errorf("decode token revoked event: %w", err)
	}
	return c.HandleEvent(ctx, event)
}

// HandleEvent adds the revocation to the denylist unless it has already expired.
func (c *RevocationConsumer) HandleEvent(ctx context.Context, event domain.TokenRevokedEvent) error {
	now := c.now()
	if !event.ExpiresAt.After(now) {
		c.logger.Debug("skip expired revocation", zap.String("jti", event.JTI))
		return nil
	}

	if !event.RevokedAt.IsZero() {
		lag := now.Sub(event.RevokedAt)
		if lag < 0 {
			lag = 0
		}
		if c.metrics != nil {
			c.metrics.ObserveRevocationLag(lag)
		}
		if c.maxEventLag > 0 && lag > c.maxEventLag {
			c.logger.Warn("token revocation event lag exceeds threshold",
				zap.Duration("lag", lag),
				zap.Duration("threshold", c.maxEventLag),
				zap.String("jti", event.JTI),
			)
		}
	}

	revokedAt := event.RevokedAt.UTC()
	if revokedAt.IsZero() {
		revokedAt = now
	}
	revocation := domain.TokenRevocation{
		JTI:       event.JTI,
		SubjectID: event.SubjectID,
		Reason:    event.Reason,
		RevokedAt: revokedAt,
		ExpiresAt: event.ExpiresAt.UTC(),
	}
	if _, err := c.denylist.Add(ctx, revocation); err != nil {
		return fmt.Errorf("denylist revocation: %w", err)
	}
	return nil
}

// Setup is part of sarama.ConsumerGroupHandler.
func (c *RevocationConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup is part of sarama.ConsumerGroupHandler.
func (c *RevocationConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim applies every claimed message; undecodable messages are logged and skipped.
func (c *RevocationConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg); err != nil {
				c.logger.Warn("revocation message rejected",
					zap.Error(err),
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// RevocationGroup runs a per-node consumer group so every node sees every revocation.
type RevocationGroup struct {
	group  sarama.ConsumerGroup
	topic  string
	logger *zap.Logger
}

// NewRevocationGroup joins a consumer group named after the configured group plus a unique node suffix.
func NewRevocationGroup(cfg config.KafkaSettings, logger *zap.Logger) (*RevocationGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("create revocation consumer: no brokers configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	groupID := cfg.ConsumerGroup + "." + ids.NewULID()
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create revocation consumer group: %w", err)
	}

	return &RevocationGroup{
		group:  group,
		topic:  topicName(cfg.TopicPrefix, EventTokenRevoked),
		logger: logger.With(zap.String("group_id", groupID)),
	}, nil
}

// Run consumes until ctx is cancelled, rejoining after rebalances.
func (g *RevocationGroup) Run(ctx context.Context, handler sarama.ConsumerGroupHandler) error {
	go func() {
		for err := range g.group.Errors() {
			g.logger.Warn("revocation consumer error", zap.Error(err))
		}
	}()

	g.logger.Info("revocation fan-out started", zap.String("topic", g.topic))
	for {
		if err := g.group.Consume(ctx, []string{g.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			g.logger.Error("revocation consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (g *RevocationGroup) Close() error {
	return g.group.Close()
}

var _ sarama.ConsumerGroupHandler = (*RevocationConsumer)(nil)
