package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/infra/config"
)

const defaultClientID = "vetflow-api"

// saramaConfig builds the client settings shared by the event producer and the revocation
// consumer group.
func saramaConfig(cfg config.KafkaSettings) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("parse kafka version: %w", err)
		}
		sc.Version = version
	}
	sc.ClientID = defaultClientID
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	switch strings.ToLower(cfg.RequiredAcks) {
	case "", "local":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("unknown kafka required_acks %q", cfg.RequiredAcks)
	}
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Errors = true

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond
	return sc, nil
}

// Producer queues event envelopes on an async sarama producer. Delivery failures are logged
// and counted; publishers never wait for broker acks.
type Producer struct {
	async  sarama.AsyncProducer
	prefix string
	logger *zap.Logger
	failed atomic.Uint64
	wg     sync.WaitGroup
}

// NewProducer connects to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("create kafka producer: no brokers configured")
	}
	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	async, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(async, cfg, logger)
	p.logger.Info("kafka producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("client_id", sc.ClientID),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{async: async, prefix: cfg.TopicPrefix, logger: logger}
	p.wg.Add(1)
	go p.drainErrors()
	return p
}

// drainErrors runs until the async producer closes its error channel.
func (p *Producer) drainErrors() {
	defer p.wg.Done()
	for perr := range p.async.Errors() {
		if perr == nil {
			continue
		}
		p.failed.Add(1)
		p.logger.Error("kafka delivery failed",
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err),
		)
	}
}

// Send queues value on the topic for eventType. It blocks only while the input buffer is full.
func (p *Producer) Send(ctx context.Context, eventType, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topicName(p.prefix, eventType),
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	select {
	case p.async.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failed reports how many messages the brokers rejected since start.
func (p *Producer) Failed() uint64 {
	return p.failed.Load()
}

// Close flushes queued messages and waits for the error drain to finish.
func (p *Producer) Close() error {
	err := p.async.Close()
	p.wg.Wait()
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("kafka producer closed", zap.Uint64("failed_deliveries", p.Failed()))
	return nil
}

func topicName(prefix, eventType string) string {
	if prefix == "" || strings.HasPrefix(eventType, prefix+".") {
		return eventType
	}
	return prefix + "." + eventType
}
