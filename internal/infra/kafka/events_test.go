package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error {
	close(f.errors)
	return nil
}

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "vetflow"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{Name: "vetflow-api", Env: "test"}, zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, producer *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()
	select {
	case msg := <-producer.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}
		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return msg, envelope
	case <-time.After(time.Second):
		t.Fatalf("expected message to be produced")
	}
	return nil, nil
}

func TestPublishUserRegistered(t *testing.T) {
	publisher, producer := newTestPublisher(t)
	registeredAt := time.Date(2024, 10, 31, 12, 0, 0, 0, time.UTC)

	err := publisher.PublishUserRegistered(context.Background(), domain.UserRegisteredEvent{
		EventID:      "event-123",
		UserID:       "user-789",
		Email:        "ana@vetflow.test",
		Name:         "Ana",
		Surname:      "Lopez",
		RegisteredAt: registeredAt,
		Method:       "password",
	})
	if err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, producer)
	if msg.Topic != "vetflow.user.registered" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	if got := envelope["event_type"]; got != EventUserRegistered {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["event_id"]; got != "event-123" {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["timestamp"]; got != registeredAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["email"] != "ana@vetflow.test" || payload["registration_method"] != "password" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok || metadata["service"] != "vetflow-api" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", envelope["metadata"])
	}
}

func TestPublishPermissionsChangedRoutesByOwner(t *testing.T) {
	publisher, producer := newTestPublisher(t)

	err := publisher.PublishPermissionsChanged(context.Background(), domain.PermissionsChangedEvent{
		OwnerType: domain.OwnerRole,
		OwnerID:   "role-1",
		Mode:      domain.AssignmentSync,
		ChangedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishPermissionsChanged returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, producer)
	if msg.Topic != "vetflow.role.permissions.synced" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	if envelope["event_id"] == "" {
		t.Fatalf("expected generated event id")
	}
	payload := envelope["payload"].(map[string]any)
	if ids, ok := payload["permission_ids"].([]any); !ok || len(ids) != 0 {
		t.Fatalf("expected empty permission_ids array, got %v", payload["permission_ids"])
	}
}

func TestPublishRespectsContextCancellation(t *testing.T) {
	publisher, producer := newTestPublisher(t)
	producer.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishUserDeleted(ctx, domain.UserDeletedEvent{UserID: "user-1"})
	if err == nil {
		t.Fatalf("expected cancelled context error")
	}
}

func TestTopicName(t *testing.T) {
	cases := map[string]string{
		"user.deleted":         "vetflow.user.deleted",
		"vetflow.user.deleted": "vetflow.user.deleted",
	}
	for in, want := range cases {
		if got := topicName("vetflow", in); got != want {
			t.Fatalf("topicName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := topicName("", "token.revoked"); got != "token.revoked" {
		t.Fatalf("expected bare event type without prefix, got %s", got)
	}
}

func TestProducerCountsDeliveryFailures(t *testing.T) {
	async := newFakeAsyncProducer()
	producer := newProducer(async, config.KafkaSettings{TopicPrefix: "vetflow"}, zaptest.NewLogger(t))

	async.errors <- &sarama.ProducerError{Msg: &sarama.ProducerMessage{Topic: "vetflow.user.deleted"}, Err: sarama.ErrOutOfBrokers}
	if err := producer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got := producer.Failed(); got != 1 {
		t.Fatalf("expected one failed delivery, got %d", got)
	}
}

func TestSaramaConfig(t *testing.T) {
	sc, err := saramaConfig(config.KafkaSettings{RequiredAcks: "all", ClientID: "vetflow-worker", Version: "3.6.0"})
	if err != nil {
		t.Fatalf("saramaConfig returned error: %v", err)
	}
	if sc.Producer.RequiredAcks != sarama.WaitForAll || sc.ClientID != "vetflow-worker" || sc.Version != sarama.V3_6_0_0 {
		t.Fatalf("unexpected config: acks=%v client=%s version=%s", sc.Producer.RequiredAcks, sc.ClientID, sc.Version)
	}

	defaults, err := saramaConfig(config.KafkaSettings{})
	if err != nil {
		t.Fatalf("saramaConfig returned error: %v", err)
	}
	if defaults.Producer.RequiredAcks != sarama.WaitForLocal || defaults.ClientID != defaultClientID {
		t.Fatalf("unexpected defaults: acks=%v client=%s", defaults.Producer.RequiredAcks, defaults.ClientID)
	}

	if _, err := saramaConfig(config.KafkaSettings{RequiredAcks: "quorum"}); err == nil {
		t.Fatalf("expected error for unknown acks")
	}
	if _, err := saramaConfig(config.KafkaSettings{Version: "banana"}); err == nil {
		t.Fatalf("expected error for bad version")
	}
}
