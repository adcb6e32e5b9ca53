package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"carebridge/pkg/requestcontext"
)

// Category topics. Separate topics let compliance events get longer
// retention than routine operational chatter.
const (
	TopicCompliance = "carebridge.audit.compliance"
	TopicSecurity   = "carebridge.audit.security"
	TopicOperations = "carebridge.audit.operations"
)

// Topics lists every audit topic, for bootstrap.
var Topics = []string{TopicCompliance, TopicSecurity, TopicOperations}

// RecordProducer is the slice of the kafka producer the publisher needs.
type RecordProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher routes events to the category topic, keyed by subject so
// one identity's trail stays ordered within a partition.
type KafkaPublisher struct {
	producer RecordProducer
	logger   *slog.Logger
}

func NewKafkaPublisher(producer RecordProducer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID.IsNil() {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Produce(ctx, topicFor(event.Type), []byte(event.SubjectID.String()), payload)
}

func topicFor(t EventType) string {
	switch t.Category() {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOperations
	}
}
