package audit_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebridge/internal/audit"
	"carebridge/internal/audit/store/memory"
	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

func newID(t *testing.T) id.IdentityID {
	t.Helper()
	identityID, err := id.ParseIdentityID(uuid.NewString())
	require.NoError(t, err)
	return identityID
}

func TestPublisherEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	publisher := audit.NewPublisher(store)
	subject := newID(t)

	t.Run("fills timestamp and request-scoped fields", func(t *testing.T) {
		actor := newID(t)
		ctx := requestcontext.WithRequestID(context.Background(), "req-42")
		ctx = requestcontext.WithActorID(ctx, actor)
		ctx = requestcontext.WithDevice(ctx, "Safari on iPhone")

		err := publisher.Emit(ctx, audit.Event{
			Type:      audit.EventIdentityProvisioned,
			SubjectID: subject,
		})
		require.NoError(t, err)

		events, err := publisher.List(ctx, subject)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Timestamp.IsZero())
		assert.Equal(t, "req-42", events[0].RequestID)
		assert.Equal(t, actor, events[0].ActorID)
		assert.Equal(t, "Safari on iPhone", events[0].Device)
	})

	t.Run("caller-set fields win over context", func(t *testing.T) {
		store.Clear()
		ctx := requestcontext.WithRequestID(context.Background(), "req-43")

		err := publisher.Emit(ctx, audit.Event{
			Type:      audit.EventIdentityDeleted,
			SubjectID: subject,
			RequestID: "explicit",
		})
		require.NoError(t, err)

		events, err := publisher.List(ctx, subject)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "explicit", events[0].RequestID)
	})
}

func TestEventCategories(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.EventIdentityProvisioned.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.EventIdentityDeleted.Category())
	assert.Equal(t, audit.CategorySecurity, audit.EventCompensationFailed.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventRelationAssigned.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventType("unknown").Category())
}

type capturingProducer struct {
	topic string
	key   []byte
	value []byte
}

func (c *capturingProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	c.topic = topic
	c.key = key
	c.value = value
	return nil
}

func TestKafkaPublisherRoutesByCategory(t *testing.T) {
	producer := &capturingProducer{}
	publisher := audit.NewKafkaPublisher(producer, nil)
	subject := newID(t)

	err := publisher.Emit(context.Background(), audit.Event{
		Type:      audit.EventCompensationFailed,
		SubjectID: subject,
		Attrs:     map[string]any{"stage": "subscription"},
	})
	require.NoError(t, err)

	assert.Equal(t, audit.TopicSecurity, producer.topic)
	assert.Equal(t, subject.String(), string(producer.key))

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, audit.EventCompensationFailed, decoded.Type)
	assert.Equal(t, subject, decoded.SubjectID)
}
