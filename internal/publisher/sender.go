package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/outbox"
	"github.com/firmasegura/certifications-backend/pkg/outbox/registry"
)

// Sender delivers one message and blocks until the broker acknowledges it.
type Sender interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubSender publishes through one Pub/Sub v2 publisher per topic.
type PubSubSender struct {
	topics topicSource

	mu   sync.Mutex
	pubs map[string]*gcppubsub.Publisher
}

func NewPubSubSender(topics topicSource) *PubSubSender {
	return &PubSubSender{topics: topics, pubs: map[string]*gcppubsub.Publisher{}}
}

func (s *PubSubSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	pub := s.publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

func (s *PubSubSender) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.pubs[topic]; ok {
		return pub
	}
	pub := s.topics.Publisher(topic)
	if pub != nil {
		s.pubs[topic] = pub
	}
	return pub
}

// Stop flushes pending messages on every publisher handed out so far.
func (s *PubSubSender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.pubs {
		pub.Stop()
		delete(s.pubs, topic)
	}
}

// newMessage carries the stored envelope as-is; attributes let subscribers
// filter without decoding the body.
func newMessage(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil && env.Actor.Role != "" {
		attrs["actor_role"] = string(env.Actor.Role)
	}
	return &gcppubsub.Message{Data: row.Payload, Attributes: attrs}
}
