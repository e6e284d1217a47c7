package observers

import (
	"context"
	"fmt"
	"reflect"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/desertthunder/crux/internal/idfield"
	"github.com/desertthunder/crux/internal/models"
)

// MessageWriter is the part of [kafka.Writer] the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID        string          `json:"id"`
	Op        string          `json:"op"`
	Entity    string          `json:"entity"`
	EntityID  any             `json:"entity_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// KafkaPublisher publishes committed-shape entities after create, update and delete.
//
// Write notifications run inside the engine's transaction, so a failed publish rolls the
// mutation back. Read notifications are ignored.
type KafkaPublisher struct {
	writer MessageWriter
	entity string
	now    func() time.Time
}

// NewKafkaWriter creates a writer for topic that waits for every in-sync replica.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher publishes notifications about entity (e.g. "Track") through w.
func NewKafkaPublisher(w MessageWriter, entity string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, entity: entity, now: time.Now}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }

func (p *KafkaPublisher) publish(ctx context.Context, op models.Operation, e any) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", p.entity, err)
	}

	env := Envelope{
		ID:        uuid.New().String(),
		Op:        op.String(),
		Entity:    p.entity,
		Payload:   payload,
		Timestamp: p.now().UTC(),
	}
	if field, err := idfield.Lookup(reflect.TypeOf(e)); err == nil {
		env.EntityID, _ = field.Get(e)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	msg := kafka.Message{Value: body}
	if env.EntityID != nil {
		msg.Key = fmt.Appendf(nil, "%v", env.EntityID)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s %s: %w", p.entity, op, err)
	}
	return nil
}

func (p *KafkaPublisher) OnAfterCreate(ctx context.Context, _ any, e any) error {
	return p.publish(ctx, models.OpCreate, e)
}

func (p *KafkaPublisher) OnAfterUpdate(ctx context.Context, _ any, e any) error {
	return p.publish(ctx, models.OpUpdate, e)
}

func (p *KafkaPublisher) OnAfterDelete(ctx context.Context, e any) error {
	return p.publish(ctx, models.OpDelete, e)
}

func (p *KafkaPublisher) OnFind(context.Context, any) error { return nil }
func (p *KafkaPublisher) OnFindMany(context.Context, []any, []any) error { return nil }
func (p *KafkaPublisher) OnCount(context.Context, int64) error { return nil }
func (p *KafkaPublisher) OnExists(context.Context, bool, any) error { return nil }
func (p *KafkaPublisher) OnPage(context.Context, models.Page[any]) error { return nil }
func (p *KafkaPublisher) OnBeforeCreate(context.Context, any, any) error { return nil }
func (p *KafkaPublisher) OnBeforeUpdate(context.Context, any, any) error { return nil }
func (p *KafkaPublisher) OnBeforeDelete(context.Context, any) error { return nil }
func (p *KafkaPublisher) EachEntity(context.Context, any) error { return nil }
