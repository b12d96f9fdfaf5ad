package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Event[T] binds a topic name to its payload type.
type Event[T any] struct {
	topicName string
}

// NewEvent declares a typed topic. Declare events at package level; declaring
// the same name twice panics.
func NewEvent[T any](name, description string) Event[T] {
	module, _, _ := strings.Cut(name, ".")
	register(TopicInfo{
		Name:        name,
		Module:      module,
		Description: description,
		Fields:      jsonFields[T](),
	})
	return Event[T]{topicName: name}
}

// jsonFields lists the json names of T's fields for documentation.
func jsonFields[T any]() []string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			fields = append(fields, name)
		}
	}
	return fields
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T, metadata map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name(), err)
	}
	return p.Publish(ctx, Message{
		Topic:    event.Name(),
		Payload:  data,
		Metadata: metadata,
	})
}

// Decode unmarshals the payload of a message published for event.
func Decode[T any](event Event[T], msg Message) (T, error) {
	var payload T
	if msg.Topic != "" && msg.Topic != event.Name() {
		return payload, fmt.Errorf("message topic %q is not %q", msg.Topic, event.Name())
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s: %w", event.Name(), err)
	}
	return payload, nil
}

// On subscribes handler to event with the payload already decoded.
func On[T any](ctx context.Context, s Subscriber, event Event[T], handler func(ctx context.Context, payload T, msg Message) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		payload, err := Decode(event, msg)
		if err != nil {
			return err
		}
		return handler(ctx, payload, msg)
	})
}
