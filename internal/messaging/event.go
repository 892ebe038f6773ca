package messaging

import (
	"reflect"
	"strings"

	"github.com/segmentio/kafka-go"
)

// eventType is the bare type name of an event, e.g. "OrderCreatedEvent".
func eventType(event any) string {
	t := reflect.TypeOf(event)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// EventType reads the event-type header of a consumed message.
func EventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, HeaderEventType) {
			return string(h.Value)
		}
	}
	return ""
}
