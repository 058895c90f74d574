// Package stream carries search events from the search service to the
// analytics service over a Kafka topic.
//
// Each event is one message: the key is the normalized query, so every
// event for the same query lands on the same partition, the value is the
// JSON-encoded analytics.SearchEvent, and a "schema" header names the
// payload version. Consumers skip and commit messages they cannot decode
// instead of stalling the partition on them.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
)

const (
	schemaHeader = "schema"
	schemaV1     = "search-event/v1"
)

var (
	// ErrMalformedEvent means a message value is not a JSON search event.
	ErrMalformedEvent = errors.New("malformed search event")
	// ErrUnknownSchema means a message declares a payload version this
	// build does not understand.
	ErrUnknownSchema = errors.New("unknown search event schema")
)

func partitionKey(e analytics.SearchEvent) string {
	if e.Normalized != "" {
		return e.Normalized
	}
	return e.Query
}

func encode(e analytics.SearchEvent) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding search event: %w", err)
	}
	return kafka.Message{
		Key:     []byte(partitionKey(e)),
		Value:   value,
		Time:    e.Timestamp,
		Headers: []kafka.Header{{Key: schemaHeader, Value: []byte(schemaV1)}},
	}, nil
}

// decode accepts messages without a schema header as v1 so events written
// before the header existed still count.
func decode(msg kafka.Message) (analytics.SearchEvent, error) {
	for _, h := range msg.Headers {
		if h.Key == schemaHeader && string(h.Value) != schemaV1 {
			return analytics.SearchEvent{}, fmt.Errorf("%w: %q", ErrUnknownSchema, h.Value)
		}
	}
	var e analytics.SearchEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return analytics.SearchEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return e, nil
}
