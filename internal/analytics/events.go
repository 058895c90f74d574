package analytics

import "time"

type EventType string

const (
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Normalized string    `json:"normalized"`
	Limit      int       `json:"limit"`
	Returned   int       `json:"returned"`
	Scanned    int       `json:"scanned"`
	Shards     int       `json:"shards"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// Tracker receives search events. Implementations must not block.
type Tracker interface {
	TrackSearch(event SearchEvent)
}

// TypeFor classifies an event by outcome; zero results take precedence.
func TypeFor(returned int, cacheHit bool) EventType {
	switch {
	case returned == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	default:
		return EventCacheMiss
	}
}
