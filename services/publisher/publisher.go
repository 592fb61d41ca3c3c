package publisher

import (
	"encoding/json"
	"time"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to the stream under key
	Publish(key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// ProgressKey is the stream field progress events are published under
const ProgressKey = "b64_progress"

// Progress is published after every unit of work a run completes or fails
type Progress struct {
	Run       string    `json:"run"`
	Unit      string    `json:"unit"`
	Status    string    `json:"status"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Records   int       `json:"records"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode marshals the event for Publish
func (p Progress) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// NopPublisher discards every message; used when no Redis is configured
type NopPublisher struct{}

// Publish discards the message
func (NopPublisher) Publish(string, []byte) error { return nil }

// TrimStreams does nothing
func (NopPublisher) TrimStreams() error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }
