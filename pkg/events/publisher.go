// Package events publishes transcript and export events to Redis pub/sub so
// other tools can react to finished recordings.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// Channel suffixes, appended to the configured prefix.
const (
	ChannelTranscriptCompleted = "transcript.completed"
	ChannelExportCreated       = "export.created"
)

// Export kinds.
const (
	ExportTranscript = "transcript"
	ExportCalendar   = "calendar"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	Version       string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "scribe",
		Version:   "1.0",
	}
}

// TranscriptCompletedEvent is published when an upload yields a transcript.
type TranscriptCompletedEvent struct {
	BaseEvent

	UploadID        string   `json:"upload_id"`
	Filename        string   `json:"filename"`
	SegmentCount    int      `json:"segment_count"`
	Speakers        []string `json:"speakers"`
	DurationSeconds float64  `json:"duration_seconds"`
	HasInsights     bool     `json:"has_insights"`
	CalendarEvents  int      `json:"calendar_events"`
}

// ExportCreatedEvent is published when a document is exported.
type ExportCreatedEvent struct {
	BaseEvent

	Kind      string `json:"kind"`
	Filename  string `json:"filename"`
	SizeBytes int    `json:"size_bytes"`
	Source    string `json:"source_recording,omitempty"`
}

// redisPublisher is the part of the Redis client the publisher uses.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher publishes scribe events to Redis.
type Publisher struct {
	client redisPublisher
	prefix string
	logger logging.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(client redisPublisher, prefix string, logger logging.Logger) *Publisher {
	if prefix == "" {
		prefix = config.DefaultEventsPrefix
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
// It returns nil, nil when Redis is not configured.
func NewPublisherFromConfig(cfg *config.RedisConfig, logger logging.Logger) (*Publisher, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPublisher(client, cfg.GetChannelPrefix(), logger), nil
}

// TranscriptCompletedParams contains parameters for a transcript event.
type TranscriptCompletedParams struct {
	UploadID        string
	Filename        string
	SegmentCount    int
	Speakers        []string
	DurationSeconds float64
	HasInsights     bool
	CalendarEvents  int
}

// PublishTranscriptCompleted announces a finished transcript.
func (p *Publisher) PublishTranscriptCompleted(ctx context.Context, params TranscriptCompletedParams) error {
	if p == nil {
		return nil
	}
	event := TranscriptCompletedEvent{
		BaseEvent:       NewBaseEvent(ChannelTranscriptCompleted),
		UploadID:        params.UploadID,
		Filename:        params.Filename,
		SegmentCount:    params.SegmentCount,
		Speakers:        params.Speakers,
		DurationSeconds: params.DurationSeconds,
		HasInsights:     params.HasInsights,
		CalendarEvents:  params.CalendarEvents,
	}
	if event.Speakers == nil {
		event.Speakers = []string{}
	}
	return p.publish(ctx, ChannelTranscriptCompleted, event)
}

// ExportCreatedParams contains parameters for an export event.
type ExportCreatedParams struct {
	Kind      string
	Filename  string
	SizeBytes int
	Source    string
}

// PublishExportCreated announces a downloaded or written export.
func (p *Publisher) PublishExportCreated(ctx context.Context, params ExportCreatedParams) error {
	if p == nil {
		return nil
	}
	event := ExportCreatedEvent{
		BaseEvent: NewBaseEvent(ChannelExportCreated),
		Kind:      params.Kind,
		Filename:  params.Filename,
		SizeBytes: params.SizeBytes,
		Source:    params.Source,
	}
	return p.publish(ctx, ChannelExportCreated, event)
}

// Channel returns the full channel name for a suffix.
func (p *Publisher) Channel(suffix string) string {
	return p.prefix + "." + suffix
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, suffix string, event interface{}) error {
	channel := p.Channel(suffix)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
