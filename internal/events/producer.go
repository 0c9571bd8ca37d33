package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventType represents different types of lifecycle events that can be produced
type EventType string

const (
	ProjectCreatedEvent      EventType = "project_created"
	ProjectCreateFailedEvent EventType = "project_create_failed"
	AnalysisCompletedEvent   EventType = "analysis_completed"
	AnalysisFailedEvent      EventType = "analysis_failed"
	DeployStartedEvent       EventType = "deployment_started"
	DeployCompletedEvent     EventType = "deployment_completed"
	DeployFailedEvent        EventType = "deployment_failed"
	DestroyStartedEvent      EventType = "destroy_started"
	DestroyCompletedEvent    EventType = "destroy_completed"
	DestroyFailedEvent       EventType = "destroy_failed"
	SystemEventType          EventType = "system"
)

// Event represents a generic event to be sent to Kafka
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Producer publishes project lifecycle events to Kafka. The stream is an
// optional observer of the orchestrator; it never influences lifecycle state.
type Producer struct {
	writer      *kafka.Writer
	isConnected bool
	config      ProducerConfig
}

// ProducerConfig contains configuration for the event producer
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
}

// NewProducer creates a new event producer
func NewProducer(config ProducerConfig) *Producer {
	if len(config.Brokers) == 0 {
		config.Brokers = []string{"localhost:9092"}
	}
	if config.ClientID == "" {
		config.ClientID = "stackpilot"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.BatchTimeout == 0 {
		config.BatchTimeout = 1 * time.Second
	}

	return &Producer{config: config}
}

// Connect establishes a connection to Kafka
func (p *Producer) Connect(ctx context.Context) error {
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        "stackpilot-events",
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	ping := Event{
		Type:      SystemEventType,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"message": "ping"},
	}
	if err := p.Produce(ctx, ping); err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}

	p.isConnected = true
	return nil
}

// Produce sends an event to Kafka
func (p *Producer) Produce(ctx context.Context, event Event) error {
	if p.writer == nil {
		return fmt.Errorf("event producer not connected")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "project", Value: []byte(event.Project)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// ProduceLifecycleEvent produces an event tied to one project
func (p *Producer) ProduceLifecycleEvent(ctx context.Context, eventType EventType, projectName string, data map[string]interface{}) error {
	return p.Produce(ctx, Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Project:   projectName,
		Data:      data,
	})
}

// Close closes the Kafka connection
func (p *Producer) Close() error {
	if p.writer != nil {
		err := p.writer.Close()
		p.writer = nil
		p.isConnected = false
		return err
	}
	return nil
}

// IsConnected returns whether the producer is connected to Kafka
func (p *Producer) IsConnected() bool {
	return p.isConnected
}
