package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerDefaults(t *testing.T) {
	p := NewProducer(ProducerConfig{})

	assert.Equal(t, []string{"localhost:9092"}, p.config.Brokers)
	assert.Equal(t, "stackpilot", p.config.ClientID)
	assert.Equal(t, 100, p.config.BatchSize)
	assert.Equal(t, 1*time.Second, p.config.BatchTimeout)
	assert.False(t, p.IsConnected())
}

func TestNewProducerKeepsExplicitConfig(t *testing.T) {
	p := NewProducer(ProducerConfig{
		Brokers:      []string{"kafka-1:9092", "kafka-2:9092"},
		ClientID:     "custom",
		BatchSize:    10,
		BatchTimeout: 5 * time.Second,
	})

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, p.config.Brokers)
	assert.Equal(t, "custom", p.config.ClientID)
}

func TestProduceWithoutConnection(t *testing.T) {
	p := NewProducer(ProducerConfig{})

	err := p.Produce(context.Background(), Event{Type: ProjectCreatedEvent, Project: "my-site"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestCloseWithoutConnection(t *testing.T) {
	p := NewProducer(ProducerConfig{})
	assert.NoError(t, p.Close())
}
