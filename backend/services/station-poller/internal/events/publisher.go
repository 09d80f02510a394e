package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"chargewatch/backend/services/station-poller/internal/models"
)

// Writer is the part of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StationEvent is the value of one message: a station and its connectors at one poll.
type StationEvent struct {
	RunID      string                     `json:"run_id"`
	ObservedAt time.Time                  `json:"observed_at"`
	Station    models.Station             `json:"station"`
	Connectors []models.UtilizationRecord `json:"connectors"`
}

// Publisher emits one utilization snapshot event per station, keyed by station id.
type Publisher struct {
	writer Writer
}

// NewPublisher creates a producer writing to topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	})
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w Writer) *Publisher {
	return &Publisher{writer: w}
}

func (p *Publisher) Name() string { return "kafka" }

// Publish writes the snapshot as a single batch.
func (p *Publisher) Publish(ctx context.Context, snap models.Snapshot) error {
	msgs, err := Messages(snap)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Messages builds one message per station in snapshot order.
func Messages(snap models.Snapshot) ([]kafka.Message, error) {
	byStation := make(map[string][]models.UtilizationRecord)
	var observed time.Time
	for _, r := range snap.Utilization {
		byStation[r.StationID] = append(byStation[r.StationID], r)
		if observed.IsZero() {
			observed = r.Timestamp
		}
	}
	var runID string
	if snap.Summary != nil {
		runID = snap.Summary.RunID
		if observed.IsZero() {
			observed = snap.Summary.StartedAt
		}
	}

	msgs := make([]kafka.Message, 0, len(snap.Stations))
	for _, st := range snap.Stations {
		connectors := byStation[st.ID]
		if connectors == nil {
			connectors = []models.UtilizationRecord{}
		}
		value, err := json.Marshal(StationEvent{
			RunID:      runID,
			ObservedAt: observed,
			Station:    st,
			Connectors: connectors,
		})
		if err != nil {
			return nil, fmt.Errorf("encode station %s: %w", st.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(st.ID),
			Value: value,
			Time:  observed,
		})
	}
	return msgs, nil
}
