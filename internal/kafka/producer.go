package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/ubongpr7/music-booking/internal/config"
	"github.com/ubongpr7/music-booking/internal/models"
)

// Producer streams booking lifecycle and settlement events. Publishing is
// best effort: callers log failures and move on, the database is the source
// of truth.
type Producer struct {
	writers map[string]*kafka.Writer
	topics  config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writers := make(map[string]*kafka.Writer)
	for _, topic := range []string{topics.BookingConfirmed, topics.BookingCanceled, topics.GroupSettled} {
		writers[topic] = kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{writers: writers, topics: topics}
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writers[topic].WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) PublishBookingConfirmed(booking models.Booking) error {
	return p.publish(p.topics.BookingConfirmed, booking.Reference, booking)
}

func (p *Producer) PublishBookingCanceled(booking models.Booking) error {
	return p.publish(p.topics.BookingCanceled, booking.Reference, booking)
}

func (p *Producer) PublishGroupSettled(group models.BookingGroup) error {
	return p.publish(p.topics.GroupSettled, group.Reference, group)
}

func (p *Producer) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoopProducer stands in when event streaming is disabled.
type NoopProducer struct{}

func (NoopProducer) PublishBookingConfirmed(models.Booking) error  { return nil }
func (NoopProducer) PublishBookingCanceled(models.Booking) error   { return nil }
func (NoopProducer) PublishGroupSettled(models.BookingGroup) error { return nil }
func (NoopProducer) Close() error                                  { return nil }
