// Package stream feeds gateway-published readings from Kafka into the same
// ingestion path as the HTTP API.
package stream

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"vitals-service/internal/ingest"
	"vitals-service/internal/logging"
)

type Consumer struct {
	reader *kafka.Reader
	svc    *ingest.Service
	logger *logging.Logger
}

func NewConsumer(broker, topic, groupID string, svc *ingest.Service, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{reader: reader, svc: svc, logger: logger}
}

// Run consumes reading messages until ctx is cancelled. Malformed or invalid
// messages are logged and skipped; they are never retried.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				c.logger.Infof("Kafka consumer stopped")
				return
			}
			c.logger.Errorf("Read message failed: %v", err)
			continue
		}

		var sub ingest.ReadingSubmission
		if err := json.Unmarshal(msg.Value, &sub); err != nil {
			c.logger.Errorf("Unmarshal reading message failed: %v", err)
			continue
		}

		res, err := c.svc.SubmitSingle(ctx, sub)
		if err != nil {
			var verr *ingest.ValidationError
			if errors.As(err, &verr) || errors.Is(err, ingest.ErrUserNotFound) {
				c.logger.Warnf("Skipping invalid reading from device %s: %v", sub.DeviceID, err)
				continue
			}
			c.logger.Errorf("Failed to ingest reading from device %s: %v", sub.DeviceID, err)
			continue
		}
		c.logger.Infof("Ingested reading %d from Kafka (%d alerts)", res.ReadingID, res.AlertsTriggered)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
