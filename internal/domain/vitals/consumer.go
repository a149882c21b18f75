package vitals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triagebios/triage/internal/platform/mqtt"
)

// TopicPattern is the subscription filter for device readings. The
// wildcard segment carries the patient UUID:
//
//	vitals/{patient_id}/readings
const TopicPattern = "vitals/+/readings"

// subscriber is the slice of the MQTT client the consumer uses.
type subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Consumer feeds device-published readings into the vitals service.
// Malformed payloads and unknown topics are dropped with a warning;
// a bad sample from one device must not stall the stream.
type Consumer struct {
	svc    *Service
	logger zerolog.Logger
}

func NewConsumer(svc *Service, logger zerolog.Logger) *Consumer {
	return &Consumer{svc: svc, logger: logger}
}

// Start subscribes to the readings topic. Message handling runs on the
// MQTT client's callback goroutines.
func (c *Consumer) Start(sub subscriber, qos byte) error {
	return sub.Subscribe(TopicPattern, qos, c.Handle)
}

// Handle processes one raw device message.
func (c *Consumer) Handle(topic string, payload []byte) error {
	patientID, err := patientFromTopic(topic)
	if err != nil {
		return err
	}

	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("decode reading payload: %w", err)
	}
	r.ID = uuid.Nil
	r.PatientID = patientID

	if err := c.svc.Ingest(context.Background(), &r); err != nil {
		return fmt.Errorf("ingest device reading: %w", err)
	}
	c.logger.Debug().
		Str("patient_id", patientID.String()).
		Time("taken_at", r.TakenAt).
		Msg("device reading ingested")
	return nil
}

func patientFromTopic(topic string) (uuid.UUID, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "vitals" || parts[2] != "readings" {
		return uuid.Nil, fmt.Errorf("unexpected topic %q", topic)
	}
	patientID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid patient id in topic %q: %w", topic, err)
	}
	return patientID, nil
}
