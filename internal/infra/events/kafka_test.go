package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/followup"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishKeysByFollowUp(t *testing.T) {
	w := &recordingWriter{}
	pub := NewKafkaPublisherWithWriter(w)

	ev := app.Event{
		Type:       app.EventFollowUpAnalyzed,
		FollowUpID: uuid.New(),
		PatientID:  uuid.New(),
		DoctorID:   uuid.New(),
		DayNumber:  3,
		RiskLevel:  followup.RiskHigh,
		OccurredAt: time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, ev.FollowUpID.String(), string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, app.EventFollowUpAnalyzed, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "high", decoded["riskLevel"])
	assert.EqualValues(t, 3, decoded["dayNumber"])
}

func TestPublishWrapsWriterError(t *testing.T) {
	pub := NewKafkaPublisherWithWriter(&recordingWriter{err: errors.New("broker down")})
	err := pub.Publish(context.Background(), app.Event{Type: app.EventFollowUpSent})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "followup.sent")
}
