package kafka

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("CanESM5/piControl/tas/0"),
		Value:     []byte(`{"source_id":"CanESM5"}`),
		Topic:     "cmip6-run-fields",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "producer", Value: []byte("genmock")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("CanESM5/piControl/tas/0"), raw.Key)
	assert.JSONEq(t, `{"source_id":"CanESM5"}`, string(raw.Value))
	assert.Equal(t, "cmip6-run-fields", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "genmock", raw.Headers["producer"])
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 10, 0, 0, time.UTC)
	est := domain.Estimate{
		ID:           "CanESM5-0123456789abcdef",
		SourceID:     "CanESM5",
		ExperimentID: "abrupt-4xCO2",
		ReferenceID:  "piControl",
		Sensitivity:  5.62,
		Slope:        -0.65,
		Intercept:    7.3,
		Observations: 150,
		Doublings:    2,
		WindowYears:  150,
		ProcessedAt:  now,
	}

	msg, err := serializeToMessage(est)
	require.NoError(t, err)

	assert.Equal(t, []byte("CanESM5-0123456789abcdef"), msg.Key)
	assert.Contains(t, string(msg.Value), `"sensitivity":5.62`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "source_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("CanESM5"), msg.Headers[0].Value)
	assert.Equal(t, "experiment_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("abrupt-4xCO2"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded domain.Estimate
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, est, decoded)
}

func TestSerializeToMessage_NaN(t *testing.T) {
	_, err := serializeToMessage(domain.Estimate{ID: "x", Sensitivity: math.NaN()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialize estimate")
}
