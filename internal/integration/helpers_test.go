//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/mockdata"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0", kafka.WithClusterID("climate-ecs-etl"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
		ConfigEntries: []kafkago.ConfigEntry{
			{ConfigName: "max.message.bytes", ConfigValue: "52428800"},
		},
	}))
}

// loadMockData generates a small annual ensemble and encodes it as source
// messages.
func loadMockData(t *testing.T, opts mockdata.Options) []kafkago.Message {
	t.Helper()
	msgs, err := mockdata.Messages(opts)
	require.NoError(t, err)

	out := make([]kafkago.Message, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		out = append(out, kafkago.Message{Key: []byte(mockdata.Key(msg)), Value: data})
	}
	return out
}

func mockOptions() mockdata.Options {
	o := mockdata.DefaultOptions()
	o.Models = mockdata.DefaultModels()[:3]
	o.Years = 40
	o.ChunkYears = 20
	o.StepsPerYear = 1
	return o
}

func newProducer(t *testing.T, broker, topic string) *kafkago.Writer {
	t.Helper()
	w := &kafkago.Writer{
		Addr:       kafkago.TCP(broker),
		Topic:      topic,
		BatchBytes: 50e6,
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// sinkMessage holds a deserialized message read from the sink topic.
type sinkMessage struct {
	Estimate domain.Estimate
	Key      string
	Headers  map[string]string
}
