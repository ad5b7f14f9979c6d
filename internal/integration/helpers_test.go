//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/csvrows"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/kafka"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("groundwater-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	require.NoError(t, kafka.CreateTopics(broker, 1, topic), "create topic %s", topic)
}

// loadMockData reads the sample upload shared with the pipeline tests.
func loadMockData(t *testing.T) []domain.RawRow {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "data", "mock", "groundwater_sample.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := csvrows.ReadAll(f)
	require.NoError(t, err)
	return rows
}
