package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	"github.com/couchcryptid/station-quality-service/internal/quality"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testReport() *pipeline.Report {
	rec := quality.Recommendation{Level: quality.LevelPartial, Label: "Partially Adequate"}
	return &pipeline.Report{
		ID:          "rep-1",
		GeneratedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Source:      "a001.csv",
		ContentHash: "abc123",
		Metadata:    domain.NewMetadata(),
		Quality: quality.Summary{
			Overall: quality.OverallQualityIndex{
				Index:          domain.Computed(72.5),
				Recommendation: &rec,
			},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testReport())
	require.NoError(t, err)

	assert.Equal(t, []byte("abc123"), msg.Key)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "report_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("rep-1"), msg.Headers[0].Value)
	assert.Equal(t, "source", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[2].Value)
	assert.Equal(t, []byte("partially_adequate"), msg.Headers[3].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "rep-1", body["id"])
	overall := body["quality"].(map[string]any)["overall"].(map[string]any)
	assert.Equal(t, map[string]any{"status": "computed", "value": 72.5}, overall["overall_quality_index"])
}

func TestSerializeToMessage_NoRecommendation(t *testing.T) {
	r := testReport()
	r.Quality.Overall = quality.OverallQualityIndex{Index: domain.Insufficient[float64](1, 0)}

	msg, err := serializeToMessage(r)
	require.NoError(t, err)
	assert.Len(t, msg.Headers, 3)
}

func TestWriter_Publish(t *testing.T) {
	fake := &fakeWriter{}
	w := &Writer{writer: fake, logger: slog.Default()}

	require.NoError(t, w.Publish(context.Background(), testReport()))
	require.Len(t, fake.msgs, 1)
	assert.Equal(t, []byte("abc123"), fake.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, fake.closed)
}

func TestWriter_PublishError(t *testing.T) {
	fake := &fakeWriter{err: errors.New("leader not available")}
	w := &Writer{writer: fake, logger: slog.Default()}

	err := w.Publish(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rep-1")
	assert.ErrorIs(t, err, fake.err)
}
