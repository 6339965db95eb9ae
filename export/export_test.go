package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptecltd/loadsynth"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testDataset() *loadsynth.AggregateDataset {
	return &loadsynth.AggregateDataset{
		RunID:  uuid.MustParse("6a1f0c5e-3b52-4c1d-9a57-0f3e2b7c8d91"),
		Loads:  []string{"signal_1", "signal_2"},
		Summed: []float64{0, 1.5, 3, 4.5, 6},
		Labels: [][]int{{0, 1, 1, 1, 0}, {0, 0, 1, 1, 1}},
	}
}

type fakePointWriter struct {
	batches [][]*write.Point
	err     error
}

func (f *fakePointWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, point)
	return nil
}

func TestInfluxSink_PutDataset(t *testing.T) {
	fake := &fakePointWriter{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink, err := newInfluxSink(InfluxConfig{Bucket: "nilm", SamplingRate: 1000, Start: start, BatchSize: 2}, fake, discard)
	require.NoError(t, err)

	ds := testDataset()
	require.NoError(t, sink.PutDataset(ds))

	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 2)
	assert.Len(t, fake.batches[2], 1)

	var points []*write.Point
	for _, b := range fake.batches {
		points = append(points, b...)
	}
	require.Len(t, points, 5)

	wantActive := []int64{0, 1, 2, 2, 1}
	for i, p := range points {
		assert.Equal(t, "loadsynth", p.Name())
		assert.Equal(t, start.Add(time.Duration(i)*time.Millisecond), p.Time())

		require.Len(t, p.TagList(), 1)
		assert.Equal(t, "run", p.TagList()[0].Key)
		assert.Equal(t, ds.ID(), p.TagList()[0].Value)

		fields := make(map[string]interface{})
		for _, f := range p.FieldList() {
			fields[f.Key] = f.Value
		}
		assert.Equal(t, ds.Summed[i], fields["current"])
		assert.Equal(t, wantActive[i], fields["active"])
	}
}

func TestInfluxSink_TimestampsDoNotDrift(t *testing.T) {
	fake := &fakePointWriter{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink, err := newInfluxSink(InfluxConfig{SamplingRate: 1350, Start: start}, fake, discard)
	require.NoError(t, err)

	n := 2700
	ds := &loadsynth.AggregateDataset{
		RunID:  uuid.New(),
		Summed: make([]float64, n),
		Labels: [][]int{make([]int, n)},
	}
	require.NoError(t, sink.PutDataset(ds))
	require.Len(t, fake.batches, 1)

	points := fake.batches[0]
	require.Len(t, points, n)
	assert.Equal(t, start, points[0].Time())
	// sample Fs lands exactly one second after the start
	assert.Equal(t, start.Add(time.Second), points[1350].Time())
	assert.WithinDuration(t, start.Add(2*time.Second), points[n-1].Time(), time.Second/1350)
	for i := 1; i < n; i++ {
		assert.True(t, points[i].Time().After(points[i-1].Time()), "sample %d", i)
	}
}

func TestInfluxSink_WriteError(t *testing.T) {
	writeErr := errors.New("unauthorized")
	sink, err := newInfluxSink(InfluxConfig{SamplingRate: 1000}, &fakePointWriter{err: writeErr}, discard)
	require.NoError(t, err)
	assert.ErrorIs(t, sink.PutDataset(testDataset()), writeErr)
}

func TestInfluxSink_Config(t *testing.T) {
	_, err := NewInfluxSink(InfluxConfig{Bucket: "nilm", SamplingRate: 1000}, discard)
	assert.ErrorIs(t, err, loadsynth.ErrInvalidConfiguration)

	_, err = newInfluxSink(InfluxConfig{}, &fakePointWriter{}, discard)
	assert.ErrorIs(t, err, loadsynth.ErrInvalidConfiguration)

	_, err = newInfluxSink(InfluxConfig{SamplingRate: 10, BatchSize: -1}, &fakePointWriter{}, discard)
	assert.ErrorIs(t, err, loadsynth.ErrInvalidConfiguration)

	sink, err := NewInfluxSink(InfluxConfig{URL: "http://localhost:8086", Bucket: "nilm", SamplingRate: 1000}, discard)
	require.NoError(t, err)
	assert.Equal(t, "loadsynth", sink.cfg.Measurement)
	assert.NoError(t, sink.Close())
}

type fakeMessageWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeMessageWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeMessageWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_PutDataset(t *testing.T) {
	fake := &fakeMessageWriter{}
	sink, err := newKafkaSink(KafkaConfig{Topic: "datasets", ChunkSize: 2}, fake, discard)
	require.NoError(t, err)

	ds := testDataset()
	require.NoError(t, sink.PutDataset(ds))
	require.Len(t, fake.msgs, 3)

	var values []float64
	var labels [][]int
	for i, m := range fake.msgs {
		assert.Equal(t, []byte(ds.ID()), m.Key)

		var c Chunk
		require.NoError(t, json.Unmarshal(m.Value, &c))
		assert.Equal(t, ds.ID(), c.Run)
		assert.Equal(t, 2*i, c.Offset)
		assert.Equal(t, 5, c.Total)
		if i == 0 {
			assert.Equal(t, ds.Loads, c.Loads)
		} else {
			assert.Nil(t, c.Loads)
		}
		values = append(values, c.Values...)
		labels = append(labels, c.Labels...)
	}
	assert.Equal(t, ds.Summed, values)
	assert.Equal(t, ds.TimeMajorLabels(), labels)

	require.NoError(t, sink.Close())
	assert.True(t, fake.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	writeErr := errors.New("leader not available")
	sink, err := newKafkaSink(KafkaConfig{Topic: "datasets"}, &fakeMessageWriter{err: writeErr}, discard)
	require.NoError(t, err)
	assert.ErrorIs(t, sink.PutDataset(testDataset()), writeErr)
}

func TestKafkaSink_Config(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Topic: "datasets"}, discard)
	assert.ErrorIs(t, err, loadsynth.ErrInvalidConfiguration)

	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}}, discard)
	assert.ErrorIs(t, err, loadsynth.ErrInvalidConfiguration)

	_, err = newKafkaSink(KafkaConfig{Topic: "datasets", ChunkSize: -4}, &fakeMessageWriter{}, discard)
	assert.ErrorIs(t, err, loadsynth.ErrInvalidConfiguration)

	sink, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "datasets"}, discard)
	require.NoError(t, err)
	assert.Equal(t, 4096, sink.chunkSize)
	assert.NoError(t, sink.Close())
}

func TestSinksFanOut(t *testing.T) {
	points := &fakePointWriter{}
	msgs := &fakeMessageWriter{}
	influx, err := newInfluxSink(InfluxConfig{SamplingRate: 1000}, points, discard)
	require.NoError(t, err)
	kafkaSink, err := newKafkaSink(KafkaConfig{Topic: "datasets"}, msgs, discard)
	require.NoError(t, err)

	store := loadsynth.NewMemoryStore()
	writers := loadsynth.DatasetWriters{store, influx, kafkaSink}
	require.NoError(t, writers.PutDataset(testDataset()))

	assert.Len(t, store.Datasets(), 1)
	assert.Len(t, points.batches, 1)
	assert.Len(t, msgs.msgs, 1)
}
