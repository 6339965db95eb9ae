package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/synaptecltd/loadsynth"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig selects the brokers and topic datasets are published to.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	ChunkSize int           // samples per message, default 4096
	Timeout   time.Duration // per dataset, default 1 minute
}

// Chunk is the JSON payload of one message. Chunks of a run share its key and are
// written in order; the first chunk carries the manifest.
type Chunk struct {
	Run    string    `json:"run"`
	Offset int       `json:"offset"`
	Total  int       `json:"total"`
	Loads  []string  `json:"loads,omitempty"`
	Values []float64 `json:"values"`
	Labels [][]int   `json:"labels"`
}

// KafkaSink publishes datasets as a sequence of chunk messages keyed by run ID.
type KafkaSink struct {
	writer    messageWriter
	chunkSize int
	timeout   time.Duration
	topic     string
	logger    *slog.Logger
}

// NewKafkaSink returns a sink writing to cfg.Topic on cfg.Brokers.
func NewKafkaSink(cfg KafkaConfig, logger *slog.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required: %w", loadsynth.ErrInvalidConfiguration)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newKafkaSink(cfg, w, logger)
}

func newKafkaSink(cfg KafkaConfig, w messageWriter, logger *slog.Logger) (*KafkaSink, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("kafka chunk size %d must be positive: %w", cfg.ChunkSize, loadsynth.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{
		writer:    w,
		chunkSize: cfg.ChunkSize,
		timeout:   cfg.Timeout,
		topic:     cfg.Topic,
		logger:    logger.With(slog.String("component", "kafka-sink")),
	}, nil
}

// PutDataset implements loadsynth.DatasetWriter.
func (s *KafkaSink) PutDataset(ds loadsynth.Dataset) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	values := ds.Values()
	labels := ds.TimeMajorLabels()
	key := []byte(ds.ID())

	var msgs []kafka.Message
	for off := 0; off < len(values) || off == 0; off += s.chunkSize {
		end := min(off+s.chunkSize, len(values))
		c := Chunk{
			Run:    ds.ID(),
			Offset: off,
			Total:  len(values),
			Values: values[off:end],
			Labels: labels[min(off, len(labels)):min(end, len(labels))],
		}
		if off == 0 {
			c.Loads = ds.Manifest()
		}
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode chunk at sample %d: %w", off, err)
		}
		msgs = append(msgs, kafka.Message{Key: key, Value: b, Time: time.Now()})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		s.logger.Error("kafka_write_err", "run", ds.ID(), "topic", s.topic, "err", err)
		return fmt.Errorf("kafka write: %w", err)
	}
	s.logger.Info("kafka_write_ok", "run", ds.ID(), "topic", s.topic, "messages", len(msgs))
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
