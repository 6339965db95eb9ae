// Package export streams aggregate datasets to external systems for monitoring and
// downstream consumption.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/synaptecltd/loadsynth"
)

// pointWriter is the part of the InfluxDB blocking write API the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxConfig holds the InfluxDB v2 connection and layout of exported points.
type InfluxConfig struct {
	URL          string
	Token        string
	Org          string
	Bucket       string
	Measurement  string        // default "loadsynth"
	SamplingRate int           // spacing of sample timestamps
	Start        time.Time     // timestamp of sample 0, default now
	BatchSize    int           // points per write, default 5000
	Timeout      time.Duration // per dataset, default 1 minute
}

func (c InfluxConfig) withDefaults() InfluxConfig {
	if c.Measurement == "" {
		c.Measurement = "loadsynth"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 5000
	}
	if c.Timeout == 0 {
		c.Timeout = time.Minute
	}
	return c
}

// InfluxSink writes every sample of a dataset as a point tagged with the run ID.
// Fields are the summed current and the number of active loads.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	cfg    InfluxConfig
	logger *slog.Logger
}

// NewInfluxSink connects to InfluxDB and returns a sink writing to cfg.Bucket.
func NewInfluxSink(cfg InfluxConfig, logger *slog.Logger) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influxdb url and bucket are required: %w", loadsynth.ErrInvalidConfiguration)
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s, err := newInfluxSink(cfg, client.WriteAPIBlocking(cfg.Org, cfg.Bucket), logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

func newInfluxSink(cfg InfluxConfig, w pointWriter, logger *slog.Logger) (*InfluxSink, error) {
	cfg = cfg.withDefaults()
	if cfg.SamplingRate < 1 {
		return nil, fmt.Errorf("influxdb sampling rate %d must be positive: %w", cfg.SamplingRate, loadsynth.ErrInvalidConfiguration)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("influxdb batch size %d must be positive: %w", cfg.BatchSize, loadsynth.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InfluxSink{
		writer: w,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "influx-sink")),
	}, nil
}

// PutDataset implements loadsynth.DatasetWriter.
func (s *InfluxSink) PutDataset(ds loadsynth.Dataset) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	start := s.cfg.Start
	if start.IsZero() {
		start = time.Now()
	}
	fs := float64(s.cfg.SamplingRate)

	values := ds.Values()
	labels := ds.TimeMajorLabels()
	tags := map[string]string{"run": ds.ID()}

	batch := make([]*write.Point, 0, min(s.cfg.BatchSize, len(values)))
	written := 0
	for i, v := range values {
		active := 0
		if i < len(labels) {
			for _, l := range labels[i] {
				active += l
			}
		}
		batch = append(batch, write.NewPoint(
			s.cfg.Measurement,
			tags,
			map[string]interface{}{
				"current": v,
				"active":  active,
			},
			start.Add(time.Duration(float64(i)*float64(time.Second)/fs)),
		))
		if len(batch) == s.cfg.BatchSize || i == len(values)-1 {
			if err := s.writer.WritePoint(ctx, batch...); err != nil {
				s.logger.Error("influx_write_err", "run", ds.ID(), "offset", written, "err", err)
				return fmt.Errorf("influxdb write at sample %d: %w", written, err)
			}
			written += len(batch)
			batch = make([]*write.Point, 0, s.cfg.BatchSize)
		}
	}

	s.logger.Info("influx_write_ok", "run", ds.ID(), "points", written,
		"bucket", s.cfg.Bucket, "measurement", s.cfg.Measurement)
	return nil
}

// Close releases the client connection.
func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
