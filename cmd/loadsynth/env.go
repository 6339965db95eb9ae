package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/synaptecltd/loadsynth"
	"github.com/synaptecltd/loadsynth/export"
)

// sinkEnv holds the optional export settings read from the environment.
type sinkEnv struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	InfluxBatch  int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaChunk   int

	Timeout time.Duration
}

func loadEnv() sinkEnv {
	// Load .env file if it exists
	_ = godotenv.Load()

	return sinkEnv{
		InfluxURL:    getEnv("INFLUXDB_URL", ""),
		InfluxToken:  getEnv("INFLUXDB_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUXDB_ORG", ""),
		InfluxBucket: getEnv("INFLUXDB_BUCKET", "loadsynth"),
		InfluxBatch:  getEnvInt("INFLUXDB_BATCH_SIZE", 5000),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "loadsynth.datasets"),
		KafkaChunk:   getEnvInt("KAFKA_CHUNK_SIZE", 4096),

		Timeout: getEnvDuration("EXPORT_TIMEOUT", time.Minute),
	}
}

// closer is implemented by sinks holding a connection.
type closer interface {
	Close() error
}

// sinks returns the dataset writers enabled by the environment, after the store.
func (e sinkEnv) sinks(cfg loadsynth.Config, store loadsynth.DatasetWriter, lg *slog.Logger) (loadsynth.DatasetWriters, []closer, error) {
	writers := loadsynth.DatasetWriters{store}
	var closers []closer

	if e.InfluxURL != "" {
		s, err := export.NewInfluxSink(export.InfluxConfig{
			URL:          e.InfluxURL,
			Token:        e.InfluxToken,
			Org:          e.InfluxOrg,
			Bucket:       e.InfluxBucket,
			SamplingRate: cfg.SamplingRate,
			BatchSize:    e.InfluxBatch,
			Timeout:      e.Timeout,
		}, lg)
		if err != nil {
			return nil, closers, err
		}
		writers = append(writers, s)
		closers = append(closers, s)
		lg.Info("influx export enabled", "url", e.InfluxURL, "bucket", e.InfluxBucket)
	}

	if len(e.KafkaBrokers) > 0 {
		s, err := export.NewKafkaSink(export.KafkaConfig{
			Brokers:   e.KafkaBrokers,
			Topic:     e.KafkaTopic,
			ChunkSize: e.KafkaChunk,
			Timeout:   e.Timeout,
		}, lg)
		if err != nil {
			return nil, closers, err
		}
		writers = append(writers, s)
		closers = append(closers, s)
		lg.Info("kafka export enabled", "brokers", e.KafkaBrokers, "topic", e.KafkaTopic)
	}

	return writers, closers, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
