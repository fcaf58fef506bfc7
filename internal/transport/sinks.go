package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"qcping/internal/api"
	"qcping/internal/config"
	"qcping/internal/metrics"
	"qcping/internal/model"
)

// LogSink writes each record as a structured log line.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, q model.Quality) error {
	fields := []zap.Field{
		zap.Stringer("stream", q.WaveformID),
		zap.String("parameter", q.Parameter),
		zap.Float64("value", q.Value),
		zap.Time("start", q.Start),
		zap.Time("end", q.End),
		zap.Float64("window_length", q.WindowLength),
	}
	s.log.Info("quality", fields...)
	return nil
}

// CSVSink appends records to a CSV file.
type CSVSink struct {
	path string
	// mu serializes appends so rows never interleave.
	mu sync.Mutex
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Send(_ context.Context, q model.Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metrics.AppendCSV(s.path, []model.Quality{q})
}

// HTTPSink posts records to a collector.
type HTTPSink struct {
	client *api.Client
	msg    config.MessagingConfig
}

func NewHTTPSink(client *api.Client, msg config.MessagingConfig) *HTTPSink {
	return &HTTPSink{client: client, msg: msg}
}

func (s *HTTPSink) Send(ctx context.Context, q model.Quality) error {
	if _, err := s.client.SubmitQuality(ctx, envelope(s.msg, q)); err != nil {
		return fmt.Errorf("http sink: %w", err)
	}
	return nil
}

// Check asks the collector for its health status.
func (s *HTTPSink) Check(ctx context.Context) error {
	resp, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("http sink: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("http sink: collector status %q", resp.Status)
	}
	return nil
}

// Publisher is the part of a redis client the redis sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes msgpack-encoded envelopes on a pub/sub channel.
type RedisSink struct {
	pub     Publisher
	channel string
	msg     config.MessagingConfig
}

func NewRedisSink(pub Publisher, channel string, msg config.MessagingConfig) *RedisSink {
	return &RedisSink{pub: pub, channel: channel, msg: msg}
}

func (s *RedisSink) Send(ctx context.Context, q model.Quality) error {
	payload, err := msgpack.Marshal(envelope(s.msg, q))
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis sink: %w", err)
	}
	return nil
}

// Close closes the underlying client when it holds a connection pool.
func (s *RedisSink) Close() error {
	if c, ok := s.pub.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
