// Package transport delivers quality records to the configured sinks.
package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"qcping/internal/api"
	"qcping/internal/config"
	"qcping/internal/model"
)

// Sink accepts one quality record at a time.
type Sink interface {
	Send(ctx context.Context, q model.Quality) error
}

// Multi fans each record out to every sink. A failing sink does not stop
// delivery to the others.
type Multi struct {
	sinks []Sink
	log   *zap.Logger
}

func NewMulti(log *zap.Logger, sinks ...Sink) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	return &Multi{sinks: sinks, log: log}
}

func (m *Multi) Send(ctx context.Context, q model.Quality) error {
	var errs error
	for _, s := range m.sinks {
		if err := s.Send(ctx, q); err != nil {
			m.log.Warn("sink failed",
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.Stringer("stream", q.WaveformID),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close closes every sink that holds a connection.
func (m *Multi) Close() error {
	var errs error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			errs = multierr.Append(errs, c.Close())
		}
	}
	return errs
}

// Checker is implemented by sinks that can verify their destination before
// the first cycle.
type Checker interface {
	Check(ctx context.Context) error
}

// Check verifies every sink that supports it and returns the combined failures.
func (m *Multi) Check(ctx context.Context) error {
	var errs error
	for _, s := range m.sinks {
		if c, ok := s.(Checker); ok {
			errs = multierr.Append(errs, c.Check(ctx))
		}
	}
	return errs
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Build creates the sinks named in cfgs. With no sinks configured records go
// to the log.
func Build(cfgs []config.SinkConfig, msg config.MessagingConfig, log *zap.Logger) (*Multi, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfgs) == 0 {
		return NewMulti(log, NewLogSink(log)), nil
	}

	sinks := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		switch c.Type {
		case config.SinkLog:
			sinks = append(sinks, NewLogSink(log))
		case config.SinkCSV:
			sinks = append(sinks, NewCSVSink(c.Path))
		case config.SinkHTTP:
			sinks = append(sinks, NewHTTPSink(api.NewClientWithTimeout(c.URL, 5*time.Second), msg))
		case config.SinkRedis:
			client := redis.NewClient(&redis.Options{
				Addr:     c.Addr,
				Password: c.Password,
				DB:       c.DB,
			})
			channel := c.Channel
			if channel == "" {
				channel = msg.Group
			}
			sinks = append(sinks, NewRedisSink(client, channel, msg))
		default:
			return nil, fmt.Errorf("%w: sinks[%d]: unknown sink type %q", config.ErrConfiguration, i, c.Type)
		}
		log.Info("sink enabled", zap.String("type", c.Type))
	}
	return NewMulti(log, sinks...), nil
}

func envelope(msg config.MessagingConfig, q model.Quality) api.QualityRequest {
	return api.QualityRequest{
		MessageID: uuid.NewString(),
		Username:  msg.Username,
		Group:     msg.Group,
		Records:   []model.Quality{q},
	}
}
