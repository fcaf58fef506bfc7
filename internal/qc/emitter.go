package qc

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"qcping/internal/model"
)

// Sender delivers one quality record. Delivery is fire-and-forget.
type Sender interface {
	Send(ctx context.Context, q model.Quality) error
}

// Emitter turns a probe result into ping and portstatus records.
type Emitter struct {
	sender Sender
	clock  clock.Clock
	log    *zap.Logger
}

// NewEmitter returns an Emitter writing to sender. A nil clock uses wall time.
func NewEmitter(sender Sender, clk clock.Clock, log *zap.Logger) *Emitter {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{sender: sender, clock: clk, log: log}
}

// Build returns the ping and portstatus records for one stream.
func (e *Emitter) Build(id model.StreamID, res model.ProbeResult) [2]model.Quality {
	window := res.WindowEnd.Sub(res.WindowStart).Seconds()
	zero := 0.0
	lower, upper := zero, zero

	ping := model.Quality{
		WaveformID:       id,
		CreatorID:        model.CreatorID,
		Created:          e.clock.Now().UTC(),
		Start:            res.WindowStart,
		End:              res.WindowEnd,
		Type:             model.QualityType,
		Parameter:        model.ParameterPing,
		Value:            float64(res.LatencyMs),
		LowerUncertainty: &lower,
		UpperUncertainty: &upper,
		WindowLength:     window,
	}
	status := model.Quality{
		WaveformID:   id,
		CreatorID:    model.CreatorID,
		Created:      e.clock.Now().UTC(),
		Start:        res.WindowStart,
		End:          res.WindowEnd,
		Type:         model.QualityType,
		Parameter:    model.ParameterPortStatus,
		Value:        float64(res.PortStatus),
		WindowLength: window,
	}
	return [2]model.Quality{ping, status}
}

// Emit sends both records. A failed send does not prevent the other one; the
// returned error combines every failure.
func (e *Emitter) Emit(ctx context.Context, id model.StreamID, res model.ProbeResult) error {
	var errs error
	for _, q := range e.Build(id, res) {
		e.log.Debug("sending QC message",
			zap.Stringer("stream", id),
			zap.String("parameter", q.Parameter),
			zap.Float64("value", q.Value))
		if err := e.sender.Send(ctx, q); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", id, q.Parameter, err))
		}
	}
	return errs
}
