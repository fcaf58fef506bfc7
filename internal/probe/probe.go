package probe

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"qcping/internal/addrutil"
	"qcping/internal/model"
)

const (
	// Unreachable is the latency reported when a connect fails or times out.
	Unreachable = -1
	// DefaultTimeout bounds a single connect attempt.
	DefaultTimeout = 10 * time.Second
)

// Prober tests one address and returns the connect latency in milliseconds,
// or Unreachable.
type Prober interface {
	Probe(ctx context.Context, addr model.Address) int
}

// TCPProber opens one TCP connection per probe and closes it immediately.
type TCPProber struct {
	timeout time.Duration
	clock   clock.Clock
	log     *zap.Logger
	dialer  *net.Dialer
}

// Option configures a TCPProber.
type Option func(*TCPProber)

func WithTimeout(d time.Duration) Option {
	return func(p *TCPProber) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(p *TCPProber) { p.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *TCPProber) { p.log = l }
}

// NewTCPProber returns a prober with the default 10s timeout.
func NewTCPProber(opts ...Option) *TCPProber {
	p := &TCPProber{
		timeout: DefaultTimeout,
		clock:   clock.New(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.dialer = &net.Dialer{Timeout: p.timeout}
	return p
}

// Timeout returns the connect timeout.
func (p *TCPProber) Timeout() time.Duration {
	return p.timeout
}

// Probe connects to addr. Host names are not resolved; a non-literal IP is
// reported as unreachable.
func (p *TCPProber) Probe(ctx context.Context, addr model.Address) int {
	if !addrutil.IsLiteralIP(addr.IP) {
		p.log.Debug("not a literal ip address", zap.Stringer("addr", addr))
		return Unreachable
	}

	start := p.clock.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			p.log.Debug("not accessible, got timeout", zap.Stringer("addr", addr))
		} else {
			p.log.Debug("not accessible", zap.Stringer("addr", addr), zap.Error(err))
		}
		return Unreachable
	}
	_ = conn.Close()
	elapsed := p.clock.Since(start)

	p.log.Debug("accessible", zap.Stringer("addr", addr), zap.Duration("latency", elapsed))
	ms := int(elapsed / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	return ms
}

// PortStatus encodes reachability into the port sign: +port if reachable, -port if not.
func PortStatus(latencyMs int, port uint16) int {
	if latencyMs >= 0 {
		return int(port)
	}
	return -int(port)
}
