package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 60 * time.Second

// Run fires a cycle every interval until ctx is done. The first cycle starts
// one interval after Run is called. A tick that fires while the previous cycle
// is still running is skipped.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("timer interval must be at least 1s, got %s", interval)
	}

	logger := cronLogger{log: c.log}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	scheduler.Schedule(cron.Every(interval), cron.FuncJob(func() {
		c.RunCycle(ctx)
	}))
	scheduler.Start()
	c.log.Info("timer enabled", zap.Duration("interval", interval), zap.Int("streams", len(c.entries)))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	c.log.Info("timer stopped")
	return ctx.Err()
}

// cronLogger routes cron's logr-style calls to zap. Only skipped ticks are
// interesting at info level.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.log.Sugar().Infow("previous cycle still running, skipping tick", keysAndValues...)
		return
	}
	l.log.Sugar().Debugw("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw("cron "+msg, append(keysAndValues, "error", err)...)
}
