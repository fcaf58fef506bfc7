package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qcping/internal/config"
)

// New builds the process logger. Output defaults to stderr so tables printed
// by the catalog and stats commands stay alone on stdout.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:       cfg.Development,
		Encoding:          cfg.Encoding,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     encoderConfig(cfg.Encoding),
		OutputPaths:       []string{output(cfg.Output)},
		ErrorOutputPaths:  []string{"stderr"},
		Sampling:          sampling(cfg),
	}
	if zc.Encoding == "" {
		zc.Encoding = config.DefaultLogEncoding
		zc.EncoderConfig = encoderConfig(zc.Encoding)
	}
	return zc.Build()
}

func parseLevel(s string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// encoderConfig uses ISO8601 timestamps in both encodings.
func encoderConfig(encoding string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	if encoding == "console" || encoding == "" {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

func output(path string) string {
	if path == "" {
		return config.DefaultLogOutput
	}
	return path
}

func sampling(cfg config.LogConfig) *zap.SamplingConfig {
	if !cfg.Sampling {
		return nil
	}
	sc := &zap.SamplingConfig{
		Initial:    cfg.SampleInitial,
		Thereafter: cfg.SampleThereafter,
	}
	if sc.Initial <= 0 {
		sc.Initial = config.DefaultSampleInitial
	}
	if sc.Thereafter <= 0 {
		sc.Thereafter = config.DefaultSampleAfter
	}
	return sc
}
