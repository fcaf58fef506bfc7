package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"qcping/internal/addrbook"
	"qcping/internal/addrutil"
	"qcping/internal/agent"
	"qcping/internal/catalog"
	"qcping/internal/collector"
	"qcping/internal/config"
	"qcping/internal/inventory"
	"qcping/internal/logger"
	"qcping/internal/metrics"
	"qcping/internal/model"
	"qcping/internal/probe"
	"qcping/internal/qc"
	"qcping/internal/status"
	"qcping/internal/store"
	"qcping/internal/telemetry"
	"qcping/internal/transport"
)

const usage = `qcping - station reachability monitor emitting ping/portstatus quality records

Usage:
  qcping run --config <path> [--input|-i <address file>] [--timer <seconds>]
  qcping catalog --config <path> [--input|-i <address file>] [--out <snapshot.yaml>] [--diff <snapshot.yaml>]
  qcping config [--config <path>] [--input|-i <address file>] [--timer <seconds>] [--out <path>]
  qcping probe --ip <addr> --port <port> [--timeout 10s]
  qcping probe --addr <ip:port> [--timeout 10s]
  qcping stats --csv <file> [--window 1h] [--stream NET.STA.LOC.CHA]
  qcping collect --listen <addr> --out <file>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "run":
		handleRun(os.Args[2:])
	case "catalog":
		handleCatalog(os.Args[2:])
	case "config":
		handleConfig(os.Args[2:])
	case "probe":
		handleProbe(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "collect":
		handleCollect(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// monitorFlags are shared by run and catalog. Command line values win over
// the config file.
type monitorFlags struct {
	configPath string
	input      string
	timer      int
}

func (f *monitorFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "path to YAML config")
	fs.StringVar(&f.input, "input", "", "address file")
	fs.StringVar(&f.input, "i", "", "address file (shorthand)")
	fs.IntVar(&f.timer, "timer", 0, "poll interval in seconds")
}

func (f *monitorFlags) load() config.Config {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fatal(err)
	}
	f.override(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}
	return cfg
}

func (f *monitorFlags) override(cfg *config.Config) {
	if f.input != "" {
		cfg.Input = f.input
	}
	if f.timer != 0 {
		cfg.TimerSec = f.timer
	}
}

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var flags monitorFlags
	flags.register(fs)
	_ = fs.Parse(args)

	cfg := flags.load()
	log := newLogger(cfg.Log)
	defer func() { _ = log.Sync() }()

	c, err := buildCatalog(cfg, log)
	if err != nil {
		fatal(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tm := telemetry.New(reg)

	sinks, err := transport.Build(cfg.Sinks, cfg.Messaging, log)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Warn("close sinks", zap.Error(err))
		}
	}()

	prober := probe.NewTCPProber(
		probe.WithTimeout(time.Duration(cfg.Probe.TimeoutSec)*time.Second),
		probe.WithLogger(log),
	)
	emitter := qc.NewEmitter(sinks, nil, log)
	co := agent.NewCoordinator(c, prober, emitter, agent.Options{
		Workers: cfg.Probe.Workers,
		Log:     log,
		Metrics: tm,
	})

	ctx, cancel := signalContext()
	defer cancel()

	checkCtx, checkCancel := context.WithTimeout(ctx, prober.Timeout())
	if err := sinks.Check(checkCtx); err != nil {
		log.Warn("sink not ready", zap.Error(err))
	}
	checkCancel()

	log.Info("monitor ready",
		zap.Int("streams", co.Streams()),
		zap.Int("sinks", sinks.Len()),
		zap.Duration("probe_timeout", prober.Timeout()),
		zap.Int("workers", cfg.Probe.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return co.Run(gctx, time.Duration(cfg.TimerSec)*time.Second)
	})
	if cfg.Status.Listen != "" {
		snap := store.FromEntries(c.Snapshot(), time.Now())
		srv := status.NewServer(cfg.Status.Listen, snap, reg, log)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
	log.Info("shutting down")
}

func handleCatalog(args []string) {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	var flags monitorFlags
	flags.register(fs)
	out := fs.String("out", "", "write stream table snapshot (YAML)")
	diff := fs.String("diff", "", "compare against a previous snapshot (YAML)")
	_ = fs.Parse(args)

	cfg := flags.load()
	log := newLogger(cfg.Log)
	defer func() { _ = log.Sync() }()

	c, err := buildCatalog(cfg, log)
	if err != nil {
		fatal(err)
	}

	entries := c.Snapshot()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tCONFIGURED\tADDRESS")
	for _, e := range entries {
		addr := "-"
		if e.Address != nil {
			addr = e.Address.String()
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", e.ID, e.Configured, addr)
	}
	if err := tw.Flush(); err != nil {
		fatal(err)
	}

	snap := store.FromEntries(entries, time.Now())
	if *diff != "" {
		prev, err := store.LoadSnapshot(*diff)
		if err != nil {
			fatal(err)
		}
		changes := store.Diff(prev, snap)
		fmt.Fprintf(os.Stdout, "\n%d change(s) since %s\n", len(changes), prev.GeneratedAt.Format(time.RFC3339))
		for _, ch := range changes {
			fmt.Fprintf(os.Stdout, "%-11s %s %s -> %s\n", ch.Kind, ch.ID, orDash(ch.From), orDash(ch.To))
		}
	}

	if *out != "" {
		if err := store.SaveSnapshot(*out, snap); err != nil {
			fatal(err)
		}
	}
}

// handleConfig prints or writes the effective configuration after defaults,
// path resolution and command line overrides.
func handleConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var flags monitorFlags
	flags.register(fs)
	out := fs.String("out", "", "write the effective config to this path")
	_ = fs.Parse(args)

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		fatal(err)
	}
	flags.override(&cfg)

	if *out != "" {
		fatal(config.Save(*out, cfg))
		return
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		fatal(err)
	}
	_, _ = os.Stdout.Write(data)
}

func handleProbe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	ip := fs.String("ip", "", "IP address")
	portStr := fs.String("port", "", "TCP port")
	addrStr := fs.String("addr", "", "ip:port")
	timeout := fs.Duration("timeout", probe.DefaultTimeout, "connect timeout")
	_ = fs.Parse(args)

	var addr model.Address
	switch {
	case *addrStr != "":
		a, ok := addrutil.SplitAddr(*addrStr)
		if !ok {
			fatal(fmt.Errorf("invalid address %q", *addrStr))
		}
		addr = a
	case *ip != "" && *portStr != "":
		port, err := addrutil.ParsePort(*portStr)
		if err != nil {
			fatal(err)
		}
		addr = model.Address{IP: *ip, Port: port}
	default:
		fatal(errors.New("--addr or --ip and --port are required"))
	}

	ctx, cancel := signalContext()
	defer cancel()

	ms := probe.NewTCPProber(probe.WithTimeout(*timeout)).Probe(ctx, addr)
	fmt.Fprintf(os.Stdout, "address=%s ping=%d portstatus=%d\n", addr, ms, probe.PortStatus(ms, addr.Port))
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	csvPath := fs.String("csv", "", "quality CSV path")
	window := fs.Duration("window", time.Hour, "time window")
	streamFilter := fs.String("stream", "", "only this stream (NET.STA.LOC.CHA)")
	_ = fs.Parse(args)

	var only *model.StreamID
	if *streamFilter != "" {
		id, err := model.ParseStreamID(*streamFilter)
		if err != nil {
			fatal(err)
		}
		only = &id
	}

	path := *csvPath
	if path == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fatal(err)
		}
		path = csvSinkPath(cfg)
	}
	if path == "" {
		fatal(errors.New("csv path required"))
	}

	items, err := metrics.ReadCSV(path)
	if err != nil {
		fatal(err)
	}

	cutoff := time.Now().UTC().Add(-*window)
	summaries := metrics.Summarize(items, cutoff)
	if only != nil {
		filtered := summaries[:0]
		for _, sum := range summaries {
			if sum.Stream == *only {
				filtered = append(filtered, sum)
			}
		}
		summaries = filtered
	}
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stdout, "no samples in window")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tPROBES\tAVAIL\tAVG\tP95\tMIN\tMAX\tPORTSTATUS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.2fms\t%.2fms\t%.2fms\t%.2fms\t%d\n",
			s.Stream, s.Probes, s.Availability*100, s.AvgPingMs, s.P95PingMs, s.MinPingMs, s.MaxPingMs, s.LastPortStatus)
	}
	if err := tw.Flush(); err != nil {
		fatal(err)
	}
}

func handleCollect(args []string) {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	listen := fs.String("listen", ":8090", "listen address")
	out := fs.String("out", "", "CSV output path")
	level := fs.String("log-level", config.DefaultLogLevel, "log level")
	_ = fs.Parse(args)

	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	log := newLogger(config.LogConfig{Level: *level, Encoding: config.DefaultLogEncoding})
	defer func() { _ = log.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	srv := collector.NewServer(*listen, *out, log)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
	log.Info("collector stopped", zap.Int("stored", srv.Stored()))
}

// buildCatalog reads the inventory and bindings, then applies the address file.
func buildCatalog(cfg config.Config, log *zap.Logger) (*catalog.Catalog, error) {
	doc, err := inventory.LoadFile(cfg.Inventory)
	if err != nil {
		return nil, err
	}
	bindings := doc
	if cfg.Bindings != "" && cfg.Bindings != cfg.Inventory {
		bindings, err = inventory.LoadFile(cfg.Bindings)
		if err != nil {
			return nil, err
		}
	}

	c, err := catalog.Build(doc.Inventory, bindings.Config, catalog.Options{
		Module:      cfg.ConfigModule,
		Application: cfg.Application,
		Log:         log,
	})
	if err != nil {
		return nil, err
	}

	if err := addrbook.Load(cfg.Input, c, log); err != nil {
		return nil, err
	}
	return c, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func csvSinkPath(cfg config.Config) string {
	for _, s := range cfg.Sinks {
		if s.Type == config.SinkCSV {
			return s.Path
		}
	}
	return ""
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	log, err := logger.New(cfg)
	if err != nil {
		fatal(err)
	}
	return log
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		var cfg config.Config
		config.ApplyDefaults(&cfg)
		return cfg, nil
	}
	return config.Load(path)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
