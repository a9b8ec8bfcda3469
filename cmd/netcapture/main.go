// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netcapture attaches the ingress capture to an interface and
// streams translated socket activity as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"grimm.is/netcapture/internal/api"
	"grimm.is/netcapture/internal/config"
	"grimm.is/netcapture/internal/ebpf/metrics"
	"grimm.is/netcapture/internal/ebpf/programs"
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/host"
	"grimm.is/netcapture/internal/logging"
	"grimm.is/netcapture/internal/netmon"
	"grimm.is/netcapture/internal/sender"
)

type flags struct {
	configPath string
	iface      string
	logLevel   string
	check      bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to HCL or YAML config file")
	flag.StringVar(&f.iface, "interface", "", "Interface to capture on (overrides config)")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.BoolVar(&f.check, "check", false, "Check kernel support and exit")
	flag.Parse()

	if err := run(f); err != nil {
		logging.Default().WithError(err).Error("netcapture failed", "kind", errors.GetKind(err).String())
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	logging.SetDefault(logger)

	block, ok := cfg.Module(netmon.ModuleName)
	if !ok || !block.IsEnabled() {
		return config.NewConfigError(netmon.ModuleName, "", "no enabled capture module configured")
	}
	modCfg, err := netmon.ResolveConfig(block.Options())
	if err != nil {
		return err
	}
	if f.iface != "" {
		modCfg.Interface = f.iface
	}

	if f.check {
		return checkHost(modCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k, closeKernel, err := openKernel(modCfg.Namespace)
	if err != nil {
		return err
	}
	defer closeKernel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics()
	if err := m.Register(reg); err != nil {
		return err
	}

	sinks, hub := buildSinks(cfg, os.Stdout, logger)
	if hub != nil {
		defer hub.Close()
	}

	mod := netmon.New(modCfg, netmon.Options{
		Kernel:  k,
		Sender:  sinks,
		Metrics: m,
		Logger:  logger.WithComponent(netmon.ModuleName),
	})
	if err := mod.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(mod.Wait)

	if cfg.Metrics.IsEnabled() {
		opts := api.Options{
			Gatherer: reg,
			Modules:  []api.StatusProvider{mod},
			Logger:   logger.WithComponent("api"),
		}
		if hub != nil {
			opts.Events = hub
		}
		srv := api.NewServer(opts)
		g.Go(func() error {
			err := srv.Start(gctx, cfg.Metrics.Listen)
			if err != nil {
				// Capture cannot outlive its API surface.
				mod.Stop()
			}
			return err
		})
	}

	logger.Info("Capturing", "interface", modCfg.Interface)
	return g.Wait()
}

func loadConfig(f flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// buildSinks assembles the event senders. The hub is nil unless the API
// server that serves it is enabled.
func buildSinks(cfg *config.Config, stdout io.Writer, logger *logging.Logger) (sender.Multi, *sender.Hub) {
	var (
		sinks sender.Multi
		hub   *sender.Hub
	)
	if cfg.Output.StdoutEnabled() {
		sinks = append(sinks, sender.NewJSONSender(stdout))
	}
	if cfg.Output.WebSocketEnabled() {
		if cfg.Metrics.IsEnabled() {
			hub = sender.NewHub(logger.WithComponent("hub"))
			sinks = append(sinks, hub)
		} else {
			logger.Warn("WebSocket output ignored: /events is served by the API server, which is disabled",
				"output.websocket", true, "metrics.enabled", false)
		}
	}
	if len(sinks) == 0 {
		logger.Warn("No event outputs enabled; events are only counted")
	}
	return sinks, hub
}

func setupLogging(lc *config.LoggingConfig) (*logging.Logger, func(), error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, nil, err
	}

	lcfg := logging.DefaultConfig()
	lcfg.Level = level
	lcfg.JSON = lc.JSON

	closeFn := func() {}
	if lc.Syslog != nil && lc.Syslog.Enabled {
		var w io.WriteCloser
		w, err = logging.NewSyslogWriter(*lc.Syslog)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.KindUnavailable, "failed to set up syslog")
		}
		lcfg.Syslog = w
		closeFn = func() { w.Close() }
	}
	return logging.New(lcfg), closeFn, nil
}

func checkHost(cfg netmon.Config) error {
	ring := cfg.RingSize
	if ring == 0 {
		ring = programs.DefaultRingSize
	}

	problems := host.VerifyCaptureSupport(host.Requirements{RingSize: ring})
	for _, p := range problems {
		sev := "warning"
		if p.Fatal {
			sev = "fatal"
		}
		fmt.Printf("%-8s %s\n", sev, p.Error())
	}
	if host.HasFatal(problems) {
		return errors.New(errors.KindUnavailable, "kernel cannot host the capture")
	}
	fmt.Printf("ok       %s can be captured on this host\n", cfg.Interface)
	return nil
}
