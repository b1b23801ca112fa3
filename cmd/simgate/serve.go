package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/simgate-dev/simgate/internal/config"
	"github.com/simgate-dev/simgate/internal/errors"
	"github.com/simgate-dev/simgate/pkg/middleware"
	"github.com/simgate-dev/simgate/pkg/server"
	"github.com/simgate-dev/simgate/pkg/session"
	"github.com/simgate-dev/simgate/pkg/simulation"
)

type serveOptions struct {
	dir       string
	file      string
	address   string
	mode      string
	capacity  int
	name      string
	logLevel  string
	logFormat string
	noS3      bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket gateway",
		Long: `Start the HTTP server. Clients connect on /ws; /healthz, /status and
the metrics path are served alongside.

Settings come from simgate.json in --dir (or --config). Flags override
the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}

			srv, err := buildServer(cfg, logger, !opts.noS3)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			info("simgate %s listening on %s (%s mode, capacity %d)", version, cfg.Address, cfg.Mode, cfg.Capacity)
			return srv.Run(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.dir, "dir", "d", ".", "Directory containing simgate.json")
	f.StringVarP(&opts.file, "config", "c", "", "Path to a configuration file (overrides --dir)")
	f.StringVarP(&opts.address, "addr", "a", "", "Listen address")
	f.StringVarP(&opts.mode, "mode", "m", "", `Behavior mode: "observe" or "multiuser"`)
	f.IntVar(&opts.capacity, "capacity", 0, "Number of simultaneous simulations in multiuser mode")
	f.StringVar(&opts.name, "name", "", "Simulator name reported to queued clients")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	f.BoolVar(&opts.noS3, "no-s3", false, "Disable s3:// sources")

	return cmd
}

// loadConfig reads the configuration file and applies flags the user set.
func loadConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.file != "" {
		cfg, err = config.LoadFile(opts.file)
	} else {
		cfg, err = config.LoadOrDefault(opts.dir)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Address = opts.address
	}
	if flags.Changed("mode") {
		cfg.Mode = strings.ToLower(opts.mode)
	}
	if flags.Changed("capacity") {
		cfg.Capacity = opts.capacity
	}
	if flags.Changed("name") {
		cfg.SimulatorName = opts.name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Newf(errors.CategoryCLI, "invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, errors.Newf(errors.CategoryCLI, "invalid log format %q", format).
			WithSuggestion(`Use "text" or "json"`)
	}
}

// buildServer wires the registry, simulation provider, controller,
// middleware and metrics described by cfg.
func buildServer(cfg *config.Config, logger *slog.Logger, enableS3 bool) (*server.Server, error) {
	mode, ok := session.ParseBehaviorMode(cfg.Mode)
	if !ok {
		return nil, errors.New("E103").WithDetail(fmt.Sprintf("Got mode %q", cfg.Mode))
	}
	serverConfig := session.NewServerConfig(mode, cfg.Capacity, cfg.SimulatorName)
	registry := session.NewRegistry(serverConfig, logger)

	fetcherOpts := []simulation.FetcherOption{
		simulation.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
	}
	if cfg.Sources.AllowFile {
		fetcherOpts = append(fetcherOpts, simulation.WithFileRoot(cfg.Sources.FileRoot))
	}
	if enableS3 {
		fetcherOpts = append(fetcherOpts, simulation.WithObjectGetter(simulation.NewS3Client(cfg.Sources.S3Region)))
	}
	fetcher := simulation.NewFetcher(fetcherOpts...)

	newService := func() simulation.Service {
		return simulation.NewLocal(cfg.SimulatorName, cfg.Capacity, fetcher, simulation.WithLogger(logger))
	}
	var provider *simulation.Provider
	if mode == session.Multiuser {
		provider = simulation.NewPerConnectionProvider(newService, logger)
	} else {
		provider = simulation.NewSharedProvider(newService())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := server.NewMetricsCollector()
	mws := []server.Middleware{
		middleware.OpenTelemetry(middleware.WithTracerName(cfg.Tracing.TracerName)),
	}
	if cfg.Metrics.Enabled {
		mws = append(mws, middleware.Prometheus(middleware.WithRegistry(reg)))
	}

	ctrl := server.NewController(registry, provider,
		server.WithVersion(version),
		server.WithFetcher(fetcher),
		server.WithMetrics(collector),
		server.WithMiddleware(mws...),
		server.WithLogger(logger),
	)

	srvConfig := server.DefaultConfig()
	srvConfig.Address = cfg.Address
	srvConfig.MaxMessageSize = cfg.Session.MaxMessageSize
	srvConfig.ReadTimeout = cfg.ReadTimeout()
	srvConfig.WriteTimeout = cfg.WriteTimeout()
	srvConfig.SendQueue = cfg.Session.SendQueue
	srvConfig.MessagesPerSecond = cfg.Session.MessagesPerSecond
	srvConfig.Burst = cfg.Session.Burst
	srvConfig.Gatherer = reg
	srvConfig.MetricsPath = ""
	if cfg.Metrics.Enabled {
		srvConfig.MetricsPath = cfg.Metrics.Path
	}

	srv := server.New(srvConfig, ctrl, collector)
	srv.SetLogger(logger)
	if cfg.Metrics.Enabled {
		middleware.RegisterServerMetrics(srv, middleware.WithRegistry(reg))
	}
	return srv, nil
}
