package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/planetary-social/planetary-cli/internal/app"
	"github.com/planetary-social/planetary-cli/internal/botapi"
	"github.com/planetary-social/planetary-cli/internal/config"
	"github.com/planetary-social/planetary-cli/internal/crashreport"
	"github.com/planetary-social/planetary-cli/internal/logging"
	"github.com/planetary-social/planetary-cli/internal/metrics"
	"github.com/planetary-social/planetary-cli/internal/settings"
	"github.com/planetary-social/planetary-cli/internal/ssb"
	"github.com/planetary-social/planetary-cli/internal/viewdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	dbPath     string
	remote     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "planetary",
		Short:         "Read an ssb feed from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts, false)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default $PLANETARY_CONFIG)")
	flags.StringVar(&opts.dbPath, "db", "", "view database path (default $PLANETARY_DB_PATH)")
	flags.StringVar(&opts.remote, "remote", "", "read feed pages from a bot API at this URL")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newTUICmd(opts),
		newFeedCmd(opts),
		newShowCmd(opts),
		newStrategyCmd(opts),
		newImportCmd(opts),
		newPubCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// env is everything a command needs once configuration is resolved.
type env struct {
	cfg      config.Config
	log      *zap.Logger
	db       *viewdb.DB
	svc      *app.Service
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

func (e *env) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("failed to close view database", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}

// setup loads configuration, opens the view database and builds the app
// service. logFile redirects logs away from stderr.
func (o *rootOptions) setup(cmd *cobra.Command, logFile string) (*env, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("PLANETARY_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.remote != "" {
		cfg.RemoteURL = o.remote
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.RequireIdentity(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if logFile == "-" {
		logFile = cfg.DBPath + ".log"
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: o.verbose, File: logFile})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	db, err := viewdb.Open(ctx, cfg.DBPath, ssb.Identity(cfg.Identity), viewdb.WithLogger(log))
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	if err := db.CheckWritable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage write check failed (%w). Verify PLANETARY_DB_PATH is writable: %s", err, cfg.DBPath)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	svcOpts := []app.Option{
		app.WithLogger(log),
		app.WithMetrics(collector),
		app.WithReporter(crashreport.NewLogger(log)),
		app.WithPageSize(cfg.PageSize),
	}
	if cfg.RemoteURL != "" {
		log.Info("reading feed pages from bot api", zap.String("url", cfg.RemoteURL))
		svcOpts = append(svcOpts, app.WithPageSource(
			botapi.NewClient(cfg.RemoteURL, botapi.WithRetries(2, 250*time.Millisecond))))
	}

	return &env{
		cfg:      cfg,
		log:      log,
		db:       db,
		svc:      app.NewService(db, settings.New(db, log), svcOpts...),
		registry: reg,
		metrics:  collector,
	}, nil
}
