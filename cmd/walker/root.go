package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/wiki-walker/internal/config"
	"github.com/alvmarrod/wiki-walker/internal/crawler"
	"github.com/alvmarrod/wiki-walker/internal/experiment"
	"github.com/alvmarrod/wiki-walker/internal/logger"
	"github.com/alvmarrod/wiki-walker/internal/memory"
	"github.com/alvmarrod/wiki-walker/internal/metrics"
	"github.com/alvmarrod/wiki-walker/internal/progress"
	"github.com/alvmarrod/wiki-walker/internal/stats"
	"github.com/alvmarrod/wiki-walker/internal/storage"
	"github.com/alvmarrod/wiki-walker/internal/version"
)

type rootFlags struct {
	configPath string
	trials     int
	outputDir  string
	workers    int
	maxHops    int
	dbPath     string
	resume     bool
	progress   bool
	verbose    bool
	logDir     string
}

var exampleForRootCmd = `  walker --trials 100 --output save
  walker --config walker.yaml --workers 4 --resume`

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:     "walker",
		Short:   "Follow first links from random Wikipedia articles until reaching Philosophy",
		Example: exampleForRootCmd,
		Version: version.Version,
		Args:    cobra.NoArgs,
		// Errors are logged by main
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.AddCommand(newShowCmd())

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "path to a JSON or YAML config file")
	f.IntVarP(&flags.trials, "trials", "n", 0, "number of trials (default 500)")
	f.StringVarP(&flags.outputDir, "output", "o", "", "directory for the CSV exports (default \"save\")")
	f.IntVarP(&flags.workers, "workers", "w", 0, "trials walked concurrently (default 1)")
	f.IntVar(&flags.maxHops, "max-hops", 0, "links followed before a walk is abandoned (default 100)")
	f.StringVar(&flags.dbPath, "db", "", "sqlite database path (default \"walker.db\")")
	f.BoolVar(&flags.resume, "resume", false, "seed the distance cache from the database")
	f.BoolVar(&flags.progress, "progress", false, "show a progress bar instead of per-page logs")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&flags.logDir, "log-dir", "", "also write logs to a daily rotated file in this directory")

	return cmd
}

// loadConfig reads the config file and applies the flags the user set
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("trials") {
		cfg.Trials = flags.trials
	}
	if changed("output") {
		cfg.OutputDir = flags.outputDir
	}
	if changed("workers") {
		cfg.Workers = flags.workers
	}
	if changed("max-hops") {
		cfg.MaxHops = flags.maxHops
	}
	if changed("db") {
		cfg.DBPath = flags.dbPath
	}
	if changed("resume") {
		cfg.ResumeCache = flags.resume
	}
	if changed("progress") {
		cfg.ShowProgress = flags.progress
	}
	if changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	if changed("log-dir") {
		cfg.LogDir = flags.logDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	if err := logger.Init(logger.Options{Verbose: cfg.Verbose, LogDir: cfg.LogDir}); err != nil {
		return err
	}
	if cfg.ShowProgress && !cfg.Verbose {
		logrus.SetLevel(logrus.WarnLevel)
	}

	logrus.Infof("Wiki Walker v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: trials=%d, workers=%d, max_hops=%d, target=%s",
		cfg.Trials, cfg.Workers, cfg.MaxHops, cfg.TargetURL)

	// Initialize storage
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	logrus.Infof("Database initialized: %s", cfg.DBPath)

	cache := memory.NewDistanceCache()
	if cfg.ResumeCache {
		if err := cache.LoadFromStorage(store); err != nil {
			return err
		}
	}

	fetcher := crawler.NewCollyFetcher(time.Duration(cfg.RequestTimeoutMs)*time.Millisecond, cfg.UserAgent)
	walker := crawler.NewWalker(fetcher, cache, cfg.TargetURL, cfg.MaxHops)
	runner := experiment.NewRunner(experiment.Options{
		Trials:    cfg.Trials,
		Workers:   cfg.Workers,
		RandomURL: cfg.RandomURL,
		TopK:      cfg.TopK,
	}, walker, cache, store)

	tracker := metrics.NewTracker(runner.RunID())
	walker.OnPage(tracker.RecordPage)

	var bar *progress.Bar
	if cfg.ShowProgress {
		bar = progress.New(os.Stderr, cfg.Trials, "trials")
	}
	runner.OnTrial(func(_ int, res crawler.Result) {
		tracker.RecordTrial(res)
		if bar != nil {
			bar.Increment()
		}
	})

	// First signal cancels the run; what finished so far is still exported
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	report, runErr := runner.Run(ctx)
	close(stopProgress)

	terminationReason := "completed"
	if runErr != nil {
		if report == nil || !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		terminationReason = "signal"
		logrus.Warnf("Run interrupted after %d trials", len(report.Starts))
	}

	stats.Render(os.Stdout, report.Summary)

	if err := experiment.Export(cfg.OutputDir, report); err != nil {
		return err
	}
	logrus.Infof("Results written to %s", cfg.OutputDir)

	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(cfg.MetricsPath, terminationReason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	return nil
}
