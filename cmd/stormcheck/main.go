// Command stormcheck scans a directory of IEC 61499 block files for event
// storm risks and exits with a status CI pipelines can gate on.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dd0wney/stormcheck/pkg/config"
	"github.com/dd0wney/stormcheck/pkg/engine"
	"github.com/dd0wney/stormcheck/pkg/logging"
	"github.com/dd0wney/stormcheck/pkg/metrics"
	"github.com/dd0wney/stormcheck/pkg/report"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit code out of the cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type options struct {
	appDir      string
	output      string
	configPath  string
	format      string
	maxDepth    int
	fanout      float64
	explosive   float64
	workers     int
	logLevel    string
	metricsFile string
}

// run executes the CLI and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return report.ExitClean
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Anything cobra rejected before RunE ran: bad flags or arguments.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.Name())
	return report.ExitUsage
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "stormcheck --app-dir <path>",
		Short: "Detect event storm anti-patterns in IEC 61499 applications",
		Long: `stormcheck builds the type-level event graph of every .fbt block file
below --app-dir and reports tight event loops, uncontrolled fan-out and
explosive amplification.

Exit codes:
  0   no findings
  10  only WARNING/INFO findings
  11  at least one CRITICAL finding
  1   hard failure (missing directory, nothing parsed, output error)
  2   usage or configuration error`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, &opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.appDir, "app-dir", "", "Root directory of the application to analyse")
	f.StringVarP(&opts.output, "output", "o", "", "Report destination: file path, s3://bucket/key or - for stdout (.sz compresses)")
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	f.StringVar(&opts.format, "format", "", "Report format: json or text")
	f.IntVar(&opts.maxDepth, "max-depth", 0, "Largest loop, in hops, reported as a tight loop")
	f.Float64Var(&opts.fanout, "fanout-threshold", 0, "Multiplication factor above which fan-out is flagged")
	f.Float64Var(&opts.explosive, "explosive-threshold", 0, "Multiplication factor above which fan-out is critical")
	f.IntVar(&opts.workers, "workers", 0, "Parallel parse workers (0 = number of CPUs)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	_ = cmd.MarkFlagRequired("app-dir")

	return cmd
}

// loadConfig reads the config file and applies explicitly set flags over it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if f.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if f.Changed("metrics-file") {
		cfg.Output.MetricsFile = opts.metricsFile
	}
	if f.Changed("max-depth") {
		cfg.Analysis.MaxDepth = opts.maxDepth
	}
	if f.Changed("fanout-threshold") {
		cfg.Analysis.FanoutThreshold = opts.fanout
	}
	if f.Changed("explosive-threshold") {
		cfg.Analysis.ExplosiveThreshold = opts.explosive
	}
	if f.Changed("workers") {
		cfg.Loader.Workers = opts.workers
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runAnalysis(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return &exitError{code: report.ExitUsage, err: err}
	}

	logger := logging.NewLogger(stderr, cfg.LogLevel(), cfg.LogFormat()).
		With(logging.Component("stormcheck"))
	reg := metrics.NewRegistry()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, engine.WithLogger(logger), engine.WithMetrics(reg))
	rep, err := eng.Analyze(ctx, opts.appDir)
	if err != nil {
		writeMetrics(cfg, reg, logger)
		return &exitError{code: report.ExitFatal, err: err}
	}

	if err := writeReport(ctx, cfg, rep, stdout); err != nil {
		return &exitError{code: report.ExitFatal, err: err}
	}
	if cfg.Output.Path != "" && cfg.Output.Path != "-" {
		logger.Info("Results written", logging.Path(cfg.Output.Path))
	}
	writeMetrics(cfg, reg, logger)

	code := rep.ExitCode()
	logger.Info("Analysis complete", logging.Int("exit_code", code), logging.String("status", string(rep.Status)))
	if code != report.ExitClean {
		return &exitError{code: code}
	}
	return nil
}

func writeReport(ctx context.Context, cfg *config.Config, rep *report.Report, stdout io.Writer) error {
	sink, err := report.Open(ctx, cfg.Output.Path,
		report.WithStdout(stdout), report.WithS3Options(cfg.S3Options()))
	if err != nil {
		return err
	}
	if err := rep.Write(sink, report.Format(cfg.Output.Format)); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}

// writeMetrics exports metrics when configured; failures are only logged.
func writeMetrics(cfg *config.Config, reg *metrics.Registry, logger logging.Logger) {
	if cfg.Output.MetricsFile == "" {
		return
	}
	if err := reg.WriteTextfile(cfg.Output.MetricsFile); err != nil {
		logger.Warn("Failed to write metrics", logging.Error(err))
	}
}
