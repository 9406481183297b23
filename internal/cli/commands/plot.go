package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/restplot/pkg/config"
	"github.com/ccollicutt/restplot/pkg/logger"
	"github.com/ccollicutt/restplot/pkg/metrics"
	"github.com/ccollicutt/restplot/pkg/output"
	"github.com/ccollicutt/restplot/pkg/pipeline"
	"github.com/ccollicutt/restplot/pkg/webhook"
)

// PlotOptions holds command-line options for the plot command.
type PlotOptions struct {
	ProfileOptions

	Output        string
	DataOnly      bool
	ChartDir      string
	SlowThreshold time.Duration
	Verbose       bool
	Quiet         bool

	MetricsFile string
	Pushgateway string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand() *cobra.Command {
	opts := &PlotOptions{}

	cmd := &cobra.Command{
		Use:   "plot [flags] [--] <log-file>...",
		Short: "Plot request execution times from proxy logs",
		Long: `Read REST proxy logs, average execution times over a sliding step of
records and render the series as a PNG chart.

Log files can be plain, gzip or zstd compressed; "-" reads stdin. When a
profile is given with --config, its log_sources are used unless files are
passed on the command line.

With --data-only the raw records are printed instead, one per line:
  <date time> <epoch seconds> <milliseconds>

Exit codes:
  0 - Series plotted
  1 - No records matched
  2 - Configuration or runtime error

Example:
  restplot plot -f POST -f /v3/clusters proxy.log
  restplot plot -c clusters.yaml --from "2023-08-28 07:00" --to "2023-08-28 08:00"
  restplot plot --data-only -e 12 -- proxy.log.1.gz proxy.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(cmd, args, opts)
		},
	}

	opts.addFlags(cmd, config.DefaultWindow)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVar(&opts.DataOnly, "data-only", false, "Print raw records instead of plotting")
	cmd.Flags().StringVar(&opts.ChartDir, "chart-dir", "", "Directory for chart images (default \"charts\")")
	cmd.Flags().DurationVar(&opts.SlowThreshold, "slow-threshold", 0, "Flag the series as slow when a point reaches this duration")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show run details")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no points")

	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&opts.Pushgateway, "pushgateway", "", "Push Prometheus metrics to this Pushgateway URL")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnSlow), "When to fire webhook (on_slow|always|never)")

	return cmd
}

func runPlot(cmd *cobra.Command, args []string, opts *PlotOptions) error {
	ctx := commandContext(cmd)

	cfg, err := opts.buildConfig(ctx, cmd, args)
	if err != nil {
		return err
	}
	applyPlotFlags(cmd, cfg, opts)
	if err := applyConfig(cfg); err != nil {
		return err
	}
	log := logger.Get(ctx)

	formatter, err := createFormatter(opts.Output, output.FormatOptions{
		DataOnly: opts.DataOnly,
		Verbose:  opts.Verbose,
		Quiet:    opts.Quiet,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	p, err := pipeline.New(cfg,
		pipeline.WithMetrics(m),
		pipeline.WithAggregation(!opts.DataOnly),
	)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	result, err := p.Run(ctx)
	exportMetrics(ctx, cfg.Metrics, m, log)
	if err != nil {
		return err
	}

	report := output.NewReport(result, opts.ConfigFile, cfg.SlowThreshold)
	out := cmd.OutOrStdout()

	if opts.DataOnly {
		if err := formatter.Format(ctx, report, out); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		return nil
	}

	renderer := output.NewChartRenderer(output.ChartOptions{
		Dir:    cfg.Chart.Dir,
		Width:  cfg.Chart.Width,
		Height: cfg.Chart.Height,
	})
	chartPath, err := renderer.WriteFile(ctx, report)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	log.Infow("chart written", "path", chartPath, "points", report.Summary.Points, "run_id", report.Metadata.RunID)

	if err := formatter.Format(ctx, report, out); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	if opts.Output == "text" && !opts.Quiet {
		_, _ = fmt.Fprintf(out, "Chart: %s\n", chartPath)
	}

	// Webhook errors are logged but don't fail the run
	webhook.NewClient().Notify(ctx, cfg.Webhooks, report, log)

	return nil
}

// applyPlotFlags layers plot-only flags over the profile.
func applyPlotFlags(cmd *cobra.Command, cfg *config.Config, opts *PlotOptions) {
	flags := cmd.Flags()
	if flags.Changed("chart-dir") {
		cfg.Chart.Dir = opts.ChartDir
	}
	if flags.Changed("slow-threshold") {
		cfg.SlowThreshold = opts.SlowThreshold
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = opts.MetricsFile
	}
	if flags.Changed("pushgateway") {
		cfg.Metrics.Pushgateway = opts.Pushgateway
	}

	if opts.WebhookURL != "" {
		cfg.Webhooks = append(cfg.Webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: config.WebhookTrigger(opts.WebhookTrigger),
			Timeout: config.DefaultWebhookTimeout,
		})
	}
}

// exportMetrics writes and pushes run metrics. Failures are logged only.
func exportMetrics(ctx context.Context, mc config.MetricsConfig, m *metrics.Metrics, log *zap.SugaredLogger) {
	if mc.Textfile != "" {
		if err := m.WriteTextfile(mc.Textfile); err != nil {
			log.Warnw("writing metrics textfile failed", "path", mc.Textfile, "error", err)
		} else {
			log.Debugw("metrics textfile written", "path", mc.Textfile)
		}
	}
	if mc.Pushgateway != "" {
		if err := m.Push(ctx, mc.Pushgateway, mc.Job); err != nil {
			log.Warnw("pushing metrics failed", "url", mc.Pushgateway, "error", err)
		} else {
			log.Debugw("metrics pushed", "url", mc.Pushgateway, "job", mc.Job)
		}
	}
}
