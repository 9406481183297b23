package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/restplot/pkg/config"
	"github.com/ccollicutt/restplot/pkg/detector"
	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/pipeline"
	"github.com/ccollicutt/restplot/pkg/series"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	ProfileOptions

	Verbose  bool
	Examples int
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [flags] [--] <log-file>...",
		Short: "Diagnose extraction problems",
		Long: `Run extraction without plotting and report what went wrong.

This command checks:
- Profile syntax and settings
- Log source file existence and accessibility
- How many lines pass the filter
- Timestamp and duration parse failures, with example lines
- Records left after the time range and record filter
- Webhook configuration

Example:
  restplot diagnose -f POST proxy.log
  restplot diagnose -v -c clusters.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			results := runDiagnose(ctx, cmd, args, opts)
			printDiagnostics(cmd.OutOrStdout(), results, opts)
			if countStatus(results, "error") > 0 {
				ExitCode = ExitFailure
			}
			return nil
		},
	}

	opts.addFlags(cmd, config.DefaultWindow)
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")
	cmd.Flags().IntVar(&opts.Examples, "examples", 5, "Example lines shown per diagnostic kind")

	return cmd
}

func runDiagnose(ctx context.Context, cmd *cobra.Command, args []string, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	// 1. Check profile file if given
	if opts.ConfigFile != "" {
		result := checkConfigExists(opts.ConfigFile)
		results = append(results, result)
		if result.Status == "error" {
			return results
		}
	}

	// 2. Build and validate settings
	cfg, err := opts.buildConfig(ctx, cmd, args)
	if err != nil {
		return append(results, DiagnosticResult{
			Check:   "Profile Syntax",
			Status:  "error",
			Message: fmt.Sprintf("Failed to parse profile: %v", err),
			Suggests: []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			},
		})
	}

	// Token warnings need the raw values, before env expansion
	webhookResults := checkWebhooks(cfg, opts)

	result := checkSettings(cfg)
	results = append(results, result)
	if result.Status == "error" {
		return results
	}

	// 3. Check log sources
	results = append(results, checkLogSources(cfg)...)

	// 4. Extract with a collecting sink
	results = append(results, checkExtraction(ctx, cfg, opts)...)

	// 5. Webhooks
	results = append(results, webhookResults...)

	return results
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Profile File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Profile not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'restplot detect --write-config profile.yaml <log-file>' to generate a starter profile",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access profile: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Profile is empty"
		result.Suggests = []string{
			"Use 'restplot detect --write-config profile.yaml <log-file>' to generate a starter profile",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkSettings(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Settings",
	}

	if err := config.Validate(cfg); err != nil {
		result.Status = "error"
		result.Message = err.Error()
		if len(cfg.LogSources) == 0 {
			result.Suggests = []string{"Pass log files as arguments or set log_sources in the profile"}
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Series %q, window %d", cfg.SeriesLabel(), cfg.Window)
	result.Details = []string{
		fmt.Sprintf("Positions: date %d, time %d, duration %d",
			cfg.Positions.Date, cfg.Positions.Time, cfg.Positions.Duration),
		fmt.Sprintf("Filters: %q", cfg.Filters),
	}
	if cfg.RecordFilter != "" {
		result.Details = append(result.Details, "Record filter: "+cfg.RecordFilter)
	}
	return result
}

func checkLogSources(cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		return append(results, DiagnosticResult{
			Check:    "Log Sources",
			Status:   "error",
			Message:  err.Error(),
			Suggests: []string{"Verify the glob pattern syntax"},
		})
	}

	totalFiles := 0
	for _, source := range files {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log Source: %s", source),
		}

		if source == parser.StdinName {
			result.Status = "ok"
			result.Message = "Reading standard input"
			totalFiles++
			results = append(results, result)
			continue
		}

		info, err := os.Stat(source)
		switch {
		case os.IsNotExist(err):
			result.Status = "error"
			result.Message = "File does not exist"
			result.Suggests = []string{
				"Check if the log file path is correct",
				"Glob patterns that match nothing are kept as literal paths",
			}
		case err != nil:
			result.Status = "error"
			result.Message = fmt.Sprintf("Cannot access file: %v", err)
			result.Suggests = []string{"Check file permissions"}
		case info.IsDir():
			result.Status = "error"
			result.Message = "Path is a directory, not a file"
			result.Suggests = []string{
				"Use a glob pattern to match files in directory",
				"Example: /var/log/proxy/*.log",
			}
		case info.Size() == 0:
			result.Status = "warning"
			result.Message = "File is empty (0 bytes)"
		default:
			result.Status = "ok"
			result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
			totalFiles++
		}
		results = append(results, result)
	}

	if totalFiles == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Files Summary",
			Status:  "error",
			Message: "No accessible log files found",
			Suggests: []string{
				"Ensure at least one log file exists and is readable",
			},
		})
	}

	return results
}

// checkExtraction reads every source and reports on each stage.
func checkExtraction(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		return results
	}

	collector := parser.NewCollector()
	ext := parser.NewExtractor(cfg.Positions,
		parser.WithFilterTerms(cfg.Filters),
		parser.WithSink(collector),
	)
	records, extractErr := ext.ExtractFiles(ctx, files)
	stats := ext.Stats()

	results = append(results, checkFilter(cfg, stats))

	if extractErr != nil {
		result := DiagnosticResult{
			Check:   "Extraction",
			Status:  "error",
			Message: extractErr.Error(),
		}
		var tokErr *parser.TokenIndexError
		if errors.As(extractErr, &tokErr) {
			result.Suggests = []string{
				fmt.Sprintf("The line has %d tokens; positions are counted from 0", tokErr.Tokens),
			}
			result.Suggests = append(result.Suggests, suggestPositions(ctx, tokErr.Source, cfg.Filters)...)
		}
		return append(results, result)
	}

	tsResult := checkDiagnosticKind(collector, parser.KindTimestampFailure, stats.TimestampFailures, opts)
	if stats.TimestampFailures > 0 && stats.TimestampFailures == stats.LinesMatched && len(files) > 0 {
		tsResult.Suggests = append(tsResult.Suggests, suggestPositions(ctx, files[0], cfg.Filters)...)
	}

	results = append(results,
		tsResult,
		checkDiagnosticKind(collector, parser.KindDurationAnomaly, stats.DurationAnomalies, opts),
		checkRecords(cfg, records),
	)

	return results
}

func checkFilter(cfg *config.Config, stats parser.Stats) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Line Filter",
	}

	switch {
	case stats.LinesRead == 0:
		result.Status = "warning"
		result.Message = "No lines read"
	case stats.LinesMatched == 0:
		result.Status = "error"
		result.Message = fmt.Sprintf("No line out of %d contains every filter term", stats.LinesRead)
		result.Details = []string{fmt.Sprintf("Filters: %q", cfg.Filters)}
		result.Suggests = []string{
			"Filters are case-sensitive substrings and all must match",
		}
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("%d of %d lines matched", stats.LinesMatched, stats.LinesRead)
	}
	return result
}

func checkDiagnosticKind(c *parser.Collector, kind parser.DiagnosticKind, count int, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{}

	switch kind {
	case parser.KindTimestampFailure:
		result.Check = "Timestamps"
	case parser.KindDurationAnomaly:
		result.Check = "Durations"
	default:
		result.Check = string(kind)
	}

	if count == 0 {
		result.Status = "ok"
		result.Message = "All matched lines parsed"
		return result
	}

	result.Status = "warning"
	switch kind {
	case parser.KindTimestampFailure:
		result.Message = fmt.Sprintf("%d line(s) skipped: date/time could not be parsed", count)
		result.Suggests = []string{"Check --date-pos and --time-pos"}
	case parser.KindDurationAnomaly:
		result.Message = fmt.Sprintf("%d record(s) kept with 0ms: execution time could not be parsed", count)
		result.Suggests = []string{"Check --exec-pos; the token should look like 1.23s"}
	}

	shown := 0
	for _, d := range c.Diagnostics() {
		if d.Kind != kind {
			continue
		}
		if shown == opts.Examples {
			result.Details = append(result.Details, fmt.Sprintf("... and %d more", count-shown))
			break
		}
		result.Details = append(result.Details, fmt.Sprintf("%s:%d: %s", d.Source, d.LineNum, truncate(d.Message(), 100)))
		shown++
	}
	return result
}

func checkRecords(cfg *config.Config, records []parser.Record) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Records",
	}

	if len(records) == 0 {
		result.Status = "error"
		result.Message = "No records extracted"
		return result
	}

	kept := records
	if from, to := cfg.TimeRange.Bounds(); !from.IsZero() || !to.IsZero() {
		tr := &pipeline.TimeRange{Start: from, End: to}
		kept = make([]parser.Record, 0, len(records))
		for _, r := range records {
			if tr.Contains(r.Instant) {
				kept = append(kept, r)
			}
		}
	}
	kept, err := series.Where(kept, cfg.Predicate())
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Record filter failed: %v", err)
		return result
	}

	sum := series.Summarize(records)
	result.Details = []string{
		fmt.Sprintf("First: %s", sum.First.Format(time.DateTime)),
		fmt.Sprintf("Last: %s", sum.Last.Format(time.DateTime)),
		fmt.Sprintf("Duration: min %dms, mean %dms, max %dms", sum.MinMillis, sum.MeanMillis, sum.MaxMillis),
	}

	switch {
	case len(kept) == 0:
		result.Status = "error"
		result.Message = fmt.Sprintf("%d records extracted, none left after time range and record filter", len(records))
		result.Suggests = []string{"Compare --from/--to with the First and Last times above"}
	case len(kept) <= cfg.Window:
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d records left, too few for window %d", len(kept), cfg.Window)
		result.Suggests = []string{"Use a smaller --step"}
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("%d records, %d after filtering", len(records), len(kept))
	}
	return result
}

// suggestPositions runs the detector on path and formats its suggestion.
func suggestPositions(ctx context.Context, path string, filters []string) []string {
	if path == "" || path == parser.StdinName || path == "stdin" {
		return nil
	}
	d := detector.New(detector.WithSampleSize(50), detector.WithFilterTerms(filters))
	res, err := d.DetectFromFile(ctx, path)
	if err != nil {
		return nil
	}
	pos, err := res.Positions()
	if err != nil {
		return []string{"Use 'restplot detect " + path + "' to inspect token positions"}
	}
	return []string{
		fmt.Sprintf("Detected positions: -d %d -t %d -e %d (%.0f%% confidence)",
			pos.Date, pos.Time, pos.Duration, res.Confidence()*100),
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		warnings := []string{}
		if strings.HasPrefix(wh.Token, "$") {
			envName := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(wh.Token, "$"), "{"), "}")
			if os.Getenv(envName) == "" {
				warnings = append(warnings, fmt.Sprintf("Token env var %s is not set", envName))
			}
		}

		trigger := wh.Trigger
		if trigger == "" {
			trigger = config.WebhookTriggerOnSlow
		}
		if trigger == config.WebhookTriggerOnSlow && cfg.SlowThreshold == 0 {
			warnings = append(warnings, "Trigger on_slow never fires without slow_threshold")
		}

		if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", trigger)
			if opts.Verbose {
				result.Details = []string{fmt.Sprintf("URL: %s", wh.URL)}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)

		// Optionally test webhook connectivity
		if opts.Verbose && wh.URL != "" {
			conn := checkWebhookConnectivity(wh)
			conn.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, conn)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// Just do a HEAD request to check if the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	// Any response (even 4xx/5xx) means the server is reachable
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
		}
	}

	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	p := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	p("=== restplot Diagnostics ===\n\n")

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
		case "warning":
			icon = "WARN"
		case "error":
			icon = "FAIL"
		}

		p("[%s] %s\n", icon, r.Check)
		p("    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				p("      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			p("      Hint: %s\n", s)
		}

		p("\n")
	}

	okCount := countStatus(results, "ok")
	warnCount := countStatus(results, "warning")
	errCount := countStatus(results, "error")

	p("---\n")
	p("Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		p("\nFix the errors above before plotting.\n")
	case warnCount > 0:
		p("\nExtraction works but has warnings.\n")
	default:
		p("\nEverything looks good!\n")
	}
}

func countStatus(results []DiagnosticResult, status string) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
