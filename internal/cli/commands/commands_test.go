package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/restplot/pkg/output"
	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/pipeline"
	"github.com/ccollicutt/restplot/pkg/webhook"
)

// positionFlags point at the fields of proxyLine.
var positionFlags = []string{"-d", "0", "-t", "1", "-e", "4"}

// proxyLine renders a line with the date at token 0, the time at token 1
// and the duration at token 4.
func proxyLine(second int, method, duration string) string {
	return fmt.Sprintf("\x1b[0;34m2023-08-28 07:00:%02d.125 %s /v3/clusters %s", second, method, duration)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxy.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

// twelveLines alternates GET and POST with durations 100ms, 200ms, ...
func twelveLines() []string {
	lines := make([]string, 12)
	for i := range lines {
		method := "GET"
		if i%2 == 1 {
			method = "POST"
		}
		lines[i] = proxyLine(i, method, fmt.Sprintf("0.%d00s", i%9+1))
	}
	return lines
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func epoch(second int) int64 {
	return time.Date(2023, 8, 28, 7, 0, second, 0, time.UTC).Unix()
}

func TestNewPlotCommand(t *testing.T) {
	cmd := NewPlotCommand()

	if !strings.HasPrefix(cmd.Use, "plot") {
		t.Errorf("expected Use to start with 'plot', got %q", cmd.Use)
	}

	shorthands := map[string]string{
		"filter":   "f",
		"date-pos": "d",
		"time-pos": "t",
		"exec-pos": "e",
		"step":     "s",
		"label":    "l",
		"config":   "c",
		"output":   "o",
		"verbose":  "v",
		"quiet":    "q",
	}
	for name, short := range shorthands {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("missing flag --%s", name)
			continue
		}
		if f.Shorthand != short {
			t.Errorf("--%s shorthand = %q, want %q", name, f.Shorthand, short)
		}
	}

	for _, name := range []string{"data-only", "chart-dir", "from", "to", "where", "metrics-file", "pushgateway", "webhook-url", "webhook-token", "webhook-trigger", "slow-threshold"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}

	if got := cmd.Flags().Lookup("step").DefValue; got != "5" {
		t.Errorf("--step default = %s, want 5", got)
	}
	if got := cmd.Flags().Lookup("exec-pos").DefValue; got != "15" {
		t.Errorf("--exec-pos default = %s, want 15", got)
	}
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	if cmd.Use != "validate <profile>" {
		t.Errorf("expected Use 'validate <profile>', got %q", cmd.Use)
	}
}

func TestNewVersionCommand(t *testing.T) {
	out, err := runCommand(t, NewVersionCommand())
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "restplot dev\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestRunPlot_DataOnly(t *testing.T) {
	path := writeLog(t,
		proxyLine(2, "GET", "1.5s"),
		proxyLine(0, "GET", "10.9ms"),
		proxyLine(1, "POST", "bogus"),
	)

	args := append([]string{"--data-only"}, positionFlags...)
	out, err := runCommand(t, NewPlotCommand(), append(args, "--", path)...)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	want := fmt.Sprintf("2023-08-28 07:00:00 +00:00 %d 10\n"+
		"2023-08-28 07:00:01 +00:00 %d 0\n"+
		"2023-08-28 07:00:02 +00:00 %d 1500\n",
		epoch(0), epoch(1), epoch(2))
	if out != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}
}

func TestRunPlot_DataOnlyJSON(t *testing.T) {
	path := writeLog(t, proxyLine(0, "GET", "10ms"), proxyLine(1, "GET", "20ms"))

	args := append([]string{"--data-only", "-o", "json"}, positionFlags...)
	out, err := runCommand(t, NewPlotCommand(), append(args, path)...)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	var points []parser.Record
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(points) != 2 || points[1].DurationMillis != 20 {
		t.Errorf("points = %+v", points)
	}
}

func TestRunPlot_Chart(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	chartDir := filepath.Join(t.TempDir(), "charts")

	args := append([]string{"-l", "clusters", "--chart-dir", chartDir}, positionFlags...)
	out, err := runCommand(t, NewPlotCommand(), append(args, path)...)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	chartPath := filepath.Join(chartDir, "2023-08-28_clusters.png")
	info, err := os.Stat(chartPath)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("chart is empty")
	}

	if !strings.Contains(out, "=== restplot Series Report ===") {
		t.Error("expected report header")
	}
	if !strings.Contains(out, "Series: clusters") {
		t.Error("expected series label")
	}
	if !strings.Contains(out, "Window: 5 records per point") {
		t.Error("expected window line")
	}
	if !strings.Contains(out, "Chart: "+chartPath) {
		t.Errorf("expected chart path in output, got:\n%s", out)
	}
}

func TestRunPlot_FilterLabelsSeries(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	chartDir := t.TempDir()

	args := append([]string{"-q", "-f", "POST", "--chart-dir", chartDir}, positionFlags...)
	out, err := runCommand(t, NewPlotCommand(), append(args, path)...)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	if !strings.HasPrefix(out, "restplot: POST: ") {
		t.Errorf("quiet output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(chartDir, "2023-08-28_POST.png")); err != nil {
		t.Errorf("chart not written: %v", err)
	}
}

func TestRunPlot_NoRecords(t *testing.T) {
	path := writeLog(t, twelveLines()...)

	args := append([]string{"-f", "DELETE", "--chart-dir", t.TempDir()}, positionFlags...)
	_, err := runCommand(t, NewPlotCommand(), append(args, path)...)
	if !errors.Is(err, pipeline.ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
	if code := ExitCodeFor(err); code != ExitNoData {
		t.Errorf("ExitCodeFor() = %d, want %d", code, ExitNoData)
	}
}

func TestRunPlot_WindowOfOneHasNothingToPlot(t *testing.T) {
	path := writeLog(t, twelveLines()...)

	args := append([]string{"-s", "1", "--chart-dir", t.TempDir()}, positionFlags...)
	_, err := runCommand(t, NewPlotCommand(), append(args, path)...)
	if !errors.Is(err, output.ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
	if code := ExitCodeFor(err); code != ExitNoData {
		t.Errorf("ExitCodeFor() = %d, want %d", code, ExitNoData)
	}
}

func TestRunPlot_TokenIndexOutOfRange(t *testing.T) {
	path := writeLog(t, twelveLines()...)

	_, err := runCommand(t, NewPlotCommand(), "-d", "0", "-t", "1", "-e", "15", "--chart-dir", t.TempDir(), path)
	if !errors.Is(err, parser.ErrTokenIndexOutOfRange) {
		t.Fatalf("expected ErrTokenIndexOutOfRange, got %v", err)
	}
	if code := ExitCodeFor(err); code != ExitFailure {
		t.Errorf("ExitCodeFor() = %d, want %d", code, ExitFailure)
	}
}

func TestRunPlot_MissingFile(t *testing.T) {
	_, err := runCommand(t, NewPlotCommand(), "--data-only", "/nonexistent/proxy.log")
	if !errors.Is(err, parser.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
}

func TestRunPlot_NoSources(t *testing.T) {
	_, err := runCommand(t, NewPlotCommand())
	if err == nil || !strings.Contains(err.Error(), "log_sources") {
		t.Errorf("expected log_sources error, got %v", err)
	}
}

func TestRunPlot_InvalidOutput(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	_, err := runCommand(t, NewPlotCommand(), "-o", "xml", path)
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("expected unknown output format error, got %v", err)
	}
}

func TestRunPlot_InvalidWhere(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	_, err := runCommand(t, NewPlotCommand(), "--where", "duration_ms >", path)
	if err == nil || !strings.Contains(err.Error(), "record_filter") {
		t.Errorf("expected record_filter error, got %v", err)
	}
}

func TestRunPlot_WhereAndTimeRange(t *testing.T) {
	path := writeLog(t, twelveLines()...)

	args := append([]string{
		"--data-only",
		"--from", "2023-08-28 07:00:02",
		"--to", "2023-08-28 07:00:09",
		"--where", "duration_ms >= 500",
	}, positionFlags...)
	out, err := runCommand(t, NewPlotCommand(), append(args, path)...)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	// Seconds 4..8 carry 500..900ms; 9 wraps to 100ms.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "2023-08-28 07:00:04 ") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestRunPlot_MetricsFile(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	metricsPath := filepath.Join(t.TempDir(), "restplot.prom")

	args := append([]string{"--data-only", "--metrics-file", metricsPath}, positionFlags...)
	if _, err := runCommand(t, NewPlotCommand(), append(args, path)...); err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), "restplot_records_total 12") {
		t.Errorf("metrics file missing records counter:\n%s", data)
	}
}

func TestRunPlot_Webhook(t *testing.T) {
	var calls atomic.Int32
	var runID atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		runID.Store(r.Header.Get(webhook.RunIDHeader))
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeLog(t, twelveLines()...)
	args := append([]string{
		"-q",
		"--chart-dir", t.TempDir(),
		"--webhook-url", server.URL,
		"--webhook-token", "secret",
		"--webhook-trigger", "always",
	}, positionFlags...)
	if _, err := runCommand(t, NewPlotCommand(), append(args, path)...); err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("webhook called %d times, want 1", calls.Load())
	}
	if id, _ := runID.Load().(string); id == "" {
		t.Error("expected run ID header")
	}
}

func TestRunPlot_WebhookOnSlowNotFired(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	path := writeLog(t, twelveLines()...)
	args := append([]string{
		"-q",
		"--chart-dir", t.TempDir(),
		"--slow-threshold", "10s",
		"--webhook-url", server.URL,
	}, positionFlags...)
	if _, err := runCommand(t, NewPlotCommand(), append(args, path)...); err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	if calls.Load() != 0 {
		t.Errorf("webhook called %d times, want 0", calls.Load())
	}
}

func TestRunPlot_InvalidWebhookTrigger(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	_, err := runCommand(t, NewPlotCommand(), "--webhook-url", "http://localhost:9", "--webhook-trigger", "sometimes", path)
	if err == nil || !strings.Contains(err.Error(), "invalid trigger") {
		t.Errorf("expected invalid trigger error, got %v", err)
	}
}

func TestRunPlot_Profile(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	profile := filepath.Join(t.TempDir(), "clusters.yaml")
	content := fmt.Sprintf(`log_sources:
  - %s
filters: [POST]
positions:
  date: 0
  time: 1
  duration: 4
`, path)
	if err := os.WriteFile(profile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	out, err := runCommand(t, NewPlotCommand(), "-c", profile, "--data-only")
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 6 {
		t.Errorf("profile filter: got %d lines, want 6", got)
	}

	// A flag replaces the profile's filters.
	out, err = runCommand(t, NewPlotCommand(), "-c", profile, "--data-only", "-f", "/v3/clusters")
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 12 {
		t.Errorf("flag filter: got %d lines, want 12", got)
	}
}

func TestRunExtract_Raw(t *testing.T) {
	path := writeLog(t, twelveLines()...)

	out, err := runCommand(t, NewExtractCommand(), append(positionFlags, path)...)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 12 {
		t.Fatalf("got %d lines, want 12", len(lines))
	}
	want := fmt.Sprintf("2023-08-28 07:00:00 +00:00 %d 100", epoch(0))
	if lines[0] != want {
		t.Errorf("first line = %q, want %q", lines[0], want)
	}
}

func TestRunExtract_Step(t *testing.T) {
	path := writeLog(t, twelveLines()...)

	args := append([]string{"--step", "5"}, positionFlags...)
	out, err := runCommand(t, NewExtractCommand(), append(args, path)...)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	// Windows [0,4) [5,9) [10,11) with mids 2, 7, 11.
	want := fmt.Sprintf("2023-08-28 07:00:02 +00:00 %d 250\n"+
		"2023-08-28 07:00:07 +00:00 %d 750\n"+
		"2023-08-28 07:00:11 +00:00 %d 200\n",
		epoch(2), epoch(7), epoch(11))
	if out != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}
}

func TestRunExtract_JSON(t *testing.T) {
	path := writeLog(t, proxyLine(0, "GET", "10ms"))

	args := append([]string{"-o", "json"}, positionFlags...)
	out, err := runCommand(t, NewExtractCommand(), append(args, path)...)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(out, `"duration_ms": 10`) {
		t.Errorf("unexpected JSON:\n%s", out)
	}
}

func TestRunExtract_NegativeStep(t *testing.T) {
	path := writeLog(t, twelveLines()...)
	_, err := runCommand(t, NewExtractCommand(), "--step", "-2", path)
	if err == nil || !strings.Contains(err.Error(), "window") {
		t.Errorf("expected window error, got %v", err)
	}
}

func TestBuildConfig_LogLevelFlag(t *testing.T) {
	root := &cobra.Command{Use: "restplot"}
	root.PersistentFlags().String(LogLevelFlag, "", "")
	opts := &ProfileOptions{}
	child := &cobra.Command{
		Use: "child",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.buildConfig(commandContext(cmd), cmd, args)
			if err != nil {
				return err
			}
			if cfg.Logging.Level != "debug" {
				t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
			}
			if cfg.Positions.Duration != 15 {
				t.Errorf("unchanged flag overrode default: %d", cfg.Positions.Duration)
			}
			if len(cfg.LogSources) != 1 || cfg.LogSources[0] != "a.log" {
				t.Errorf("LogSources = %v", cfg.LogSources)
			}
			return nil
		},
	}
	opts.addFlags(child, 5)
	root.AddCommand(child)

	if _, err := runCommand(t, root, "child", "--log-level", "debug", "a.log"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"no records", fmt.Errorf("run: %w", pipeline.ErrNoRecords), ExitNoData},
		{"empty series", fmt.Errorf("chart: %w", output.ErrEmptySeries), ExitNoData},
		{"token index", &parser.TokenIndexError{Source: "a", LineNum: 1, Position: 9, Tokens: 3}, ExitFailure},
		{"other", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCreateFormatter(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"text", "text", false},
		{"json", "json", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := createFormatter(tt.format, output.FormatOptions{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("createFormatter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", f.Name(), tt.want)
			}
		})
	}
}

func TestRunValidate_Success(t *testing.T) {
	logPath := writeLog(t, twelveLines()...)
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	content := fmt.Sprintf(`log_sources:
  - %s
  - /nonexistent/other.log
filters: [POST]
record_filter: duration_ms > 100
time_range:
  from: "2023-08-28"
`, logPath)
	if err := os.WriteFile(profile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	out, err := runCommand(t, NewValidateCommand(), profile)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	for _, want := range []string{
		"Profile valid!",
		"Series:      POST",
		"Positions:   date 1, time 2, duration 15",
		"Where:       duration_ms > 100",
		"Time range:  2023-08-28 .. open",
		"  - " + logPath + "\n",
		"/nonexistent/other.log (warning: not found)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(profile, []byte("log_sources: [a.log]\nwindow: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	_, err := runCommand(t, NewValidateCommand(), profile)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := runCommand(t, NewValidateCommand(), "/nonexistent/profile.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
