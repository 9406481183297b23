package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/restplot/pkg/config"
	"github.com/ccollicutt/restplot/pkg/detector"
	"github.com/ccollicutt/restplot/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	Filters     []string
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect date, time and duration token positions",
		Long: `Sample lines from a proxy log and find which whitespace-separated tokens
hold the date, the time of day and the execution time.

Each token position is scored by how many sampled lines parse there. The best
positions are printed as flags for the plot command and as a profile snippet.

Optionally generates a starter profile with --write-config.

Example:
  restplot detect /var/log/proxy.log
  restplot detect -f /v3/clusters --sample 500 proxy.log.gz
  restplot detect -w clusters.yaml proxy.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "Only sample lines containing this text (repeatable)")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every candidate position, not just the best")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter profile to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := commandContext(cmd)

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	d := detector.New(
		detector.WithSampleSize(opts.SampleSize),
		detector.WithFilterTerms(opts.Filters),
	)

	result, err := d.DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	out := cmd.OutOrStdout()

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(out, result, logFile, opts); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(out, result, logFile, opts)
	case "text":
		return outputDetectText(out, result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

var detectKinds = []detector.FieldKind{detector.FieldDate, detector.FieldTime, detector.FieldDuration}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	p := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	p("=== Token Position Detection ===\n\n")
	p("File: %s\n", logFile)
	p("Lines sampled: %d\n\n", result.SampledLines)

	if result.SampledLines == 0 {
		p("No lines to sample.\n")
		if len(opts.Filters) > 0 {
			p("\nTip: No line contained every --filter term.\n")
		}
		return nil
	}

	for _, kind := range detectKinds {
		best, ok := result.Best(kind)
		if !ok {
			p("%-9s not found\n", kind+":")
			continue
		}
		p("%-9s position %d (%.1f%% of lines, e.g. %q)\n", kind+":", best.Position, best.Confidence*100, best.Example)
	}
	p("\n")

	pos, err := result.Positions()
	if err != nil {
		p("Could not suggest positions: %v\n", err)
		p("\nSample line:\n  %s\n", result.SampleLine)
		return nil
	}

	p("Confidence: %.1f%%\n\n", result.Confidence()*100)
	p("Flags:\n  -d %d -t %d -e %d\n\n", pos.Date, pos.Time, pos.Duration)

	p("--- Profile snippet (copy to your profile) ---\n\n")
	p("positions:\n  date: %d\n  time: %d\n  duration: %d\n\n", pos.Date, pos.Time, pos.Duration)

	if opts.ShowAll {
		p("--- All candidates ---\n")
		for _, kind := range detectKinds {
			for _, c := range result.Candidates[kind] {
				p("%-9s position %d (%.1f%%, %d lines)\n", kind+":", c.Position, c.Confidence*100, c.MatchCount)
			}
		}
		p("\n")
	}

	return nil
}

// JSONCandidate is a candidate position in JSON output.
type JSONCandidate struct {
	Position   int     `json:"position"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	Example    string  `json:"example"`
}

// JSONDetectOutput represents the full JSON output.
type JSONDetectOutput struct {
	File         string                     `json:"file"`
	SampledLines int                        `json:"sampled_lines"`
	Positions    *JSONPositions             `json:"positions,omitempty"`
	Confidence   float64                    `json:"confidence"`
	Candidates   map[string][]JSONCandidate `json:"candidates"`
	Error        string                     `json:"error,omitempty"`
}

// JSONPositions holds the suggested token positions.
type JSONPositions struct {
	Date     int `json:"date"`
	Time     int `json:"time"`
	Duration int `json:"duration"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	doc := JSONDetectOutput{
		File:         logFile,
		SampledLines: result.SampledLines,
		Candidates:   make(map[string][]JSONCandidate, len(detectKinds)),
	}

	if pos, err := result.Positions(); err != nil {
		doc.Error = err.Error()
	} else {
		doc.Positions = &JSONPositions{Date: pos.Date, Time: pos.Time, Duration: pos.Duration}
		doc.Confidence = result.Confidence()
	}

	for _, kind := range detectKinds {
		cands := result.Candidates[kind]
		if !opts.ShowAll && len(cands) > 1 {
			cands = cands[:1]
		}
		list := make([]JSONCandidate, 0, len(cands))
		for _, c := range cands {
			list = append(list, JSONCandidate{
				Position:   c.Position,
				Confidence: c.Confidence,
				MatchCount: c.MatchCount,
				Example:    c.Example,
			})
		}
		doc.Candidates[string(kind)] = list
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// writeStarterConfig writes a profile using the detected positions.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	configPath := opts.WriteConfig
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	pos, err := result.Positions()
	if err != nil {
		return fmt.Errorf("cannot generate config: %w", err)
	}

	content, err := generateStarterConfig(logFile, opts.Filters, pos, result.Confidence())
	if err != nil {
		return err
	}

	// #nosec G306 - profile doesn't need restrictive permissions
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Wrote starter profile to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig renders a starter profile as YAML.
func generateStarterConfig(logFile string, filters []string, pos parser.Positions, confidence float64) ([]byte, error) {
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	cfg := config.DefaultConfig()
	cfg.LogSources = []string{absLogFile}
	cfg.Filters = slices.Clone(filters)
	cfg.Positions = pos

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# restplot profile\n# Generated by: restplot detect\n# Detection confidence: %.0f%%\n\n", confidence*100)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	return buf.Bytes(), nil
}
