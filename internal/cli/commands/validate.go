package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/restplot/pkg/config"
	"github.com/ccollicutt/restplot/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profile>",
		Short: "Validate a profile",
		Long: `Validate a restplot profile without reading any logs.

Checks:
  - YAML syntax
  - Required fields and token positions
  - Record filter expression
  - Time range, chart, logging, metrics and webhook settings
  - Log source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()
	p := func(format string, a ...any) { _, _ = fmt.Fprintf(out, format, a...) }

	p("Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p("\nProfile valid!\n")
	p("  Log sources: %d pattern(s)\n", len(cfg.LogSources))
	p("  Series:      %s\n", cfg.SeriesLabel())
	p("  Positions:   date %d, time %d, duration %d\n", cfg.Positions.Date, cfg.Positions.Time, cfg.Positions.Duration)
	p("  Window:      %d\n", cfg.Window)
	if len(cfg.Filters) > 0 {
		p("  Filters:     %q\n", cfg.Filters)
	}
	if cfg.RecordFilter != "" {
		p("  Where:       %s\n", cfg.RecordFilter)
	}
	if cfg.TimeRange.IsSet() {
		p("  Time range:  %s .. %s\n", orOpen(cfg.TimeRange.From), orOpen(cfg.TimeRange.To))
	}
	if len(cfg.Webhooks) > 0 {
		p("  Webhooks:    %d\n", len(cfg.Webhooks))
	}

	// Missing log files are warnings only
	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		p("\nWarning: Error expanding log source patterns: %v\n", err)
		return nil
	}

	p("\nLog files:\n")
	for _, f := range files {
		if f == parser.StdinName {
			p("  - %s (stdin)\n", f)
		} else if exists(f) {
			p("  - %s\n", f)
		} else {
			p("  - %s (warning: not found)\n", f)
		}
	}

	return nil
}

func orOpen(s string) string {
	if s == "" {
		return "open"
	}
	return s
}
