package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/restplot/pkg/config"
	"github.com/ccollicutt/restplot/pkg/logger"
	"github.com/ccollicutt/restplot/pkg/output"
	"github.com/ccollicutt/restplot/pkg/pipeline"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK      = 0
	ExitNoData  = 1
	ExitFailure = 2
)

// LogLevelFlag is the root persistent flag that overrides logging.level.
const LogLevelFlag = "log-level"

// ExitCodeFor maps a command error to the process exit code.
// Runs where nothing survived filtering exit 1; every other error exits 2.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitCode
	case errors.Is(err, pipeline.ErrNoRecords), errors.Is(err, output.ErrEmptySeries):
		return ExitNoData
	default:
		return ExitFailure
	}
}

// ProfileOptions are the extraction settings shared by plot, extract and
// diagnose. Flags override the profile only when given on the command line.
type ProfileOptions struct {
	ConfigFile string
	Filters    []string
	DatePos    int
	TimePos    int
	ExecPos    int
	Step       int
	Label      string
	From       string
	To         string
	Where      string
}

func (o *ProfileOptions) addFlags(cmd *cobra.Command, defaultStep int) {
	f := cmd.Flags()
	f.StringVarP(&o.ConfigFile, "config", "c", "", "Profile file (YAML)")
	f.StringArrayVarP(&o.Filters, "filter", "f", nil, "Only use lines containing this text (repeatable)")
	f.IntVarP(&o.DatePos, "date-pos", "d", config.DefaultDatePos, "Token position of the date")
	f.IntVarP(&o.TimePos, "time-pos", "t", config.DefaultTimePos, "Token position of the time of day")
	f.IntVarP(&o.ExecPos, "exec-pos", "e", config.DefaultDurationPos, "Token position of the execution time")
	f.IntVarP(&o.Step, "step", "s", defaultStep, "Number of records averaged per point")
	f.StringVarP(&o.Label, "label", "l", "", "Series label (default: last filter)")
	f.StringVar(&o.From, "from", "", "Ignore records before this time (e.g. 2023-08-28 07:00)")
	f.StringVar(&o.To, "to", "", "Ignore records after this time")
	f.StringVar(&o.Where, "where", "", "Keep records matching an expression (e.g. 'duration_ms > 500 && hour < 9')")
}

// buildConfig layers the profile, positional log sources and changed flags
// over the defaults. The result is not validated.
func (o *ProfileOptions) buildConfig(ctx context.Context, cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.Parse(ctx, o.ConfigFile); err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnvironmentOverrides()
	}

	if len(args) > 0 {
		cfg.LogSources = args
	}

	flags := cmd.Flags()
	if flags.Changed("filter") {
		cfg.Filters = o.Filters
	}
	if flags.Changed("date-pos") {
		cfg.Positions.Date = o.DatePos
	}
	if flags.Changed("time-pos") {
		cfg.Positions.Time = o.TimePos
	}
	if flags.Changed("exec-pos") {
		cfg.Positions.Duration = o.ExecPos
	}
	if flags.Changed("step") {
		cfg.Window = o.Step
	}
	if flags.Changed("label") {
		cfg.Label = o.Label
	}
	if flags.Changed("from") {
		cfg.TimeRange.From = o.From
	}
	if flags.Changed("to") {
		cfg.TimeRange.To = o.To
	}
	if flags.Changed("where") {
		cfg.RecordFilter = o.Where
	}
	if lvl := flags.Lookup(LogLevelFlag); lvl != nil && lvl.Changed {
		cfg.Logging.Level = lvl.Value.String()
	}

	return cfg, nil
}

// applyConfig validates cfg and points the global logger at its settings.
func applyConfig(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func createFormatter(format string, opts output.FormatOptions) (output.Formatter, error) {
	switch format {
	case "text":
		return output.NewTextFormatter(opts), nil
	case "json":
		return output.NewJSONFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text or json)", format)
	}
}
