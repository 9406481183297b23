package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/restplot/pkg/output"
	"github.com/ccollicutt/restplot/pkg/pipeline"
)

// ExtractOptions holds command-line options for the extract command.
type ExtractOptions struct {
	ProfileOptions

	Output string
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [flags] [--] <log-file>...",
		Short: "Print extracted records without plotting",
		Long: `Extract timing records from proxy logs and print them sorted by time.

Each text line is "<date time> <epoch seconds> <milliseconds>". With
--step N the records are first averaged over windows of N records.

Example:
  restplot extract -f GET proxy.log
  restplot extract -o json --step 10 -c clusters.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, opts)
		},
	}

	opts.addFlags(cmd, 0)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string, opts *ExtractOptions) error {
	ctx := commandContext(cmd)

	cfg, err := opts.buildConfig(ctx, cmd, args)
	if err != nil {
		return err
	}

	aggregate := opts.Step != 0
	if !aggregate {
		// Window is unused for raw output; keep the profile value valid.
		cfg.Window = max(cfg.Window, 1)
	}
	if err := applyConfig(cfg); err != nil {
		return err
	}

	formatter, err := createFormatter(opts.Output, output.FormatOptions{DataOnly: true})
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, pipeline.WithAggregation(aggregate))
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	report := output.NewReport(result, opts.ConfigFile, cfg.SlowThreshold)
	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	return nil
}
