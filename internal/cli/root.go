// Package cli provides the command-line interface for restplot.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/restplot/internal/cli/commands"
	"github.com/ccollicutt/restplot/internal/cli/plugins"
	"github.com/ccollicutt/restplot/pkg/logger"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	return execute(NewRootCommand(), os.Args[1:])
}

func execute(rootCmd *cobra.Command, args []string) int {
	defer func() { _ = logger.Sync() }()
	commands.ExitCode = commands.ExitOK

	// Check if the first argument might be a plugin command
	if len(args) > 0 && isCommandName(args[0]) && !isBuiltinCommand(rootCmd, args[0]) {
		if pluginPath, err := plugins.FindPlugin(args[0]); err == nil {
			return plugins.Execute(pluginPath, args[1:])
		}
		// Plugin not found - will fall through to Cobra which will show error
	}

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if len(args) > 0 && isCommandName(args[0]) && !isBuiltinCommand(rootCmd, args[0]) {
			_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), plugins.FormatNotFoundError(args[0]))
			return commands.ExitFailure
		}
		// SilenceErrors prevents Cobra from printing this
		_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return commands.ExitCodeFor(err)
	}
	return commands.ExitCode
}

func isCommandName(arg string) bool {
	return arg != "" && arg[0] != '-'
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "restplot",
		Short: "Plot REST request execution times from proxy logs",
		Long: `restplot reads REST proxy logs, pulls the date, time and execution time
out of every matching line, and plots the execution time over a sliding
average as a PNG chart.

Lines are split on whitespace and fields are picked by token position.
Colour escape prefixes before the date are removed, and execution times
such as "1.234s" are read as milliseconds.

PLUGINS:
  restplot runs plugins for commands it does not know. Plugins are
  standalone binaries named restplot-<command>.

  Plugin locations (searched in order):
    1. Same directory as the restplot binary
    2. ~/.restplot/plugins/
    3. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(commands.LogLevelFlag, "", "Log level (debug|info|warn|error), overrides the profile")

	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
