// Package main implements the errprop CLI: it evaluates measurement
// worksheets and prints the step-by-step derivation of their results.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if opts.app != nil {
		if cerr := opts.app.close(ctx); cerr != nil {
			fmt.Fprintf(stderr, "warning: %v\n", cerr)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	logLevel   string

	app *app
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "errprop",
		Short: "Propagate measurement uncertainties and show the derivation",
		Long: `errprop evaluates worksheets of measured quantities with uncertainties.

Each quantity carries values and standard errors; every step of a worksheet
propagates the errors to its result. In derive mode the last result is
printed as a LaTeX derivation, from the symbolic formula down to the number.

Examples:
  # Print the derivation of the last step
  errprop derive pendulum.yaml

  # Print every step's value and error
  errprop eval pendulum.yaml

  # Re-derive whenever the worksheet is saved
  errprop derive --watch pendulum.yaml`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			a, err := newApp(cmd.Context(), opts.configPath, opts.logLevel)
			if err != nil {
				return err
			}
			opts.app = a
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/errprop/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	cmd.AddCommand(newDeriveCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd, opts
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "errprop %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", gitCommit)
			fmt.Fprintf(out, "  built:  %s\n", buildDate)
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
		},
	}
}
