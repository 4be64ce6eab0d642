package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/errprop/internal/worksheet"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "Print the value and error of every worksheet step",
		Long: `Evaluate a worksheet without capturing a derivation and print each
step's value with its propagated standard error.

Examples:
  errprop eval pendulum.yaml
  errprop eval --format json pendulum.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, root.app, opts, worksheet.ModeEval, args[0])
		},
	}
	opts.bind(cmd)
	return cmd
}
