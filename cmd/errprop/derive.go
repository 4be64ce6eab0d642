package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/logging"
	"github.com/fyrsmithlabs/errprop/internal/worksheet"
)

// runOptions are the flags shared by derive and eval.
type runOptions struct {
	format          string
	precision       int
	noColor         bool
	watch           bool
	metricsTextfile string
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", "", "output format: plain, latex or json (default render.format)")
	f.IntVarP(&o.precision, "precision", "p", 0, "decimals in numeric lines, overriding the worksheet")
	f.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	f.BoolVarP(&o.watch, "watch", "w", false, "re-run whenever the worksheet file changes")
	f.StringVar(&o.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after each run")
}

func newDeriveCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "derive FILE",
		Short: "Print the derivation of a worksheet's last step",
		Long: `Evaluate a worksheet and print the derivation of its last step.

The first line is the symbolic formula; each following line substitutes one
intermediate result, ending with the numeric expression. The final value and
its propagated error close the plain output.

Examples:
  errprop derive pendulum.yaml
  errprop derive --format latex --precision 2 pendulum.yaml
  errprop derive --watch --metrics-textfile /var/lib/node_exporter/errprop.prom pendulum.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, root.app, opts, worksheet.ModeDerive, args[0])
		},
	}
	opts.bind(cmd)
	return cmd
}

// execute runs the worksheet at path once, or under a watcher with --watch.
func execute(cmd *cobra.Command, a *app, opts *runOptions, mode worksheet.Mode, path string) error {
	ctx := logging.WithWorksheet(cmd.Context(), path)

	precisionSet := cmd.Flags().Changed("precision")
	if precisionSet && opts.precision < 0 {
		return calcerr.Usage(string(mode), "precision must be non-negative, got %d", opts.precision)
	}

	format := opts.format
	if format == "" {
		format = a.cfg.Render.Format
	}
	p, err := newPrinter(cmd.OutOrStdout(), format, a.cfg.Render.Color && !opts.noColor)
	if err != nil {
		return err
	}

	var (
		reg     *prometheus.Registry
		metrics *worksheet.Metrics
	)
	if opts.metricsTextfile != "" {
		reg = prometheus.NewRegistry()
		metrics = worksheet.NewMetrics(reg)
	}
	runner := a.runner(metrics)

	once := func(ctx context.Context) error {
		ws, err := worksheet.Load(path)
		if err != nil {
			return err
		}
		if precisionSet {
			ws.Precision = &opts.precision
		}

		res, runErr := runner.Run(ctx, ws, mode)
		if reg != nil {
			if err := worksheet.WriteTextfile(opts.metricsTextfile, reg); err != nil {
				a.logger.Warn(ctx, "failed to write metrics textfile",
					zap.String("path", opts.metricsTextfile), zap.Error(err))
			}
		}
		if runErr != nil {
			return runErr
		}

		if mode == worksheet.ModeDerive {
			return p.derivation(path, res)
		}
		return p.results(path, res)
	}

	if !opts.watch {
		return once(ctx)
	}

	w, err := worksheet.NewWatcher(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(logging.WithLogger(ctx, a.logger), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errOut, err := newPrinter(cmd.ErrOrStderr(), format, a.cfg.Render.Color && !opts.noColor)
	if err != nil {
		return err
	}
	err = w.Run(ctx, func(ctx context.Context) error {
		// A failed run is reported here; the watcher keeps going.
		if err := once(ctx); err != nil {
			errOut.failure(err)
		}
		if err := a.tel.ForceFlush(ctx); err != nil {
			a.logger.Debug(ctx, "telemetry flush failed", zap.Error(err))
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
