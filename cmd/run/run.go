// Package run implements the `datavet run` command: load the configuration,
// execute the validation suite, emit reports, and exit with the run verdict.
package run

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/datavet/datavet/cmd/internal/cmdutil"
	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/connector"
	"github.com/datavet/datavet/report"
	"github.com/datavet/datavet/validate"
)

func Command() *cobra.Command {
	var (
		configPath  string
		failFast    bool
		parallel    bool
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured validation suite.",
		Long:  `Run executes every enabled validation from the configuration file and reports the aggregated results. The exit code is 0 when everything passed, 1 on any failure or error, and 2 when the run passed with warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			// os.Exit does not unwind defers, so everything that must release
			// resources (the connection registry and the metrics listener)
			// runs inside runSuite and only the final exit happens here.
			code, err := runSuite(context.Background(), logger, configPath, failFast, parallel, withMetrics)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"datavet.yaml",
		"path to the validation configuration file",
	)
	cmd.PersistentFlags().BoolVar(
		&failFast,
		"fail-fast",
		false,
		"abort the run on the first failure or error",
	)
	cmd.PersistentFlags().BoolVar(
		&parallel,
		"parallel",
		false,
		"run validations in parallel regardless of the configured setting",
	)
	cmd.PersistentFlags().BoolVar(
		&withMetrics,
		"metrics",
		false,
		"expose prometheus metrics while the run is in progress",
	)
	cmdutil.RegisterLoggerFlags(cmd)
	cmdutil.RegisterMetricsFlags(cmd)
	return cmd
}

// runSuite executes the full run and returns the process exit code. All
// connections are disconnected and the metrics listener is stopped before it
// returns, on success and failure alike.
func runSuite(
	ctx context.Context, logger zerolog.Logger, configPath string, failFast, parallel, withMetrics bool,
) (int, error) {
	if withMetrics {
		metrics := cmdutil.StartMetricsServer(logger)
		defer metrics.Shutdown(ctx)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, errors.Wrapf(err, "loading %s", configPath)
	}
	if failFast {
		cfg.Settings.FailFast = true
	}
	if parallel {
		cfg.Settings.ParallelExecution = true
	}

	reporters, err := report.FromConfig(cfg.Reporters, logger)
	if err != nil {
		return 0, err
	}

	registry := connector.NewRegistry(
		logger,
		cfg.Connections,
		connector.WithRetrySettings(connector.SettingsRetry(cfg.Settings)),
		connector.WithRowsPerSecond(cfg.Settings.RowsPerSecond),
	)
	defer registry.CloseAll(ctx)

	summary, err := validate.Run(ctx, logger, cfg, registry)
	if err != nil {
		return 0, errors.Wrapf(err, "error running validations")
	}

	report.Generate(logger, reporters, summary)
	return summary.ExitCode(), nil
}
