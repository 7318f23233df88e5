// Package checkconfig implements `datavet check-config`: parse and validate a
// configuration file without touching any connection.
package checkconfig

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/datavet/datavet/cmd/internal/cmdutil"
	"github.com/datavet/datavet/config"
)

func Command() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate a configuration file without running anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return errors.Wrapf(err, "loading %s", configPath)
			}

			enabled := 0
			for _, v := range cfg.Validations {
				if v.IsEnabled() {
					enabled++
				}
			}
			logger.Info().
				Int("connections", len(cfg.Connections)).
				Int("validations", len(cfg.Validations)).
				Int("enabled", enabled).
				Int("reporters", len(cfg.Reporters)).
				Msg("configuration is valid")
			fmt.Printf("%s: OK (%d validations, %d enabled)\n", configPath, len(cfg.Validations), enabled)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"datavet.yaml",
		"path to the validation configuration file",
	)
	cmdutil.RegisterLoggerFlags(cmd)
	return cmd
}
