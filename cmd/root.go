package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datavet/datavet/cmd/checkconfig"
	"github.com/datavet/datavet/cmd/run"
)

var rootCmd = &cobra.Command{
	Use:   "datavet",
	Short: "Declarative validation for data migrations and ETL pipelines",
	Long:  `datavet runs a YAML-declared suite of validations (row counts, data quality, schemas, business rules, new columns) between source and target datasets and reports the results.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(run.Command())
	rootCmd.AddCommand(checkconfig.Command())
}
