package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/storage"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and stored proxy templates",
	Long: `Load the configuration, open the configured proxy store and compile
every stored template. Malformed templates are listed with the reason they
were rejected; the registry skips them at startup.

Examples:
  callisto validate
  callisto validate --config /etc/callisto/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration valid")

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}
	defer store.Close()

	records, err := store.Load(context.Background())
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	var bad int
	for i, rec := range records {
		if _, err := model.FromRecord(rec); err != nil {
			bad++
			fmt.Fprintf(out, "✗ proxy %d: %v\n", i, err)
		}
	}
	if bad > 0 {
		return cli.NewCommandError("validate", fmt.Errorf("%d of %d stored templates are malformed", bad, len(records)))
	}

	fmt.Fprintf(out, "✓ %d stored templates compile\n", len(records))
	return nil
}
