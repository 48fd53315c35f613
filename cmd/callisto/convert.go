package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/model"
)

var convertFlags struct {
	output string
}

var convertCmd = &cobra.Command{
	Use:       "convert canonical|proxied URL",
	Short:     "Convert a URL through the stored proxies",
	ValidArgs: []string{"canonical", "proxied"},
	Args:      cobra.ExactArgs(2),
	Long: `Convert a URL to its canonical form (strip the proxy) or to its proxied
form (route it through the proxy that serves its host).

Examples:
  callisto convert canonical https://journal.example.org.ezproxy.example.edu/a
  callisto convert proxied http://journal.example.org/a --output json`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertFlags.output, "output", "o", "text", "output format: text, json")
}

// conversion is the result of the convert command.
type conversion struct {
	Input    string `json:"input"`
	URL      string `json:"url"`
	Template string `json:"template"`
}

func (c conversion) String() string {
	return c.URL
}

func runConvert(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(convertFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, reg, err := openRegistry(context.Background(), cfg, logger)
	if err != nil {
		return cli.NewCommandError("convert", err)
	}
	defer store.Close()

	var (
		out string
		p   *model.Proxy
	)
	switch args[0] {
	case "canonical":
		out, p, err = reg.ToCanonical(args[1], true)
	case "proxied":
		out, p, err = reg.ToProxied(args[1], true)
	default:
		return fmt.Errorf("unknown direction %q (want canonical or proxied)", args[0])
	}
	if err != nil {
		return cli.NewCommandError("convert", err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), conversion{
		Input:    args[1],
		URL:      out,
		Template: p.Template,
	})
}
