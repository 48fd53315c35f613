package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/model"
)

var proxiesFlags struct {
	output        string
	template      string
	multiHost     bool
	autoAssociate bool
	hosts         []string
}

var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "Manage the stored proxy list",
}

var proxiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored proxies",
	Args:  cobra.NoArgs,
	RunE:  runProxiesList,
}

var proxiesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a proxy",
	Long: `Add a proxy to the stored list. The template is compiled first and
rejected when malformed.

Examples:
  callisto proxies add --template 'http://ezproxy.example.edu:2048/%p' --host db.example.com
  callisto proxies add --template 'https://%h.ezproxy.example.edu/%p' --multi-host --auto-associate --host journal.example.org`,
	Args: cobra.NoArgs,
	RunE: runProxiesAdd,
}

var proxiesEditCmd = &cobra.Command{
	Use:   "edit INDEX",
	Short: "Edit the proxy at INDEX (see proxies list)",
	Long: `Edit the proxy at INDEX. Only the flags given are changed; --host
replaces the whole host list. A malformed template leaves the proxy untouched.

Examples:
  callisto proxies edit 0 --template 'https://%h.ezproxy.example.edu/%p'
  callisto proxies edit 2 --auto-associate=false --host db.example.com --host books.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runProxiesEdit,
}

var proxiesRemoveCmd = &cobra.Command{
	Use:   "remove INDEX",
	Short: "Remove the proxy at INDEX (see proxies list)",
	Args:  cobra.ExactArgs(1),
	RunE:  runProxiesRemove,
}

func init() {
	rootCmd.AddCommand(proxiesCmd)
	proxiesCmd.AddCommand(proxiesListCmd, proxiesAddCmd, proxiesEditCmd, proxiesRemoveCmd)

	proxiesListCmd.Flags().StringVarP(&proxiesFlags.output, "output", "o", "text", "output format: text, json, csv")

	proxiesAddCmd.Flags().StringVar(&proxiesFlags.template, "template", "", "proxy URL template (required)")
	proxiesAddCmd.Flags().BoolVar(&proxiesFlags.multiHost, "multi-host", false, "the template carries the canonical host (%h)")
	proxiesAddCmd.Flags().BoolVar(&proxiesFlags.autoAssociate, "auto-associate", false, "associate new hosts seen through this proxy without asking")
	proxiesAddCmd.Flags().StringSliceVar(&proxiesFlags.hosts, "host", nil, "canonical host served by the proxy (repeatable)")
	_ = proxiesAddCmd.MarkFlagRequired("template")

	proxiesEditCmd.Flags().StringVar(&proxiesFlags.template, "template", "", "new proxy URL template")
	proxiesEditCmd.Flags().BoolVar(&proxiesFlags.multiHost, "multi-host", false, "the template carries the canonical host (%h)")
	proxiesEditCmd.Flags().BoolVar(&proxiesFlags.autoAssociate, "auto-associate", false, "associate new hosts seen through this proxy without asking")
	proxiesEditCmd.Flags().StringSliceVar(&proxiesFlags.hosts, "host", nil, "canonical host served by the proxy (repeatable, replaces the list)")
}

// proxyList is the result of proxies list.
type proxyList []model.Record

// Table implements cli.Tabular.
func (l proxyList) Table() cli.Table {
	t := cli.Table{Headers: []string{"INDEX", "TEMPLATE", "MULTI-HOST", "AUTO-ASSOCIATE", "HOSTS"}}
	for i, rec := range l {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i),
			rec.Template,
			strconv.FormatBool(rec.MultiHost),
			strconv.FormatBool(rec.AutoAssociate),
			strings.Join(rec.Hosts, ","),
		})
	}
	return t
}

func runProxiesList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(proxiesFlags.output)
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
		return cli.NewCommandError("proxies list", err)
	}
	defer store.Close()

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), proxyList(reg.Records()))
}

func runProxiesAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	p, err := model.New(proxiesFlags.template, proxiesFlags.multiHost, proxiesFlags.autoAssociate, proxiesFlags.hosts...)
	if err != nil {
		return cli.NewCommandError("proxies add", err)
	}

	ctx := context.Background()
	store, reg, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("proxies add", err)
	}
	defer store.Close()

	if err := reg.Add(ctx, p); err != nil {
		return cli.NewCommandError("proxies add", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s (%d hosts)\n", p.Template, len(p.Hosts))
	return nil
}

func runProxiesEdit(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, reg, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("proxies edit", err)
	}
	defer store.Close()

	p, ok := reg.At(index)
	if !ok {
		return cli.NewCommandError("proxies edit", fmt.Errorf("no proxy at index %d", index))
	}
	flags := cmd.Flags()
	err = reg.Edit(ctx, p, func(p *model.Proxy) {
		if flags.Changed("template") {
			p.Template = proxiesFlags.template
		}
		if flags.Changed("multi-host") {
			p.MultiHost = proxiesFlags.multiHost
		}
		if flags.Changed("auto-associate") {
			p.AutoAssociate = proxiesFlags.autoAssociate
		}
		if flags.Changed("host") {
			p.Hosts = proxiesFlags.hosts
		}
	})
	if err != nil {
		return cli.NewCommandError("proxies edit", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Edited %s (%d hosts)\n", p.Template, len(p.Hosts))
	return nil
}

func runProxiesRemove(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, reg, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("proxies remove", err)
	}
	defer store.Close()

	p, ok := reg.At(index)
	if !ok {
		return cli.NewCommandError("proxies remove", fmt.Errorf("no proxy at index %d", index))
	}
	if err := reg.Remove(ctx, p); err != nil {
		return cli.NewCommandError("proxies remove", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", p.Template)
	return nil
}
