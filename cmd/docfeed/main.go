// Command docfeed is a terminal client for a document catalog server.
//
// Usage:
//
//	docfeed                      Browse the document feed (TUI)
//	docfeed list [--pages N]     Print the feed, grouped by year
//	docfeed tags                 List tags
//	docfeed tags delete <tag>... Delete tags (needs --yes)
//	docfeed filter ...           Show or edit the session's tag filters
//	docfeed status               Show the server's job status
//	docfeed apply <kind> ids...  Run a batch mutation
//	docfeed patch <id> ...       Edit document metadata
//	docfeed show <id>            Print one document as JSON
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abelbrown/docfeed/internal/config"
	"github.com/abelbrown/docfeed/internal/logging"
)

var version = "dev"

// flags shared by every command
type rootFlags struct {
	server  string
	session string
	order   string
	query   string
	config  string
	fresh   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f rootFlags
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "docfeed",
		Short:         "Browse and batch-edit a document catalog",
		Long:          "docfeed shows a catalog server's documents as an endless feed grouped by year, with tag filters, full-text search and batch mutations.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			var err error
			cfg, err = loadConfig(f)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logging.Version = version
			if err := logging.Init(cfg.LogDir(), cfg.LogLevel); err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), cfg, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.server, "server", "", "catalog server URL (default http://localhost:8000)")
	pf.StringVar(&f.session, "session", "", "session whose tag filters are used")
	pf.BoolVar(&f.fresh, "fresh", false, "start with no tag filters and do not save changes")
	pf.StringVar(&f.order, "order", "", "sort order: imported or extracted")
	pf.StringVar(&f.query, "query", "", "initial full-text query")
	pf.StringVar(&f.config, "config", "", "path to config file")

	cfgFn := func() *config.Config { return cfg }
	root.AddCommand(
		newListCmd(cfgFn, &f),
		newTagsCmd(cfgFn),
		newFilterCmd(cfgFn, &f),
		newStatusCmd(cfgFn),
		newApplyCmd(cfgFn),
		newPatchCmd(cfgFn),
		newShowCmd(cfgFn),
		newEventsCmd(cfgFn),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docfeed %s\n", version)
		},
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(f rootFlags) (*config.Config, error) {
	path := f.config
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if f.server != "" {
		cfg.Server.URL = strings.TrimRight(f.server, "/")
	}
	if f.session != "" {
		cfg.Session = f.session
	}
	if f.order != "" {
		cfg.Feed.Order = f.order
	}
	if f.query != "" {
		cfg.Feed.Query = f.query
	}
	return cfg, nil
}
