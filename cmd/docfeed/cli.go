package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/docfeed/internal/batch"
	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/config"
	"github.com/abelbrown/docfeed/internal/feed"
	"github.com/abelbrown/docfeed/internal/logging"
	"github.com/abelbrown/docfeed/internal/tags"
)

// cfgFunc returns the config loaded by the root command's pre-run hook.
type cfgFunc func() *config.Config

func newListCmd(cfg cfgFunc, f *rootFlags) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the feed grouped by year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(cfg(), f.fresh)
			if err != nil {
				return err
			}
			defer e.Close()

			order, err := feed.ParseOrder(e.cfg.Feed.Order)
			if err != nil {
				return err
			}
			tc, _, err := e.loadTags(ctx)
			if err != nil {
				logging.Warn("list: tags unavailable", "error", err)
			}

			ctrl := feed.NewController(e.filters, feed.Options{Order: order, Query: e.cfg.Feed.Query})
			fetcher := feed.NewFetcher(e.client)

			next, ok := ctrl.Start(), true
			for n := 0; ok && n < pages; n++ {
				page, err := next.Run(ctx, fetcher)
				if res := ctrl.Resolve(next, page, err); res.Err != nil {
					return res.Err
				}
				next, ok = ctrl.Next()
			}

			out := cmd.OutOrStdout()
			printItems(out, ctrl.Items(), tc)
			if ctrl.HasNext() {
				fmt.Fprintf(out, "... more documents (use --pages %d)\n", pages+1)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch")
	return cmd
}

// printItems writes feed items as plain text, one document per line.
func printItems(w io.Writer, items []feed.Item, tc *tags.Cache) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No documents.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		if it.Separator {
			fmt.Fprintf(tw, "== %s ==\n", it.Label)
			continue
		}
		names := make([]string, 0, len(it.Doc.Tags))
		for _, id := range it.Doc.Tags {
			names = append(names, tc.Resolve(id).Name)
		}
		title := it.Doc.Title
		if title == "" {
			title = it.Doc.OriginalFilename
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Doc.ID, it.Doc.Imported().Format("2006-01-02"), title, strings.Join(names, ", "))
	}
	tw.Flush()
}

func newTagsCmd(cfg cfgFunc) *cobra.Command {
	list := func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cfg(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		tc, cached, err := e.loadTags(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cached {
			fmt.Fprintln(out, "(server unreachable; showing saved tag list)")
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
		for _, t := range tc.Active() {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.Color)
		}
		return tw.Flush()
	}

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List or delete tags",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tags",
			Args:  cobra.NoArgs,
			RunE:  list,
		},
		newTagsDeleteCmd(cfg),
	)
	return cmd
}

func newTagsDeleteCmd(cfg cfgFunc) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <tag>...",
		Short: "Delete tags from the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete tags without --yes")
			}
			e, err := openEnv(cfg(), false)
			if err != nil {
				return err
			}
			defer e.Close()
			tc, _, _ := e.loadTags(cmd.Context())

			ids := make([]catalog.TagID, 0, len(args))
			for _, arg := range args {
				id, err := resolveTag(arg, tc)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				if err := e.client.DeleteTag(cmd.Context(), id); err != nil {
					return err
				}
				// A filter on a deleted tag would match nothing.
				if removed, err := e.filters.Remove(id); err != nil {
					logging.Warn("could not drop filter for deleted tag", "tag", id, "error", err)
				} else if removed {
					fmt.Fprintf(out, "%d\tdeleted (filter removed)\n", id)
					continue
				}
				fmt.Fprintf(out, "%d\tdeleted\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func newFilterCmd(cfg cfgFunc, f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or edit the session's tag filters",
	}

	show := func(cmd *cobra.Command, e *env, tc *tags.Cache) {
		active := e.filters.Active()
		if len(active) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no tag filters")
			return
		}
		for _, id := range active {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, tc.Resolve(id).Name)
		}
	}

	// edit runs fn for every tag argument, then prints the resulting set.
	edit := func(use, short string, fn func(e *env, id catalog.TagID) (bool, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <tag>...",
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openEnv(cfg(), f.fresh)
				if err != nil {
					return err
				}
				defer e.Close()
				tc, _, _ := e.loadTags(cmd.Context())

				for _, arg := range args {
					id, err := resolveTag(arg, tc)
					if err != nil {
						return err
					}
					if _, err := fn(e, id); err != nil {
						return fmt.Errorf("saving filters: %w", err)
					}
				}
				show(cmd, e, tc)
				return nil
			},
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show active tag filters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openEnv(cfg(), f.fresh)
				if err != nil {
					return err
				}
				defer e.Close()
				tc, _, _ := e.loadTags(cmd.Context())
				show(cmd, e, tc)
				return nil
			},
		},
		edit("add", "Add tag filters", func(e *env, id catalog.TagID) (bool, error) { return e.filters.Add(id) }),
		edit("remove", "Remove tag filters", func(e *env, id catalog.TagID) (bool, error) { return e.filters.Remove(id) }),
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every tag filter",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openEnv(cfg(), f.fresh)
				if err != nil {
					return err
				}
				defer e.Close()
				if _, err := e.filters.Clear(); err != nil {
					return fmt.Errorf("saving filters: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "no tag filters")
				return nil
			},
		},
	)
	return cmd
}

// resolveTag accepts a numeric tag ID or a tag name (case-insensitive).
func resolveTag(arg string, tc *tags.Cache) (catalog.TagID, error) {
	if n, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return catalog.TagID(n), nil
	}
	for _, t := range tc.Active() {
		if strings.EqualFold(t.Name, arg) {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("no tag named %q", arg)
}

func newStatusCmd(cfg cfgFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server's job status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cfg(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			s, err := e.client.JobStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatJobStatus(s))
			return nil
		},
	}
}

func formatJobStatus(s catalog.JobStatus) string {
	if !s.Busy {
		return "idle"
	}
	out := fmt.Sprintf("busy: %d pending", s.Pending())
	if s.Current != "" {
		out += ", " + s.Current
	}
	if s.Progress > 0 {
		out += fmt.Sprintf(" (%d%%)", s.Progress)
	}
	return out
}

func newApplyCmd(cfg cfgFunc) *cobra.Command {
	var (
		tagArg string
		ocr    bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "apply <delete|reprocess|add-tag|remove-tag> <id>...",
		Short: "Apply a mutation to several documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := batch.ParseKind(args[0])
			if err != nil {
				return err
			}
			ids, err := parseDocIDs(args[1:])
			if err != nil {
				return err
			}
			if kind == batch.Delete && !yes {
				return errors.New("refusing to delete without --yes")
			}

			e, err := openEnv(cfg(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			m := batch.Mutation{Kind: kind, ForceOCR: ocr}
			if tagArg != "" {
				tc, _, _ := e.loadTags(cmd.Context())
				if m.Tag, err = resolveTag(tagArg, tc); err != nil {
					return err
				}
			}
			if err := m.Validate(); err != nil {
				return err
			}

			d := batch.NewDispatcher(e.client, e.cfg.Batch.Concurrency)
			report := d.Apply(cmd.Context(), m, ids)
			printReport(cmd.OutOrStdout(), report)
			return report.Err()
		},
	}
	cmd.Flags().StringVar(&tagArg, "tag", "", "tag ID or name for add-tag/remove-tag")
	cmd.Flags().BoolVar(&ocr, "ocr", false, "force OCR when reprocessing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func parseDocIDs(args []string) ([]catalog.DocID, error) {
	ids := make([]catalog.DocID, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid document ID %q", a)
		}
		ids = append(ids, catalog.DocID(n))
	}
	return ids, nil
}

func printReport(w io.Writer, r batch.Report) {
	for _, o := range r.Outcomes {
		if o.OK() {
			fmt.Fprintf(w, "%d\tok\n", o.ID)
		} else {
			fmt.Fprintf(w, "%d\tfailed: %v\n", o.ID, o.Err)
		}
	}
	fmt.Fprintf(w, "%s: %d done, %d failed\n", r.Mutation.Kind, len(r.Succeeded()), len(r.Failed()))
}

func newPatchCmd(cfg cfgFunc) *cobra.Command {
	var title, language, docDate string
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Edit a document's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseDocIDs(args)
			if err != nil {
				return err
			}

			var p catalog.Patch
			if cmd.Flags().Changed("title") {
				p.Title = &title
			}
			if cmd.Flags().Changed("language") {
				p.Language = &language
			}
			if cmd.Flags().Changed("doc-date") {
				ts, err := parseDocDate(docDate)
				if err != nil {
					return err
				}
				p.Extracted = &catalog.ExtractedPatch{DocDate: ts}
			}
			if p.Empty() {
				return errors.New("nothing to change (use --title, --language or --doc-date)")
			}

			e, err := openEnv(cfg(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.client.PatchDocument(cmd.Context(), ids[0], p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\tupdated\n", ids[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&language, "language", "", "new language code")
	cmd.Flags().StringVar(&docDate, "doc-date", "", "document date as YYYY-MM-DD")
	return cmd
}

// parseDocDate parses a YYYY-MM-DD date in local time. The server ignores a
// null date, so there is no way to clear one.
func parseDocDate(s string) (*int64, error) {
	if s == "" || strings.EqualFold(s, "none") {
		return nil, errors.New("--doc-date needs a date: the server cannot clear a document date")
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --doc-date %q (want YYYY-MM-DD)", s)
	}
	ts := t.Unix()
	return &ts, nil
}

func newShowCmd(cfg cfgFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseDocIDs(args)
			if err != nil {
				return err
			}
			e, err := openEnv(cfg(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			doc, err := e.client.GetDocument(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
