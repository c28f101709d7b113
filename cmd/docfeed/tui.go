package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/docfeed/internal/batch"
	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/config"
	"github.com/abelbrown/docfeed/internal/feed"
	"github.com/abelbrown/docfeed/internal/jobs"
	"github.com/abelbrown/docfeed/internal/logging"
	"github.com/abelbrown/docfeed/internal/otel"
	"github.com/abelbrown/docfeed/internal/ui"
)

func runTUI(parent context.Context, cfg *config.Config, f rootFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	e, err := openEnv(cfg, f.fresh)
	if err != nil {
		return err
	}
	defer e.Close()

	order, err := feed.ParseOrder(cfg.Feed.Order)
	if err != nil {
		return err
	}

	// Event journal + ring buffer for the debug overlay
	journalFile, err := os.OpenFile(cfg.EventLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening event journal: %w", err)
	}
	defer journalFile.Close()
	journal := otel.NewJournal(journalFile)
	defer journal.Close()
	ring := otel.NewRing(0)
	journal.AttachRing(ring)
	journal.Info(otel.KindStartup, version)

	ctrl := feed.NewController(e.filters, feed.Options{Order: order, Query: cfg.Feed.Query})
	dispatcher := batch.NewDispatcher(e.client, cfg.Batch.Concurrency)
	poller := jobs.NewPoller(e.client, cfg.PollInterval())

	cmds := ui.Commands{
		FetchPage:  ui.FetchPageCmd(ctx, feed.NewFetcher(e.client)),
		ApplyBatch: ui.ApplyBatchCmd(ctx, dispatcher),
		LoadTags:   ui.LoadTagsCmd(ctx, e.client, e.snap, cfg.Timeout()),
		KickJobs:   poller.Kick,
	}
	app := ui.NewApp(ctrl, cmds, ui.Options{
		PrefetchThreshold: cfg.Feed.PrefetchThreshold,
		Journal:           journal,
		Ring:              ring,
	})

	program := tea.NewProgram(app, tea.WithAltScreen())

	poller.Start(ctx, func(s catalog.JobStatus) {
		program.Send(ui.JobStatusMsg{Status: s})
	})

	start := time.Now()
	_, runErr := program.Run()

	// Context cancellation is the only stop signal for the poller.
	cancel()
	poller.Wait()

	journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindShutdown, Dur: time.Since(start), Msg: journal.Session()})
	logging.Info("session ended", "uptime", time.Since(start).Round(time.Second))
	if runErr != nil {
		return fmt.Errorf("running TUI: %w", runErr)
	}
	return nil
}
