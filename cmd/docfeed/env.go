package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/config"
	"github.com/abelbrown/docfeed/internal/filters"
	"github.com/abelbrown/docfeed/internal/logging"
	"github.com/abelbrown/docfeed/internal/store"
	"github.com/abelbrown/docfeed/internal/tags"
)

// env is everything a command needs to talk to the server and to local state.
type env struct {
	cfg     *config.Config
	store   *store.Store
	client  *catalog.Client
	filters *filters.Store
	snap    tagSnapshot
}

func openEnv(cfg *config.Config, fresh bool) (*env, error) {
	if err := os.MkdirAll(cfg.DataPath(), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var slot filters.Slot = st.Slot(cfg.Session, filters.SlotName)
	if fresh {
		slot = filters.NewMemorySlot(nil)
	}

	client := catalog.NewClient(cfg.Server.URL, cfg.Timeout(),
		catalog.WithMutationRate(rate.Limit(cfg.Batch.RatePerSecond), cfg.Batch.Burst))

	logging.Info("environment ready", "server", cfg.Server.URL, "session", cfg.Session, "fresh", fresh)
	return &env{
		cfg:     cfg,
		store:   st,
		client:  client,
		filters: filters.Open(slot),
		snap:    tagSnapshot{store: st, server: cfg.Server.URL},
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// loadTags fetches the tag list, falling back to the last snapshot taken
// for this server. cached reports that the fallback was used.
func (e *env) loadTags(ctx context.Context) (tc *tags.Cache, cached bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()

	list, err := e.client.ListTags(ctx)
	if err == nil {
		if saveErr := e.snap.SaveTags(list); saveErr != nil {
			logging.Warn("could not save tag snapshot", "error", saveErr)
		}
		return tags.New(list), false, nil
	}
	if snap, ok, snapErr := e.snap.LoadTags(); snapErr == nil && ok {
		return tags.New(snap), true, nil
	}
	return nil, false, err
}

// tagSnapshot keys the store's tag snapshots by server URL.
type tagSnapshot struct {
	store  *store.Store
	server string
}

func (s tagSnapshot) SaveTags(list []catalog.Tag) error {
	return s.store.SaveTags(s.server, list)
}

func (s tagSnapshot) LoadTags() ([]catalog.Tag, bool, error) {
	list, savedAt, ok, err := s.store.LoadTags(s.server)
	if ok {
		logging.Debug("using tag snapshot", "server", s.server, "age", time.Since(savedAt).Round(time.Second))
	}
	return list, ok, err
}
