package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/client"
	"github.com/verte-zerg/lajit/internal/coordinator"
	"github.com/verte-zerg/lajit/internal/ledger"
	"github.com/verte-zerg/lajit/internal/model"
	"github.com/verte-zerg/lajit/internal/store"
)

// runtime wires one durable scope: store, ledgers, registry, active coordinator
// and a single tab for the running command.
type runtime struct {
	catalog *catalog.Catalog
	store   *store.Store
	reg     *coordinator.Registry
	tab     *client.Tab
	logger  *slog.Logger
}

func openRuntime(ctx context.Context, s settings, logger *slog.Logger) (*runtime, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(s.dbPath, s.scope)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	scores := ledger.NewScores(st, ledger.WithLogger(logger.With("component", "scores")))
	items := ledger.NewItems(st, ledger.WithLogger(logger.With("component", "items")))
	reg := coordinator.NewRegistry(logger.With("component", "registry"))
	coord := coordinator.New(scores, items, coordinator.WithLogger(logger.With("component", "coordinator")))
	if err := reg.Install(coord); err != nil {
		closeStore(st, logger)
		return nil, fmt.Errorf("failed to start coordinator: %w", err)
	}

	tab := client.New(reg,
		client.WithLogger(logger.With("component", "tab")),
		client.WithReadyTimeout(s.readyTimeout),
		client.WithCategories(cat.Keys()),
	)
	tab.Start(ctx)
	return &runtime{catalog: cat, store: st, reg: reg, tab: tab, logger: logger}, nil
}

// Close detaches the tab, lets the coordinator finish queued requests and closes the store.
func (r *runtime) Close() {
	r.tab.Close()
	r.reg.Shutdown()
	closeStore(r.store, r.logger)
}

// loadState waits for the initial scores and item stats sent to the tab on start.
func (r *runtime) loadState(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.tab.Await(ctx, model.TypeScoresUpdated); err != nil {
		return fmt.Errorf("failed to load scores: %w", err)
	}
	if err := r.tab.Await(ctx, model.TypeItemStatsUpdated); err != nil {
		return fmt.Errorf("failed to load item stats: %w", err)
	}
	return nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if cerr := st.Close(); cerr != nil {
		logger.Warn("failed to close db", "error", cerr)
	}
}
