package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joeblew999/plat-eco/internal/metrics"
)

// SelectionService is the shared selection container. Components read
// snapshots with Get and are notified of writes through Bus.
type SelectionService struct {
	store Store
	bus   *EventBus
	log   *slog.Logger
}

// NewSelectionService creates a selection service over store.
func NewSelectionService(store Store, bus *EventBus, log *slog.Logger) *SelectionService {
	if bus == nil {
		bus = NewEventBus()
	}
	if log == nil {
		log = slog.Default()
	}
	return &SelectionService{store: store, bus: bus, log: log}
}

// Bus returns the bus that carries selection events.
func (s *SelectionService) Bus() *EventBus { return s.bus }

// Get returns the current selection.
func (s *SelectionService) Get(ctx context.Context) (Selection, error) {
	values, rev, err := s.store.Load(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectionFrom(values, rev), nil
}

// Set validates and writes one key. An empty value clears it.
func (s *SelectionService) Set(ctx context.Context, key Key, value string) (Selection, error) {
	if err := s.set(ctx, key, value); err != nil {
		return Selection{}, err
	}
	return s.Get(ctx)
}

// Patch validates every entry first and then writes them in key order.
// Nothing is written when any entry is invalid.
func (s *SelectionService) Patch(ctx context.Context, values map[Key]string) (Selection, error) {
	normalized := make(map[Key]string, len(values))
	for k, v := range values {
		if _, err := ParseKey(string(k)); err != nil {
			return Selection{}, err
		}
		nv, err := NormalizeValue(k, v)
		if err != nil {
			return Selection{}, err
		}
		normalized[k] = nv
	}

	for _, k := range Keys {
		v, ok := normalized[k]
		if !ok {
			continue
		}
		if err := s.write(ctx, k, v); err != nil {
			return Selection{}, err
		}
	}
	return s.Get(ctx)
}

// Clear removes one key.
func (s *SelectionService) Clear(ctx context.Context, key Key) (Selection, error) {
	return s.Set(ctx, key, "")
}

// Filter derives the record filter from the current selection.
func (s *SelectionService) Filter(ctx context.Context) (Filter, error) {
	sel, err := s.Get(ctx)
	if err != nil {
		return Filter{}, err
	}
	return FilterFromSelection(sel), nil
}

// Run relays writes made by other instances to local subscribers. It
// returns immediately for stores that cannot be watched.
func (s *SelectionService) Run(ctx context.Context) error {
	w, ok := s.store.(Watcher)
	if !ok {
		return nil
	}
	err := w.Watch(ctx, func(ev Event) {
		s.log.Debug("selection_remote_change", "key", ev.Key, "revision", ev.Revision, "origin", ev.Origin)
		s.bus.Publish(ev)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *SelectionService) set(ctx context.Context, key Key, value string) error {
	if _, err := ParseKey(string(key)); err != nil {
		metrics.SelectionWritesTotal.WithLabelValues("unknown", "rejected").Inc()
		return err
	}
	nv, err := NormalizeValue(key, value)
	if err != nil {
		metrics.SelectionWritesTotal.WithLabelValues(string(key), "rejected").Inc()
		return err
	}
	return s.write(ctx, key, nv)
}

func (s *SelectionService) write(ctx context.Context, key Key, value string) error {
	ch, err := s.store.Put(ctx, key, value)
	if err != nil {
		metrics.SelectionWritesTotal.WithLabelValues(string(key), "error").Inc()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if !ch.Changed {
		metrics.SelectionWritesTotal.WithLabelValues(string(key), "unchanged").Inc()
		return nil
	}

	metrics.SelectionWritesTotal.WithLabelValues(string(key), "changed").Inc()
	s.log.Info("selection_changed", "key", key, "value", value, "previous", ch.Previous, "revision", ch.Revision)
	s.bus.Publish(Event{
		Key:      key,
		Value:    value,
		Previous: ch.Previous,
		Revision: ch.Revision,
	})
	return nil
}
