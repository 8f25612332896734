package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eliseohh/jikanwaribot/internal/store"
	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

// Load builds a catalog from the synced course documents.
func Load(ctx context.Context, db *store.DB) (*timetable.Catalog, error) {
	names, err := db.Docs(ctx, CourseCollection)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	entries := make([]timetable.Entry, 0, len(names))
	for _, name := range names {
		doc, err := db.Get(ctx, CourseCollection, name)
		if err != nil {
			return nil, fmt.Errorf("load course %q: %w", name, err)
		}
		e, err := decodeEntry(name, doc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return timetable.NewCatalog(entries)
}

func decodeEntry(name string, doc store.Document) (timetable.Entry, error) {
	e := timetable.Entry{Name: name}
	var offered []string
	targets := map[string]any{
		"credit":  &e.Credit,
		"week1":   &e.Day1,
		"week2":   &e.Day2,
		"hour":    &e.Period,
		"offered": &offered,
	}
	for field, dst := range targets {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return e, fmt.Errorf("course %q field %s: %w", name, field, err)
		}
	}
	for _, key := range offered {
		s, err := timetable.SlotFromKey(key)
		if err != nil {
			return e, fmt.Errorf("course %q: %w", name, err)
		}
		e.Offered = append(e.Offered, s)
	}
	return e, nil
}
