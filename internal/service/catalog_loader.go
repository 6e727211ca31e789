package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"eventbot/internal/model"
)

type EventUpserter interface {
	Upsert(ctx context.Context, events []model.Event) error
}

type catalogFile struct {
	Events []catalogEntry `yaml:"events"`
}

type catalogEntry struct {
	ID          uint   `yaml:"id"`
	Title       string `yaml:"title"`
	Date        string `yaml:"date"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`
}

// CatalogLoader copies events from a YAML file into the store.
type CatalogLoader struct {
	events EventUpserter
	path   string
}

func NewCatalogLoader(events EventUpserter, path string) *CatalogLoader {
	return &CatalogLoader{events: events, path: path}
}

// Sync reads the catalog file and upserts every entry. Nothing is written if any entry is invalid.
func (l *CatalogLoader) Sync(ctx context.Context) (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, fmt.Errorf("read catalog %q: %w", l.path, err)
	}
	events, err := ParseCatalog(data)
	if err != nil {
		return 0, fmt.Errorf("parse catalog %q: %w", l.path, err)
	}
	if err := l.events.Upsert(ctx, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

func ParseCatalog(data []byte) ([]model.Event, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(file.Events))
	events := make([]model.Event, 0, len(file.Events))
	for i, entry := range file.Events {
		title := strings.TrimSpace(entry.Title)
		switch {
		case entry.ID == 0:
			return nil, fmt.Errorf("entry %d: id must be positive", i+1)
		case title == "":
			return nil, fmt.Errorf("entry %d: title is required", i+1)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %d", i+1, entry.ID)
		}
		seen[entry.ID] = struct{}{}

		events = append(events, model.Event{
			ID:          entry.ID,
			Title:       title,
			Date:        strings.TrimSpace(entry.Date),
			Location:    strings.TrimSpace(entry.Location),
			Description: strings.TrimSpace(entry.Description),
		})
	}
	return events, nil
}
