// Package resource reads quest catalog files.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/trailmate/server/game/quest"
	"gopkg.in/yaml.v3"
)

// Catalog file formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ---- Catalog file structures ----

type conditionsEntry struct {
	MinMessageLength *int            `json:"minMessageLength,omitempty" yaml:"minMessageLength,omitempty"`
	RequiresMedia    bool            `json:"requiresMedia,omitempty" yaml:"requiresMedia,omitempty"`
	RoomType         []string        `json:"roomType,omitempty" yaml:"roomType,omitempty"`
	Timeframe        quest.Timeframe `json:"timeframe,omitempty" yaml:"timeframe,omitempty"`
}

// questEntry mirrors quest.QuestDefinition, except that an omitted
// autoTrack means true.
type questEntry struct {
	ID           string             `json:"id" yaml:"id"`
	Title        string             `json:"title" yaml:"title"`
	Description  string             `json:"description,omitempty" yaml:"description,omitempty"`
	Points       int                `json:"points" yaml:"points"`
	Total        int                `json:"total" yaml:"total"`
	Category     string             `json:"category,omitempty" yaml:"category,omitempty"`
	Difficulty   string             `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	UnlockLevel  int                `json:"unlockLevel,omitempty" yaml:"unlockLevel,omitempty"`
	ActivityType quest.ActivityType `json:"activityType" yaml:"activityType"`
	AutoTrack    *bool              `json:"autoTrack,omitempty" yaml:"autoTrack,omitempty"`
	Conditions   *conditionsEntry   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

type catalogFile struct {
	Quests []questEntry `json:"quests" yaml:"quests"`
}

func (e questEntry) definition() quest.QuestDefinition {
	d := quest.QuestDefinition{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Points:       e.Points,
		Total:        e.Total,
		Category:     e.Category,
		Difficulty:   e.Difficulty,
		UnlockLevel:  e.UnlockLevel,
		ActivityType: e.ActivityType,
		AutoTrack:    e.AutoTrack == nil || *e.AutoTrack,
	}
	if c := e.Conditions; c != nil {
		d.Conditions = &quest.Conditions{
			MinMessageLength: c.MinMessageLength,
			RequiresMedia:    c.RequiresMedia,
			RoomTypes:        c.RoomType,
			Timeframe:        c.Timeframe,
		}
	}
	return d
}

func entryFor(d quest.QuestDefinition) questEntry {
	auto := d.AutoTrack
	e := questEntry{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Points:       d.Points,
		Total:        d.Total,
		Category:     d.Category,
		Difficulty:   d.Difficulty,
		UnlockLevel:  d.UnlockLevel,
		ActivityType: d.ActivityType,
		AutoTrack:    &auto,
	}
	if c := d.Conditions; c != nil {
		e.Conditions = &conditionsEntry{
			MinMessageLength: c.MinMessageLength,
			RequiresMedia:    c.RequiresMedia,
			RoomType:         c.RoomTypes,
			Timeframe:        c.Timeframe,
		}
	}
	return e
}

// ---- CatalogLoader ----

// CatalogLoader reads a quest catalog from a YAML or JSON file. The file holds
// either a top-level list of quests or an object with a "quests" list.
type CatalogLoader struct {
	Path   string
	Quests []quest.QuestDefinition
}

// NewCatalogLoader creates a CatalogLoader for path.
func NewCatalogLoader(path string) *CatalogLoader {
	return &CatalogLoader{Path: path}
}

// Load reads and decodes the file. The format follows the extension:
// .json is JSON, anything else is YAML.
func (cl *CatalogLoader) Load() error {
	data, err := os.ReadFile(cl.Path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", cl.Path, err)
	}
	entries, err := Decode(data, FormatForPath(cl.Path))
	if err != nil {
		return fmt.Errorf("resource: parse %s: %w", cl.Path, err)
	}
	cl.Quests = entries
	return nil
}

// FormatForPath guesses the catalog format from a file extension.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode parses catalog bytes in the given format.
func Decode(data []byte, format string) ([]quest.QuestDefinition, error) {
	var entries []questEntry
	switch format {
	case FormatJSON:
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &entries); err != nil {
				return nil, err
			}
			break
		}
		var f catalogFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		entries = f.Quests
	case FormatYAML:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, err
		}
		if len(root.Content) == 0 {
			return nil, nil
		}
		if root.Content[0].Kind == yaml.SequenceNode {
			if err := root.Content[0].Decode(&entries); err != nil {
				return nil, err
			}
			break
		}
		var f catalogFile
		if err := root.Content[0].Decode(&f); err != nil {
			return nil, err
		}
		entries = f.Quests
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}

	defs := make([]quest.QuestDefinition, len(entries))
	for i, e := range entries {
		defs[i] = e.definition()
	}
	return defs, nil
}

// Encode writes defs as a catalog document in the given format.
func Encode(w io.Writer, defs []quest.QuestDefinition, format string) error {
	f := catalogFile{Quests: make([]questEntry, len(defs))}
	for i, d := range defs {
		f.Quests[i] = entryFor(d)
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("resource: unknown catalog format %q", format)
	}
}

// LoadCatalog populates catalog from path, or from quest.DefaultQuests when
// path is empty.
func LoadCatalog(catalog *quest.Catalog, path string) error {
	defs := quest.DefaultQuests()
	if path != "" {
		cl := NewCatalogLoader(path)
		if err := cl.Load(); err != nil {
			return err
		}
		defs = cl.Quests
	}
	if _, err := catalog.Load(defs); err != nil {
		return fmt.Errorf("resource: %w", err)
	}
	return nil
}
