package quest

import (
	"fmt"
	"sync"
)

// Timeframe tags a quest's intended window. It is carried and validated but
// never evaluated against event timestamps.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeAllTime Timeframe = "all_time"
)

// IsValid returns true for a known timeframe or the empty (absent) value.
func (t Timeframe) IsValid() bool {
	switch t {
	case "", TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeAllTime:
		return true
	default:
		return false
	}
}

// Conditions are extra constraints an event must meet to count. All present
// conditions must hold.
type Conditions struct {
	MinMessageLength *int      `json:"minMessageLength,omitempty" yaml:"minMessageLength,omitempty"`
	RequiresMedia    bool      `json:"requiresMedia,omitempty" yaml:"requiresMedia,omitempty"`
	RoomTypes        []string  `json:"roomType,omitempty" yaml:"roomType,omitempty"`
	Timeframe        Timeframe `json:"timeframe,omitempty" yaml:"timeframe,omitempty"`
}

// QuestDefinition is an immutable catalog entry.
type QuestDefinition struct {
	ID           string       `json:"id" yaml:"id"`
	Title        string       `json:"title" yaml:"title"`
	Description  string       `json:"description" yaml:"description"`
	Points       int          `json:"points" yaml:"points"`
	Total        int          `json:"total" yaml:"total"`
	Category     string       `json:"category" yaml:"category"`
	Difficulty   string       `json:"difficulty" yaml:"difficulty"`
	UnlockLevel  int          `json:"unlockLevel" yaml:"unlockLevel"`
	ActivityType ActivityType `json:"activityType" yaml:"activityType"`
	AutoTrack    bool         `json:"autoTrack" yaml:"autoTrack"`
	Conditions   *Conditions  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

func (d QuestDefinition) validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("quest: definition %q has empty id", d.Title)
	case d.Total <= 0:
		return fmt.Errorf("quest %s: total must be positive, got %d", d.ID, d.Total)
	case d.Points < 0:
		return fmt.Errorf("quest %s: points must not be negative, got %d", d.ID, d.Points)
	case !d.ActivityType.IsValid():
		return fmt.Errorf("quest %s: unknown activity type %q", d.ID, d.ActivityType)
	}
	if c := d.Conditions; c != nil {
		if !c.Timeframe.IsValid() {
			return fmt.Errorf("quest %s: unknown timeframe %q", d.ID, c.Timeframe)
		}
		if c.MinMessageLength != nil && *c.MinMessageLength < 0 {
			return fmt.Errorf("quest %s: negative minMessageLength", d.ID)
		}
	}
	return nil
}

// Catalog is the read-only list of quest definitions, in load order.
type Catalog struct {
	mu     sync.RWMutex
	quests []QuestDefinition
	index  map[string]int
}

// NewCatalog returns an empty catalog; call Load once to populate it.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Load populates the catalog. It returns false without error when the catalog
// is already populated, so repeated initialization is harmless.
func (c *Catalog) Load(defs []QuestDefinition) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.quests) > 0 {
		return false, nil
	}

	index := make(map[string]int, len(defs))
	quests := make([]QuestDefinition, 0, len(defs))
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return false, err
		}
		if _, dup := index[d.ID]; dup {
			return false, fmt.Errorf("quest: duplicate id %q", d.ID)
		}
		index[d.ID] = len(quests)
		quests = append(quests, d.clone())
	}
	c.quests = quests
	c.index = index
	return true, nil
}

// All returns a copy of every definition in catalog order.
func (c *Catalog) All() []QuestDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]QuestDefinition, len(c.quests))
	for i, d := range c.quests {
		out[i] = d.clone()
	}
	return out
}

// Get looks up a definition by id.
func (c *Catalog) Get(id string) (QuestDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return QuestDefinition{}, false
	}
	return c.quests[i].clone(), true
}

// Len returns the number of loaded definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quests)
}

func (d QuestDefinition) clone() QuestDefinition {
	if d.Conditions == nil {
		return d
	}
	cond := *d.Conditions
	if cond.MinMessageLength != nil {
		cond.MinMessageLength = IntPtr(*cond.MinMessageLength)
	}
	if cond.RoomTypes != nil {
		cond.RoomTypes = append([]string(nil), cond.RoomTypes...)
	}
	d.Conditions = &cond
	return d
}
