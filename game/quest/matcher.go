package quest

import "slices"

// Matches reports whether ev satisfies every condition present on q.
// A quest without conditions matches any event; a present condition whose
// metadata field is missing fails. Timeframe is not evaluated.
func Matches(ev ActivityEvent, q QuestDefinition) bool {
	c := q.Conditions
	if c == nil {
		return true
	}
	md := ev.Metadata
	if md == nil {
		md = &Metadata{}
	}

	if c.MinMessageLength != nil {
		if md.MessageLength == nil || *md.MessageLength < *c.MinMessageLength {
			return false
		}
	}
	if c.RequiresMedia && !md.HasMedia {
		return false
	}
	if c.RoomTypes != nil {
		if md.RoomType == "" || !slices.Contains(c.RoomTypes, md.RoomType) {
			return false
		}
	}
	return true
}
