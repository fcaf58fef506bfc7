package inventory

import "time"

// Epocher is anything bounded by a validity window.
type Epocher interface {
	ValidFrom() time.Time
	ValidUntil() (time.Time, bool)
}

// Epoch is the start/end pair shared by networks, stations, sensor locations and streams.
// A nil End means the entity is open-ended.
type Epoch struct {
	Start time.Time  `xml:"start"`
	End   *time.Time `xml:"end"`
}

func (e Epoch) ValidFrom() time.Time {
	return e.Start
}

func (e Epoch) ValidUntil() (time.Time, bool) {
	if e.End == nil {
		return time.Time{}, false
	}
	return *e.End, true
}

// MatchEpoch reports whether t lies within [start, end]. Both bounds are inclusive.
func MatchEpoch(e Epocher, t time.Time) bool {
	if t.Before(e.ValidFrom()) {
		return false
	}
	if end, ok := e.ValidUntil(); ok {
		return !t.After(end)
	}
	return true
}
