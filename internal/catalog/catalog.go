// Package catalog holds the immutable track list loaded from tracks.csv.
//
// A Snapshot is read-only once built; the Service swaps whole snapshots on
// reload so readers never observe a half-updated catalog.
package catalog

// Track is one distributable content item.
//
// Date and Slot are optional: a track with both set belongs to a scheduled
// broadcast; a track without them participates only in the per-recipient
// daily rotation. AudioID is an opaque Telegram file_id.
type Track struct {
	ID      string
	Title   string
	Artist  string
	Link    string
	From    string
	Message string
	AudioID string
	Date    string // YYYY-MM-DD, empty when not scheduled
	Slot    string // "1".."3", empty when not scheduled
}

// HasContent reports whether the track carries anything deliverable.
func (t Track) HasContent() bool {
	return t.Title != "" || t.Message != "" || t.Link != "" || t.AudioID != ""
}

// Snapshot is an immutable view of the catalog in file order.
type Snapshot struct {
	tracks []Track
	byID   map[string]int
}

func NewSnapshot(tracks []Track) *Snapshot {
	byID := make(map[string]int, len(tracks))
	for i, t := range tracks {
		if _, dup := byID[t.ID]; dup {
			continue // first occurrence wins
		}
		byID[t.ID] = i
	}
	return &Snapshot{tracks: tracks, byID: byID}
}

func (s *Snapshot) Len() int { return len(s.tracks) }

// Tracks returns the catalog in file order. Callers must not mutate it.
func (s *Snapshot) Tracks() []Track { return s.tracks }

// ByID looks up a track by id.
func (s *Snapshot) ByID(id string) (Track, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Track{}, false
	}
	return s.tracks[i], true
}

// ForSlot returns the deliverable tracks scheduled for (date, slot),
// in catalog order.
func (s *Snapshot) ForSlot(date, slot string) []Track {
	var out []Track
	for _, t := range s.tracks {
		if t.Date == date && t.Slot == slot && t.HasContent() {
			out = append(out, t)
		}
	}
	return out
}
