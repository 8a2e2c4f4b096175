package mot

// TrackStore owns the set of live tracks and the identifier counter.
// Identifiers are monotonic and never reused; the counter lives here
// instead of in package-level state so the store's single-writer
// discipline covers allocation too. The store is mutated only by the
// tracker's lifecycle pass, never concurrently.
type TrackStore struct {
	tracks map[int64]*Track
	nextID int64
	// order keeps insertion order so snapshots are deterministic
	order []int64
}

// NewTrackStore creates an empty store. Identifiers start at 1.
func NewTrackStore() *TrackStore {
	return &TrackStore{
		tracks: make(map[int64]*Track),
		nextID: 1,
	}
}

// Len returns the number of live (non-deleted) tracks.
func (s *TrackStore) Len() int {
	return len(s.tracks)
}

// Get returns the track with the given identifier.
func (s *TrackStore) Get(id int64) (*Track, bool) {
	trk, ok := s.tracks[id]
	return trk, ok
}

// Active returns all live tracks in insertion order. Deleted tracks are
// never handed out.
func (s *TrackStore) Active() []*Track {
	out := make([]*Track, 0, len(s.tracks))
	for _, id := range s.order {
		if trk, ok := s.tracks[id]; ok && !trk.IsDeleted() {
			out = append(out, trk)
		}
	}
	return out
}

// Confirmed returns confirmed tracks in insertion order.
func (s *TrackStore) Confirmed() []*Track {
	out := make([]*Track, 0, len(s.tracks))
	for _, id := range s.order {
		if trk, ok := s.tracks[id]; ok && trk.IsConfirmed() {
			out = append(out, trk)
		}
	}
	return out
}

// spawn creates a tentative track from an unmatched detection with a
// fresh identifier.
func (s *TrackStore) spawn(det Detection, dt float64, minHits, maxAgeTentative, maxAgeConfirmed int, embeddingAlpha float64) *Track {
	id := s.nextID
	s.nextID++
	trk := newTrack(id, det, dt, minHits, maxAgeTentative, maxAgeConfirmed, embeddingAlpha)
	s.tracks[id] = trk
	s.order = append(s.order, id)
	return trk
}

// prune drops tracks that reached their terminal state. Runs at the end
// of a frame cycle; the freed identifiers stay burned.
func (s *TrackStore) prune() {
	kept := s.order[:0]
	for _, id := range s.order {
		trk, ok := s.tracks[id]
		if !ok {
			continue
		}
		if trk.IsDeleted() {
			delete(s.tracks, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
