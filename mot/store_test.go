package mot

import "testing"

func testDetection(x, y, w, h float64) Detection {
	return Detection{
		Box:        NewRect(x, y, w, h),
		Confidence: 0.9,
		ClassID:    0,
		ClassName:  "person",
	}
}

func TestStoreIdentifiersMonotonic(t *testing.T) {
	store := NewTrackStore()

	seen := make(map[int64]struct{})
	var last int64
	for i := 0; i < 10; i++ {
		trk := store.spawn(testDetection(float64(i*100), 0, 50, 50), 1.0, 3, 3, 30, 0.1)
		if _, ok := seen[trk.ID()]; ok {
			t.Fatalf("Identifier %d reused", trk.ID())
		}
		if trk.ID() <= last {
			t.Fatalf("Identifier %d not monotonic after %d", trk.ID(), last)
		}
		seen[trk.ID()] = struct{}{}
		last = trk.ID()
	}
}

func TestStoreIdentifiersNeverReusedAfterPrune(t *testing.T) {
	store := NewTrackStore()
	first := store.spawn(testDetection(0, 0, 50, 50), 1.0, 3, 0, 30, 0.1)

	// Age out the tentative track and prune it
	first.MarkMissed()
	if !first.IsDeleted() {
		t.Fatal("Tentative track should be deleted after exceeding max age 0")
	}
	store.prune()
	if store.Len() != 0 {
		t.Fatalf("Expected empty store after prune, got %d", store.Len())
	}

	second := store.spawn(testDetection(0, 0, 50, 50), 1.0, 3, 0, 30, 0.1)
	if second.ID() <= first.ID() {
		t.Errorf("Deleted identifier must not be reassigned: first=%d second=%d", first.ID(), second.ID())
	}
}

func TestStoreActiveExcludesDeleted(t *testing.T) {
	store := NewTrackStore()
	a := store.spawn(testDetection(0, 0, 50, 50), 1.0, 3, 0, 30, 0.1)
	store.spawn(testDetection(200, 0, 50, 50), 1.0, 3, 5, 30, 0.1)

	a.MarkMissed()
	if got := len(store.Active()); got != 1 {
		t.Errorf("Expected 1 active track, got %d", got)
	}

	// Deleted tracks leave the store only at prune time
	if store.Len() != 2 {
		t.Errorf("Deleted track should stay in store until prune, len=%d", store.Len())
	}
	store.prune()
	if store.Len() != 1 {
		t.Errorf("Expected 1 track after prune, got %d", store.Len())
	}
}
