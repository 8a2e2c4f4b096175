package mot

import "testing"

func testTrackerConfig() Config {
	cfg := DefaultConfig()
	cfg.Association.GateMetric = GateMetricGeometric
	cfg.Association.GateThreshold = 1.0
	return cfg
}

func TestStepSpawnsTentativeTracks(t *testing.T) {
	tracker := NewTracker(testTrackerConfig())

	dets := []Detection{
		testDetection(0, 0, 50, 50),
		testDetection(200, 0, 50, 50),
		testDetection(400, 0, 50, 50),
		testDetection(600, 0, 50, 50),
		testDetection(800, 0, 50, 50),
	}
	out, err := tracker.Step(dets)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if tracker.Store().Len() != 5 {
		t.Errorf("Expected 5 tracks, got %d", tracker.Store().Len())
	}
	for _, trk := range tracker.Store().Active() {
		if trk.State() != TrackTentative {
			t.Errorf("Track %d should be tentative, got %s", trk.ID(), trk.State())
		}
		if trk.Hits() != 1 {
			t.Errorf("Track %d should have 1 hit, got %d", trk.ID(), trk.Hits())
		}
	}
	if len(out) != 0 {
		t.Errorf("Tentative tracks must not appear in output, got %d", len(out))
	}
}

func TestConfirmationAfterMinHits(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 3
	tracker := NewTracker(cfg)

	// Two matches: still tentative with hit count 2
	for i := 0; i < 2; i++ {
		if _, err := tracker.Step([]Detection{testDetection(100, 100, 50, 50)}); err != nil {
			t.Fatalf("Frame %d failed: %v", i, err)
		}
	}
	trk := tracker.Store().Active()[0]
	if trk.State() != TrackTentative {
		t.Fatalf("Track should still be tentative after 2 hits, got %s", trk.State())
	}
	if trk.Hits() != 2 {
		t.Fatalf("Expected hit count 2, got %d", trk.Hits())
	}

	// Third consecutive match promotes it
	out, err := tracker.Step([]Detection{testDetection(100, 100, 50, 50)})
	if err != nil {
		t.Fatalf("Frame 3 failed: %v", err)
	}
	if trk.State() != TrackConfirmed {
		t.Errorf("Track should be confirmed after 3 hits, got %s", trk.State())
	}
	if len(out) != 1 || out[0].ID != trk.ID() {
		t.Errorf("Confirmed fresh track should be in output, got %v", out)
	}
}

func TestSpawnConfirmsImmediatelyWithMinHitsOne(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 1
	tracker := NewTracker(cfg)

	// The spawning detection is the first hit, so the track must be
	// confirmed and reported from its very first frame
	out, err := tracker.Step([]Detection{testDetection(100, 100, 50, 50)})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	trk := tracker.Store().Active()[0]
	if !trk.IsConfirmed() {
		t.Errorf("Track should be confirmed on spawn with MinHits=1, got %s", trk.State())
	}
	if len(out) != 1 || out[0].ID != trk.ID() {
		t.Errorf("Freshly confirmed track should be in output, got %v", out)
	}
}

func TestConfirmedTrackDeletedAfterMaxAge(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 1
	cfg.MaxAgeConfirmed = 4
	tracker := NewTracker(cfg)

	if _, err := tracker.Step([]Detection{testDetection(100, 100, 50, 50)}); err != nil {
		t.Fatalf("Setup frame failed: %v", err)
	}
	trk := tracker.Store().Active()[0]
	if !trk.IsConfirmed() {
		t.Fatal("Track should be confirmed with MinHits=1")
	}
	id := trk.ID()

	// maxAge+1 empty frames: ages 1..5, deletion on the 5th
	for i := 0; i < cfg.MaxAgeConfirmed+1; i++ {
		out, err := tracker.Step(nil)
		if err != nil {
			t.Fatalf("Empty frame %d failed: %v", i, err)
		}
		if len(out) != 0 {
			t.Errorf("Unmatched track must not appear in output at frame %d", i)
		}
	}

	if tracker.Store().Len() != 0 {
		t.Errorf("Expected track %d to be deleted and pruned, store has %d", id, tracker.Store().Len())
	}
}

func TestMonotonicAging(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 1
	cfg.MaxAgeConfirmed = 10
	tracker := NewTracker(cfg)

	if _, err := tracker.Step([]Detection{testDetection(100, 100, 50, 50)}); err != nil {
		t.Fatalf("Setup frame failed: %v", err)
	}
	trk := tracker.Store().Active()[0]

	prev := trk.TimeSinceUpdate()
	if prev != 0 {
		t.Fatalf("Fresh track should have age 0, got %d", prev)
	}
	for i := 0; i < 5; i++ {
		if _, err := tracker.Step(nil); err != nil {
			t.Fatalf("Empty frame %d failed: %v", i, err)
		}
		if trk.TimeSinceUpdate() != prev+1 {
			t.Errorf("Age should strictly increase: was %d, now %d", prev, trk.TimeSinceUpdate())
		}
		prev = trk.TimeSinceUpdate()
	}
}

func TestAgeResetsOnlyOnMatch(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 1
	cfg.MaxAgeConfirmed = 10
	tracker := NewTracker(cfg)

	if _, err := tracker.Step([]Detection{testDetection(100, 100, 50, 50)}); err != nil {
		t.Fatalf("Setup frame failed: %v", err)
	}
	trk := tracker.Store().Active()[0]

	if _, err := tracker.Step(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Step(nil); err != nil {
		t.Fatal(err)
	}
	if trk.TimeSinceUpdate() != 2 {
		t.Fatalf("Expected age 2, got %d", trk.TimeSinceUpdate())
	}

	out, err := tracker.Step([]Detection{testDetection(101, 101, 50, 50)})
	if err != nil {
		t.Fatal(err)
	}
	if trk.TimeSinceUpdate() != 0 {
		t.Errorf("Age should reset to 0 on match, got %d", trk.TimeSinceUpdate())
	}
	if len(out) != 1 {
		t.Errorf("Re-matched confirmed track should be back in output, got %d entries", len(out))
	}
}

func TestStepAppliesFullLifecycleBatch(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 2
	tracker := NewTracker(cfg)

	// Two established tracks far apart
	if _, err := tracker.Step([]Detection{
		testDetection(100, 100, 50, 50),
		testDetection(800, 100, 50, 50),
	}); err != nil {
		t.Fatalf("Setup frame failed: %v", err)
	}

	// One frame where the first track matches, the second goes
	// unmatched and a brand new object appears
	if _, err := tracker.Step([]Detection{
		testDetection(102, 101, 50, 50),
		testDetection(400, 400, 50, 50),
	}); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	active := tracker.Store().Active()
	if len(active) != 3 {
		t.Fatalf("Expected 3 tracks after the batch, got %d", len(active))
	}
	if active[0].TimeSinceUpdate() != 0 {
		t.Errorf("Matched track should have age 0, got %d", active[0].TimeSinceUpdate())
	}
	if active[1].TimeSinceUpdate() != 1 {
		t.Errorf("Unmatched track should have aged to 1, got %d", active[1].TimeSinceUpdate())
	}
	if active[2].State() != TrackTentative || active[2].Hits() != 1 {
		t.Errorf("New detection should have spawned tentative, got %s with %d hits", active[2].State(), active[2].Hits())
	}
}

func TestTrackContinuityAcrossFrames(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 1
	tracker := NewTracker(cfg)

	// An object drifting right a couple of pixels per frame keeps its identity
	var id int64
	for i := 0; i < 10; i++ {
		out, err := tracker.Step([]Detection{testDetection(float64(100+2*i), 100, 50, 50)})
		if err != nil {
			t.Fatalf("Frame %d failed: %v", i, err)
		}
		if len(out) != 1 {
			t.Fatalf("Frame %d: expected 1 output track, got %d", i, len(out))
		}
		if i == 0 {
			id = out[0].ID
		} else if out[0].ID != id {
			t.Fatalf("Frame %d: identity changed from %d to %d", i, id, out[0].ID)
		}
	}
	if tracker.Store().Len() != 1 {
		t.Errorf("Expected a single track, got %d", tracker.Store().Len())
	}
}

func TestOutputCarriesClassAndBox(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinHits = 1
	tracker := NewTracker(cfg)

	det := testDetection(100, 100, 50, 50)
	det.ClassID = 2
	det.ClassName = "car"
	out, err := tracker.Step([]Detection{det})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 output track, got %d", len(out))
	}
	if out[0].ClassID != 2 || out[0].ClassName != "car" {
		t.Errorf("Class info lost: %+v", out[0])
	}
	if out[0].Box.Width <= 0 || out[0].Box.Height <= 0 {
		t.Errorf("Output box should have positive size: %+v", out[0].Box)
	}
}
