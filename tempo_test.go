package smfcore

import (
	"math"
	"testing"
)

const secondsEpsilon = 1e-9

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < secondsEpsilon
}

// newSongWithTrack builds a song at the given PPQN with one attached track.
func newSongWithTrack(t *testing.T, ppqn int) (*Song, *Track) {
	t.Helper()
	song := NewSong()
	if err := song.SetPPQN(ppqn); err != nil {
		t.Fatalf("SetPPQN(%d): %v", ppqn, err)
	}
	tr := NewTrack()
	if err := song.AddTrack(tr); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	return song, tr
}

func mustAddTempo(t *testing.T, tr *Track, pulses, micros int) *Event {
	t.Helper()
	e, err := NewTempoChangeEvent(micros)
	if err != nil {
		t.Fatalf("NewTempoChangeEvent(%d): %v", micros, err)
	}
	if err := tr.AddEventPulses(e, pulses); err != nil {
		t.Fatalf("AddEventPulses(%d): %v", pulses, err)
	}
	return e
}

func TestDefaultTempo(t *testing.T) {
	_, tr := newSongWithTrack(t, 96)
	note := mustNoteOn(t, 60, 100)
	if err := tr.AddEventPulses(note, 96); err != nil {
		t.Fatal(err)
	}
	// One quarter note at the default 120 BPM is half a second.
	if !closeTo(note.TimeSeconds(), 0.5) {
		t.Errorf("TimeSeconds = %v, want 0.5", note.TimeSeconds())
	}
}

func TestDefaultTempoPoint(t *testing.T) {
	song := NewSong()
	points := song.TempoMap().Points()
	if len(points) != 1 {
		t.Fatalf("fresh tempo map has %d points, want 1", len(points))
	}
	p := points[0]
	if p.TimePulses != 0 || p.TimeSeconds != 0 {
		t.Errorf("default point not at origin: %+v", p)
	}
	if p.MicrosecondsPerQuarter != 500000 {
		t.Errorf("default tempo %d, want 500000", p.MicrosecondsPerQuarter)
	}
	if p.Numerator != 4 || p.Denominator != 4 {
		t.Errorf("default time signature %d/%d, want 4/4", p.Numerator, p.Denominator)
	}
}

func TestTempoChangeMidSong(t *testing.T) {
	_, tr := newSongWithTrack(t, 96)
	mustAddTempo(t, tr, 0, 1000000) // 60 BPM
	note := mustNoteOn(t, 60, 100)
	if err := tr.AddEventPulses(note, 192); err != nil {
		t.Fatal(err)
	}
	if !closeTo(note.TimeSeconds(), 2.0) {
		t.Fatalf("TimeSeconds = %v, want 2.0 at 60 BPM", note.TimeSeconds())
	}

	// Inserting a tempo change before the note forces a rebuild that
	// recomputes the note's seconds: one second at 60 BPM, then half a
	// second at 120 BPM.
	mustAddTempo(t, tr, 96, 500000)
	if !closeTo(note.TimeSeconds(), 1.5) {
		t.Errorf("TimeSeconds = %v, want 1.5 after mid-song tempo change", note.TimeSeconds())
	}
}

func TestTempoChangeAtPulsesZeroMergesIntoDefault(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	mustAddTempo(t, tr, 0, 1000000)
	points := song.TempoMap().Points()
	if len(points) != 1 {
		t.Fatalf("tempo map has %d points, want the merged origin point only", len(points))
	}
	if points[0].MicrosecondsPerQuarter != 1000000 {
		t.Errorf("origin tempo %d, want 1000000", points[0].MicrosecondsPerQuarter)
	}
	// The time signature of the default point survives the merge.
	if points[0].Numerator != 4 || points[0].Denominator != 4 {
		t.Errorf("origin time signature %d/%d, want 4/4", points[0].Numerator, points[0].Denominator)
	}
}

func TestCoincidentTempoAndTimeSignatureMerge(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	mustAddTempo(t, tr, 480, 1000000)
	ts, err := NewTimeSignatureEvent(3, 4, 24, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.AddEventPulses(ts, 480); err != nil {
		t.Fatal(err)
	}

	points := song.TempoMap().Points()
	if len(points) != 2 {
		t.Fatalf("tempo map has %d points, want 2 (origin + merged 480)", len(points))
	}
	p := points[1]
	if p.TimePulses != 480 || p.MicrosecondsPerQuarter != 1000000 || p.Numerator != 3 {
		t.Errorf("merged point = %+v", p)
	}
}

func TestSimultaneousTempoChangesLastWins(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	mustAddTempo(t, tr, 96, 1000000)
	mustAddTempo(t, tr, 96, 250000)

	points := song.TempoMap().Points()
	if len(points) != 2 {
		t.Fatalf("tempo map has %d points, want 2", len(points))
	}
	if points[1].MicrosecondsPerQuarter != 250000 {
		t.Errorf("coincident tempo changes: got %d, want the later event's 250000", points[1].MicrosecondsPerQuarter)
	}
}

func TestTempoRemoval(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	note := mustNoteOn(t, 60, 100)
	if err := tr.AddEventPulses(note, 192); err != nil {
		t.Fatal(err)
	}
	tempo := mustAddTempo(t, tr, 96, 1000000)
	if !closeTo(note.TimeSeconds(), 1.5) {
		t.Fatalf("TimeSeconds = %v, want 1.5 before removal", note.TimeSeconds())
	}

	if err := tr.RemoveEvent(tempo); err != nil {
		t.Fatalf("RemoveEvent: %v", err)
	}
	if got := len(song.TempoMap().Points()); got != 1 {
		t.Errorf("tempo map has %d points after removal, want 1", got)
	}
	if !closeTo(note.TimeSeconds(), 1.0) {
		t.Errorf("TimeSeconds = %v, want 1.0 back at the default tempo", note.TimeSeconds())
	}
}

func TestTempoRemovalOfTrailingPoint(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	tempo := mustAddTempo(t, tr, 96, 1000000)
	if got := len(song.TempoMap().Points()); got != 2 {
		t.Fatalf("tempo map has %d points, want 2", got)
	}
	if err := tr.RemoveEvent(tempo); err != nil {
		t.Fatal(err)
	}
	if got := len(song.TempoMap().Points()); got != 1 {
		t.Errorf("trailing point not dropped: %d points", got)
	}
}

func TestPulsesSecondsConversionExactAtBoundaries(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	mustAddTempo(t, tr, 96, 1000000)
	mustAddTempo(t, tr, 288, 250000)

	tm := song.TempoMap()
	for _, p := range tm.Points() {
		if got := tm.PulsesToSeconds(p.TimePulses); got != p.TimeSeconds {
			t.Errorf("PulsesToSeconds(%d) = %v, want the point's own %v", p.TimePulses, got, p.TimeSeconds)
		}
		if got := tm.SecondsToPulses(p.TimeSeconds); got != p.TimePulses {
			t.Errorf("SecondsToPulses(%v) = %d, want the point's own %d", p.TimeSeconds, got, p.TimePulses)
		}
	}
}

func TestPulsesSecondsMonotone(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	mustAddTempo(t, tr, 96, 1000000)
	mustAddTempo(t, tr, 288, 125000)

	tm := song.TempoMap()
	prev := -1.0
	for p := 0; p <= 600; p += 7 {
		s := tm.PulsesToSeconds(p)
		if s < prev {
			t.Fatalf("PulsesToSeconds not monotone at %d: %v < %v", p, s, prev)
		}
		prev = s
	}
}

func TestSetPPQNRecomputesSeconds(t *testing.T) {
	song, tr := newSongWithTrack(t, 96)
	note := mustNoteOn(t, 60, 100)
	if err := tr.AddEventPulses(note, 96); err != nil {
		t.Fatal(err)
	}
	if !closeTo(note.TimeSeconds(), 0.5) {
		t.Fatalf("TimeSeconds = %v, want 0.5 at ppqn 96", note.TimeSeconds())
	}
	if err := song.SetPPQN(192); err != nil {
		t.Fatal(err)
	}
	if !closeTo(note.TimeSeconds(), 0.25) {
		t.Errorf("TimeSeconds = %v, want 0.25 after doubling ppqn", note.TimeSeconds())
	}
}

func TestDetachedTrackProvisionalTempoMap(t *testing.T) {
	tr := NewTrack()
	tempo, err := NewTempoChangeEvent(1000000)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.AddEventPulses(tempo, 0); err != nil {
		t.Fatal(err)
	}
	note := mustNoteOn(t, 60, 100)
	if err := tr.AddEventPulses(note, DefaultPPQN); err != nil {
		t.Fatal(err)
	}
	// One quarter note at 60 BPM under the provisional map.
	if !closeTo(note.TimeSeconds(), 1.0) {
		t.Fatalf("TimeSeconds = %v, want 1.0 on the detached track", note.TimeSeconds())
	}

	// Attaching to a song at a different PPQN recomputes under the song's
	// map, which absorbs the track's tempo events.
	song := NewSong()
	if err := song.SetPPQN(DefaultPPQN * 2); err != nil {
		t.Fatal(err)
	}
	if err := song.AddTrack(tr); err != nil {
		t.Fatal(err)
	}
	if !closeTo(note.TimeSeconds(), 0.5) {
		t.Errorf("TimeSeconds = %v, want 0.5 under the song's ppqn", note.TimeSeconds())
	}
}
