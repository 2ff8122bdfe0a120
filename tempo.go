package smfcore

import "sort"

// TempoPoint is a single tempo/time-signature change point in a TempoMap.
// It carries both coordinate systems so conversions at or near a tempo
// boundary are exact on both axes.
type TempoPoint struct {
	TimePulses             int
	TimeSeconds            float64
	MicrosecondsPerQuarter int
	Numerator              int
	Denominator            int
	ClocksPerClick         int
	NotesPerNote           int
}

func defaultTempoPoint() TempoPoint {
	return TempoPoint{
		TimePulses:             0,
		TimeSeconds:            0,
		MicrosecondsPerQuarter: 500000,
		Numerator:              4,
		Denominator:            4,
		ClocksPerClick:         8,
		NotesPerNote:           8,
	}
}

// TempoMap converts between pulses and seconds for a song. It always
// contains at least the synthetic default point at pulses 0 (120 BPM,
// 4/4), present whenever the song has no tempo metaevent at pulses 0.
type TempoMap struct {
	points []TempoPoint
	ppqn   int
}

func newTempoMap(ppqn int) *TempoMap {
	return &TempoMap{points: []TempoPoint{defaultTempoPoint()}, ppqn: ppqn}
}

// Points returns a copy of the tempo map's points, ordered by TimePulses.
func (tm *TempoMap) Points() []TempoPoint {
	return append([]TempoPoint(nil), tm.points...)
}

func (tm *TempoMap) pointAtOrBeforePulses(p int) TempoPoint {
	i := sort.Search(len(tm.points), func(i int) bool { return tm.points[i].TimePulses > p })
	return tm.points[i-1]
}

func (tm *TempoMap) pointAtOrBeforeSeconds(s float64) TempoPoint {
	i := sort.Search(len(tm.points), func(i int) bool { return tm.points[i].TimeSeconds > s })
	return tm.points[i-1]
}

func secondsPerPulse(t TempoPoint, ppqn int) float64 {
	return float64(t.MicrosecondsPerQuarter) / (1_000_000.0 * float64(ppqn))
}

// PulsesToSeconds converts an absolute pulses coordinate to seconds under
// the tempo in effect at that point.
func (tm *TempoMap) PulsesToSeconds(p int) float64 {
	t := tm.pointAtOrBeforePulses(p)
	return t.TimeSeconds + float64(p-t.TimePulses)*secondsPerPulse(t, tm.ppqn)
}

// SecondsToPulses converts an absolute seconds coordinate to pulses,
// inverting PulsesToSeconds. The result is rounded to the nearest pulse.
func (tm *TempoMap) SecondsToPulses(s float64) int {
	t := tm.pointAtOrBeforeSeconds(s)
	perPulse := secondsPerPulse(t, tm.ppqn)
	if perPulse == 0 {
		return t.TimePulses
	}
	delta := (s - t.TimeSeconds) / perPulse
	if delta < 0 {
		return t.TimePulses
	}
	return t.TimePulses + int(delta+0.5)
}

// Rebuild discards the tempo map and reconstructs it from scratch by
// walking tracks in global chronological order, then
// recomputes TimeSeconds on every event of every track. Ties at the same
// pulses are resolved last-wins by visit order: lower track number first,
// then track order, matching the cursor's tie-break.
func (tm *TempoMap) Rebuild(tracks []*Track) {
	tm.points = []TempoPoint{defaultTempoPoint()}
	for _, ev := range mergeEventsByPulses(tracks) {
		if !IsTempoChange(ev.buf) && !IsTimeSignature(ev.buf) {
			continue
		}
		tm.mergeMetaEvent(ev)
	}
	for _, tr := range tracks {
		for _, ev := range tr.events {
			ev.timeSeconds = tm.PulsesToSeconds(ev.timePulses)
		}
	}
}

// mergeMetaEvent folds ev's tempo/time-signature fields into the point at
// ev's pulses, creating one first if needed. Because Rebuild always visits
// events in nondecreasing pulses order, a coincident point (if any) is
// always the most-recently-appended one, so this is an O(1) amortized step.
func (tm *TempoMap) mergeMetaEvent(ev *Event) {
	last := tm.points[len(tm.points)-1]
	pt := last
	if last.TimePulses != ev.timePulses {
		pt = TempoPoint{
			TimePulses:             ev.timePulses,
			TimeSeconds:            tm.PulsesToSeconds(ev.timePulses),
			MicrosecondsPerQuarter: last.MicrosecondsPerQuarter,
			Numerator:              last.Numerator,
			Denominator:            last.Denominator,
			ClocksPerClick:         last.ClocksPerClick,
			NotesPerNote:           last.NotesPerNote,
		}
	}
	applyTempoFields(&pt, ev)
	if last.TimePulses == ev.timePulses {
		tm.points[len(tm.points)-1] = pt
	} else {
		tm.points = append(tm.points, pt)
	}
}

// appendPoint handles the O(1) fast path: ev is known to be the globally
// last event in the song, so its point can only extend the tempo map,
// never require rescanning earlier events.
func (tm *TempoMap) appendPoint(ev *Event) {
	tm.mergeMetaEvent(ev)
	ev.timeSeconds = tm.points[len(tm.points)-1].TimeSeconds
}

// dropLastPointIfMatches undoes appendPoint when the event that produced
// the trailing point is removed while still globally last. The default
// point at pulses 0 is never dropped.
func (tm *TempoMap) dropLastPointIfMatches(pulses int) {
	if len(tm.points) > 1 && tm.points[len(tm.points)-1].TimePulses == pulses {
		tm.points = tm.points[:len(tm.points)-1]
	}
}

func applyTempoFields(pt *TempoPoint, ev *Event) {
	if IsTempoChange(ev.buf) {
		pt.MicrosecondsPerQuarter = decodeTempo(ev.buf)
	}
	if IsTimeSignature(ev.buf) {
		pt.Numerator, pt.Denominator, pt.ClocksPerClick, pt.NotesPerNote = decodeTimeSignature(ev.buf)
	}
}

// mergeEventsByPulses returns every event across tracks in global time
// order: nondecreasing TimePulses, ties broken by ascending track number
// (matching the cursor's find-next-track tie-break).
func mergeEventsByPulses(tracks []*Track) []*Event {
	var all []*Event
	for _, t := range tracks {
		all = append(all, t.events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].timePulses != all[j].timePulses {
			return all[i].timePulses < all[j].timePulses
		}
		return all[i].trackNumber < all[j].trackNumber
	})
	return all
}

// tempoEventAppendOrRebuild implements the "append if globally last,
// otherwise rebuild" rule shared by add-triggered tempo-map maintenance,
// whether the tracks in question belong to a Song or to a single detached
// Track being built by a loader.
func tempoEventAppendOrRebuild(tracks []*Track, tm *TempoMap, e *Event) {
	if tempoEventIsGloballyLast(tracks, e) {
		tm.appendPoint(e)
	} else {
		tm.Rebuild(tracks)
	}
}

func tempoEventIsGloballyLast(tracks []*Track, e *Event) bool {
	for _, tr := range tracks {
		n := len(tr.events)
		if n == 0 {
			continue
		}
		last := tr.events[n-1]
		if last == e {
			continue
		}
		if last.timePulses >= e.timePulses {
			return false
		}
	}
	return true
}

// tempoEventRemovedUpdate implements the symmetric removal rule.
func tempoEventRemovedUpdate(tracks []*Track, tm *TempoMap, e *Event, wasGloballyLast bool) {
	if wasGloballyLast {
		tm.dropLastPointIfMatches(e.timePulses)
	} else {
		tm.Rebuild(tracks)
	}
}
