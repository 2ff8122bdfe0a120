package smfcore

import "sort"

// sentinelDelta marks a just-inserted event whose DeltaTimePulses has not
// yet been fixed up by the out-of-order insert path.
const sentinelDelta = -1

// noNextEvent is the value of Track.nextEventNumber once the cursor has
// walked off the end of the track.
const noNextEvent = -1

// Track is an ordered sequence of Events belonging to a Song. A detached
// Track has no back-reference and no track number; it becomes attached
// only via Song.AddTrack.
type Track struct {
	song            *Song
	trackNumber     int
	events          []*Event
	nextEventNumber int
	timeOfNext      int

	// localTempo converts pulses to seconds for events added while the
	// track is detached from a Song, e.g. a loader building a track
	// event-by-event before the final AddTrack call. It is
	// discarded once the track is attached, at which point every event's
	// TimeSeconds is recomputed under the song's real tempo map and PPQN.
	localTempo *TempoMap
}

// NewTrack returns an empty, detached track.
func NewTrack() *Track {
	return &Track{
		trackNumber:     -1,
		nextEventNumber: noNextEvent,
		timeOfNext:      -1,
		localTempo:      newTempoMap(DefaultPPQN),
	}
}

// tempoMap returns the tempo map that governs this track's pulses-to-
// seconds conversion: the song's, if attached, otherwise the track's own
// provisional map.
func (t *Track) tempoMap() *TempoMap {
	if t.song != nil {
		return t.song.tempoMap
	}
	return t.localTempo
}

// tempoTracks returns the set of tracks a tempo-map rebuild triggered from
// this track should walk: the whole song if attached, or just this track.
func (t *Track) tempoTracks() []*Track {
	if t.song != nil {
		return t.song.tracks
	}
	return []*Track{t}
}

// Attached reports whether the track has been added to a Song.
func (t *Track) Attached() bool { return t.song != nil }

// Song returns the song this track is attached to, or nil.
func (t *Track) Song() *Song { return t.song }

// TrackNumber returns the track's 1-based position within its song, or -1
// if detached.
func (t *Track) TrackNumber() int { return t.trackNumber }

// NumEvents returns the number of events on the track.
func (t *Track) NumEvents() int { return len(t.events) }

// Events returns the track's events in track order. The returned slice
// must not be mutated by the caller.
func (t *Track) Events() []*Event { return t.events }

func (t *Track) lastEvent() *Event {
	if len(t.events) == 0 {
		return nil
	}
	return t.events[len(t.events)-1]
}

func (t *Track) lastPulses() int {
	if last := t.lastEvent(); last != nil {
		return last.timePulses
	}
	return 0
}

// removeEOTIfBeforePulses implements the EOT auto-removal policy:
// before attaching an event at pulses p, a trailing EOT at or before p is
// detached and discarded so EOT remains the last event without surprising
// a caller appending past it.
func (t *Track) removeEOTIfBeforePulses(p int) {
	last := t.lastEvent()
	if last == nil || !last.IsEOT() || last.timePulses > p {
		return
	}
	t.events = t.events[:len(t.events)-1]
	last.detach()
}

// AddEventPulses attaches e to the track at the given absolute pulses
// position. e must be detached and pulses must be non-negative.
func (t *Track) AddEventPulses(e *Event, pulses int) error {
	if e.Attached() {
		return newErr(AlreadyAttached, "event is already attached to a track")
	}
	if pulses < 0 {
		return newErr(InvalidDataByte, "pulses must be non-negative")
	}
	t.removeEOTIfBeforePulses(pulses)
	t.insert(e, pulses)
	e.timeSeconds = t.tempoMap().PulsesToSeconds(pulses)
	if IsTempoChange(e.buf) || IsTimeSignature(e.buf) {
		tempoEventAppendOrRebuild(t.tempoTracks(), t.tempoMap(), e)
	}
	return nil
}

// AddEventDeltaPulses attaches e at lastEventPulses + delta, where
// lastEventPulses is 0 for an empty track.
func (t *Track) AddEventDeltaPulses(e *Event, delta int) error {
	if delta < 0 {
		return newErr(InvalidDataByte, "delta must be non-negative")
	}
	return t.AddEventPulses(e, t.lastPulses()+delta)
}

// AddEventSeconds maps seconds to pulses via the track's tempo map (the
// song's, if attached), then attaches at the resulting pulses position.
func (t *Track) AddEventSeconds(e *Event, seconds float64) error {
	pulses := t.tempoMap().SecondsToPulses(seconds)
	return t.AddEventPulses(e, pulses)
}

// AddEOTDeltaPulses always appends a fresh FF 2F 00 End-of-Track event at
// lastEventPulses + delta.
func (t *Track) AddEOTDeltaPulses(delta int) (*Event, error) {
	e := newEOTEvent()
	if err := t.AddEventDeltaPulses(e, delta); err != nil {
		return nil, err
	}
	return e, nil
}

// AddEOTPulses appends an EOT at an absolute pulses position. It fails
// with EotOutOfOrder if pulses precedes the track's current last event.
func (t *Track) AddEOTPulses(pulses int) (*Event, error) {
	if pulses < t.lastPulses() {
		return nil, newErr(EotOutOfOrder, "EOT pulses precede the current last event")
	}
	e := newEOTEvent()
	if err := t.AddEventPulses(e, pulses); err != nil {
		return nil, err
	}
	return e, nil
}

// AddEOTSeconds appends an EOT at an absolute seconds position. It fails
// with EotOutOfOrder if seconds precedes the track's current last event.
func (t *Track) AddEOTSeconds(seconds float64) (*Event, error) {
	pulses := t.tempoMap().SecondsToPulses(seconds)
	return t.AddEOTPulses(pulses)
}

// insert is the single append/insert path shared by every add operation.
func (t *Track) insert(e *Event, pulses int) {
	last := t.lastPulses()
	e.timePulses = pulses
	e.track = t
	if t.Attached() {
		e.trackNumber = t.trackNumber
	}

	if len(t.events) == 0 || pulses >= last {
		// Fast path: the new event extends the track.
		e.deltaTimePulses = pulses - last
		t.events = append(t.events, e)
		e.eventNumber = len(t.events)
		return
	}

	// Out-of-order insert: append with a sentinel delta, stable-sort by
	// (time_pulses, pre-existing event_number), renumber, then fix up
	// deltas for whoever now has a sentinel or a stale follower.
	e.deltaTimePulses = sentinelDelta
	preSortNumber := len(t.events) + 1
	t.events = append(t.events, e)

	order := make([]int, len(t.events))
	for i := range order {
		if t.events[i] == e {
			order[i] = preSortNumber
		} else {
			order[i] = t.events[i].eventNumber
		}
	}
	idx := make([]int, len(t.events))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if t.events[ia].timePulses != t.events[ib].timePulses {
			return t.events[ia].timePulses < t.events[ib].timePulses
		}
		return order[ia] < order[ib]
	})

	sorted := make([]*Event, len(t.events))
	for newPos, oldIdx := range idx {
		sorted[newPos] = t.events[oldIdx]
	}
	t.events = sorted

	insertedAt := -1
	for i, ev := range t.events {
		ev.eventNumber = i + 1
		if ev == e {
			insertedAt = i
		}
		if ev.deltaTimePulses == sentinelDelta {
			if i == 0 {
				ev.deltaTimePulses = ev.timePulses
			} else {
				ev.deltaTimePulses = ev.timePulses - t.events[i-1].timePulses
			}
		}
	}
	// The event immediately following the inserted one had its delta
	// computed against its old predecessor; fix it against e, its new one.
	if insertedAt+1 < len(t.events) {
		following := t.events[insertedAt+1]
		following.deltaTimePulses = following.timePulses - e.timePulses
	}
}

// RemoveEvent detaches e from the track, renumbers the events that follow
// it, and folds e's delta into the following event's delta so absolute
// times of the surviving events are unchanged.
func (t *Track) RemoveEvent(e *Event) error {
	if e.track != t {
		return newErr(NotAttached, "event is not attached to this track")
	}
	idx := e.eventNumber - 1
	if idx < 0 || idx >= len(t.events) || t.events[idx] != e {
		return newErr(NotAttached, "event numbering is inconsistent with its track")
	}

	isTempoMeta := IsTempoChange(e.buf) || IsTimeSignature(e.buf)
	tracks := t.tempoTracks()
	tm := t.tempoMap()
	wasGloballyLast := tempoEventIsGloballyLast(tracks, e)

	removedDelta := e.deltaTimePulses
	t.events = append(t.events[:idx], t.events[idx+1:]...)
	for i := idx; i < len(t.events); i++ {
		t.events[i].eventNumber = i + 1
	}
	if idx < len(t.events) {
		t.events[idx].deltaTimePulses += removedDelta
	}

	if isTempoMeta {
		tempoEventRemovedUpdate(tracks, tm, e, wasGloballyLast)
	}
	e.detach()
	return nil
}

// GetEventByNumber returns the event at 1-based position k, or nil if out
// of range.
func (t *Track) GetEventByNumber(k int) *Event {
	if k < 1 || k > len(t.events) {
		return nil
	}
	return t.events[k-1]
}

// Rewind resets the track's playback cursor to its first event, or to the
// exhausted sentinel if the track is empty.
func (t *Track) Rewind() {
	if len(t.events) == 0 {
		t.nextEventNumber = noNextEvent
		t.timeOfNext = -1
		return
	}
	t.nextEventNumber = 1
	t.timeOfNext = t.events[0].timePulses
}

// GetNextEvent returns the event at nextEventNumber and advances the
// track's cursor, or returns nil at exhaustion.
func (t *Track) GetNextEvent() *Event {
	e := t.PeekNextEvent()
	if e == nil {
		return nil
	}
	if t.nextEventNumber < len(t.events) {
		t.nextEventNumber++
		t.timeOfNext = t.events[t.nextEventNumber-1].timePulses
	} else {
		t.nextEventNumber = noNextEvent
		t.timeOfNext = -1
	}
	return e
}

// PeekNextEvent returns the event at nextEventNumber without advancing.
func (t *Track) PeekNextEvent() *Event {
	if t.nextEventNumber == noNextEvent || t.nextEventNumber < 1 || t.nextEventNumber > len(t.events) {
		return nil
	}
	return t.events[t.nextEventNumber-1]
}

func (t *Track) exhausted() bool { return t.nextEventNumber == noNextEvent }
