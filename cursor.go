package smfcore

// Rewind resets the playback cursor: every track with events starts
// pointing at its first event, empty tracks are marked exhausted, and
// LastSeekPosition resets to 0.
func (s *Song) Rewind() {
	for _, t := range s.tracks {
		t.Rewind()
	}
	s.lastSeekPosition = 0
}

// FindNextTrack returns the track whose next pending event is earliest in
// pulses. Ties favor the lower track number, since tracks are scanned in
// track-number order. Returns nil if every track is exhausted.
func (s *Song) FindNextTrack() *Track {
	var best *Track
	for _, t := range s.tracks {
		if t.exhausted() {
			continue
		}
		if best == nil || t.timeOfNext < best.timeOfNext {
			best = t
		}
	}
	return best
}

// GetNextEvent returns the globally next event across all tracks and
// advances that track's cursor. Returns nil once every track is
// exhausted. Invalidates LastSeekPosition.
func (s *Song) GetNextEvent() *Event {
	t := s.FindNextTrack()
	if t == nil {
		return nil
	}
	e := t.GetNextEvent()
	s.lastSeekPosition = unsetSeekPosition
	return e
}

// PeekNextEvent returns the globally next event without advancing any
// track's cursor.
func (s *Song) PeekNextEvent() *Event {
	t := s.FindNextTrack()
	if t == nil {
		return nil
	}
	return t.PeekNextEvent()
}

// SkipNextEvent advances past the globally next event, discarding it.
func (s *Song) SkipNextEvent() {
	s.GetNextEvent()
}

// SeekToEvent rewinds and advances the cursor until target is the next
// peeked event, landing just before it. target must be attached to this
// song; behavior is undefined otherwise.
func (s *Song) SeekToEvent(target *Event) error {
	s.Rewind()
	for {
		e := s.PeekNextEvent()
		if e == nil {
			return newErr(SeekPastEnd, "target event not found while seeking")
		}
		if e == target {
			s.lastSeekPosition = target.timeSeconds
			return nil
		}
		s.SkipNextEvent()
	}
}

// SeekToSeconds rewinds and advances the cursor until the next peeked
// event's TimeSeconds is no longer less than seconds. A call with the
// same seconds as the last seek is a no-op; the sentinel "unset" state
// (the initial state, or the state after any GetNextEvent) is always
// treated as unequal so the shortcut never masks real state. Fails with
// SeekPastEnd if the cursor exhausts before reaching seconds.
func (s *Song) SeekToSeconds(seconds float64) error {
	if s.lastSeekPosition != unsetSeekPosition && s.lastSeekPosition == seconds {
		return nil
	}
	s.Rewind()
	for {
		e := s.PeekNextEvent()
		if e == nil {
			return newErr(SeekPastEnd, "seek ran past the last event")
		}
		if e.timeSeconds >= seconds {
			s.lastSeekPosition = seconds
			return nil
		}
		s.SkipNextEvent()
	}
}

// SeekToPulses is the pulses analog of SeekToSeconds: it advances while
// the peeked event's TimePulses is less than pulses, then stores the
// landing event's TimeSeconds as LastSeekPosition.
func (s *Song) SeekToPulses(pulses int) error {
	s.Rewind()
	for {
		e := s.PeekNextEvent()
		if e == nil {
			return newErr(SeekPastEnd, "seek ran past the last event")
		}
		if e.timePulses >= pulses {
			s.lastSeekPosition = e.timeSeconds
			return nil
		}
		s.SkipNextEvent()
	}
}

// LastSeekPosition returns the seconds position stored by the most recent
// rewind/seek, or the sentinel -1 if none has occurred or the cursor has
// since been advanced with a plain GetNextEvent.
func (s *Song) LastSeekPosition() float64 { return s.lastSeekPosition }
