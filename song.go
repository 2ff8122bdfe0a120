package smfcore

// DefaultPPQN is the division used by NewSong and by the provisional tempo
// map of a track created with NewTrack. A track detached by
// Song.RemoveTrack gets a provisional map at that song's PPQN instead.
const DefaultPPQN = 120

// unsetSeekPosition is the sentinel for Song.lastSeekPosition before the
// first rewind/seek, distinct from any real seconds value (which is
// always >= 0).
const unsetSeekPosition = -1

// Song is the top-level container: a format/PPQN header, an ordered set
// of Tracks, and the tempo map those tracks derive. Song exclusively owns
// its Tracks and its tempo map.
type Song struct {
	format int
	ppqn   int
	tracks []*Track

	tempoMap *TempoMap

	lastSeekPosition float64

	useSMPTE     bool
	smpteFPS     int
	smpteResNoOp int // resolution in sub-frame ticks, carried for round-trip only
}

// NewSong returns an empty song: format 0, PPQN 120, no tracks.
func NewSong() *Song {
	return &Song{
		format:           0,
		ppqn:             DefaultPPQN,
		tempoMap:         newTempoMap(DefaultPPQN),
		lastSeekPosition: unsetSeekPosition,
	}
}

// Format returns the SMF format, 0 or 1.
func (s *Song) Format() int { return s.format }

// SetFormat sets the SMF format. It fails with FormatConflict if format 0
// is requested while more than one track is attached.
func (s *Song) SetFormat(format int) error {
	if format != 0 && format != 1 {
		return newErr(InvalidDataByte, "format must be 0 or 1")
	}
	if format == 0 && len(s.tracks) > 1 {
		return newErr(FormatConflict, "cannot set format 0 with more than one track attached")
	}
	s.format = format
	return nil
}

// PPQN returns the pulses-per-quarter-note division.
func (s *Song) PPQN() int { return s.ppqn }

// SetPPQN changes the pulses-per-quarter-note division. Because this
// rescales every pulse-to-seconds conversion, it triggers a full
// tempo-map rebuild and a TimeSeconds recompute across every track
// so every event's TimeSeconds stays consistent with the new scale.
func (s *Song) SetPPQN(ppqn int) error {
	if ppqn <= 0 {
		return newErr(InvalidDataByte, "ppqn must be positive")
	}
	s.ppqn = ppqn
	s.tempoMap.ppqn = ppqn
	s.tempoMap.Rebuild(s.tracks)
	return nil
}

// SetSMPTE records SMPTE framing (frames-per-second and sub-frame
// resolution) for round-trip fidelity with a loaded file. It has no
// effect on the PPQN-based conversion algorithms.
func (s *Song) SetSMPTE(framesPerSecond, resolution int) {
	s.useSMPTE = true
	s.smpteFPS = framesPerSecond
	s.smpteResNoOp = resolution
}

// SMPTE returns the recorded SMPTE framing, if any.
func (s *Song) SMPTE() (framesPerSecond, resolution int, ok bool) {
	return s.smpteFPS, s.smpteResNoOp, s.useSMPTE
}

// NumberOfTracks returns the number of tracks currently attached.
func (s *Song) NumberOfTracks() int { return len(s.tracks) }

// Tracks returns the song's tracks in track-number order. The returned
// slice must not be mutated by the caller.
func (s *Song) Tracks() []*Track { return s.tracks }

// GetTrack returns the 1-indexed track, or nil if out of range.
func (s *Song) GetTrack(number int) *Track {
	if number < 1 || number > len(s.tracks) {
		return nil
	}
	return s.tracks[number-1]
}

// TempoMap returns the song's tempo map.
func (s *Song) TempoMap() *TempoMap { return s.tempoMap }

// AddTrack attaches t to the song as the new last track. Adding a second
// track forces format to 1. Any tempo/time-signature events
// already on t (e.g. built by a loader before attaching) are folded into
// the song's tempo map and every event's TimeSeconds is recomputed under
// it, since t's own provisional tempo map is discarded on attach.
func (s *Song) AddTrack(t *Track) error {
	if t.Attached() {
		return newErr(AlreadyAttached, "track is already attached to a song")
	}
	t.song = s
	t.localTempo = nil
	s.tracks = append(s.tracks, t)
	t.trackNumber = len(s.tracks)
	for _, ev := range t.events {
		ev.trackNumber = t.trackNumber
	}
	if len(s.tracks) > 1 {
		s.format = 1
	}

	hasTempoMeta := false
	for _, ev := range t.events {
		if IsTempoChange(ev.buf) || IsTimeSignature(ev.buf) {
			hasTempoMeta = true
			break
		}
	}
	if hasTempoMeta {
		s.tempoMap.Rebuild(s.tracks)
	} else {
		for _, ev := range t.events {
			ev.timeSeconds = s.tempoMap.PulsesToSeconds(ev.timePulses)
		}
	}
	return nil
}

// RemoveTrack detaches t from the song, preserving the Track object (and
// its Events) for reuse, renumbers the surviving tracks densely from 1,
// and updates the cached TrackNumber on every surviving event. If t
// carried any tempo/time-signature events the tempo map is rebuilt from
// the remaining tracks.
func (s *Song) RemoveTrack(t *Track) error {
	if t.song != s {
		return newErr(NotAttached, "track is not attached to this song")
	}
	idx := t.trackNumber - 1
	if idx < 0 || idx >= len(s.tracks) || s.tracks[idx] != t {
		return newErr(NotAttached, "track numbering is inconsistent with its song")
	}

	hadTempoMeta := false
	for _, ev := range t.events {
		if IsTempoChange(ev.buf) || IsTimeSignature(ev.buf) {
			hadTempoMeta = true
			break
		}
	}

	s.tracks = append(s.tracks[:idx], s.tracks[idx+1:]...)
	for i := idx; i < len(s.tracks); i++ {
		s.tracks[i].trackNumber = i + 1
		for _, ev := range s.tracks[i].events {
			ev.trackNumber = i + 1
		}
	}

	t.song = nil
	t.trackNumber = -1
	for _, ev := range t.events {
		ev.trackNumber = -1
	}
	t.localTempo = newTempoMap(s.ppqn)
	t.localTempo.Rebuild([]*Track{t})

	if hadTempoMeta {
		s.tempoMap.Rebuild(s.tracks)
	}
	return nil
}

// GetLengthPulses returns the maximum TimePulses over every track's last
// event, or 0 if the song has no events.
func (s *Song) GetLengthPulses() int {
	max := 0
	for _, t := range s.tracks {
		if last := t.lastEvent(); last != nil && last.timePulses > max {
			max = last.timePulses
		}
	}
	return max
}

// GetLengthSeconds returns the maximum TimeSeconds over every track's last
// event, or 0 if the song has no events.
func (s *Song) GetLengthSeconds() float64 {
	max := 0.0
	for _, t := range s.tracks {
		if last := t.lastEvent(); last != nil && last.timeSeconds > max {
			max = last.timeSeconds
		}
	}
	return max
}
