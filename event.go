package smfcore

import "fmt"

// maxEventBufferBytes bounds the copy a single event constructor will make.
// A real MIDI event buffer is at most a few hundred bytes (even a fat
// sysex dump); anything past this is treated as an allocation we refuse
// rather than one that could silently exhaust memory.
const maxEventBufferBytes = 1 << 20

// NoDataByte is passed to NewEventFromStatusData in place of a second or
// third byte to indicate the message is shorter than three bytes.
const NoDataByte = -1

// Event owns a single normalized MIDI message: a byte buffer that always
// starts with a status byte, carries no running status, and (for sysex)
// excludes the SMF variable-length size prefix. Once attached to a Track it
// also carries timing coordinates; until then the time fields hold
// sentinel negatives.
type Event struct {
	track           *Track
	eventNumber     int
	deltaTimePulses int
	timePulses      int
	timeSeconds     float64
	trackNumber     int
	buf             []byte
}

func detachedEvent(buf []byte) *Event {
	return &Event{
		eventNumber:     -1,
		deltaTimePulses: -1,
		timePulses:      -1,
		timeSeconds:     -1,
		trackNumber:     -1,
		buf:             buf,
	}
}

// NewEvent returns an empty, detached event. The caller must fill its
// buffer with SetBuffer before attaching it to a track.
func NewEvent() *Event {
	return detachedEvent(nil)
}

// NewEventFromBuffer copies buf into a new detached event. buf must start
// with a valid status byte.
func NewEventFromBuffer(buf []byte) (*Event, error) {
	cp, err := copyEventBuffer(buf)
	if err != nil {
		return nil, err
	}
	return detachedEvent(cp), nil
}

// NewEventFromStatusData builds a detached event from one, two, or three
// explicit bytes: a status byte and up to two data bytes. Pass NoDataByte
// for data1/data2 to indicate a message shorter than three bytes, e.g.
// NewEventFromStatusData(0xC0, 40, NoDataByte) for a one-data-byte Program
// Change.
func NewEventFromStatusData(status, data1, data2 int) (*Event, error) {
	if status < 0 || status > 0xFF || !IsStatusByte(byte(status)) {
		return nil, newErr(InvalidStatus, fmt.Sprintf("0x%02X is not a valid status byte", status))
	}
	buf := make([]byte, 1, 3)
	buf[0] = byte(status)
	for _, d := range [2]int{data1, data2} {
		if d == NoDataByte {
			break
		}
		if d < 0 || d > 0xFF || IsStatusByte(byte(d)) {
			return nil, newErr(InvalidDataByte, fmt.Sprintf("0x%02X is not a valid data byte", d))
		}
		buf = append(buf, byte(d))
	}
	return detachedEvent(buf), nil
}

func copyEventBuffer(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, newErr(InvalidStatus, "event buffer is empty")
	}
	if len(buf) > maxEventBufferBytes {
		return nil, newErr(OutOfMemory, fmt.Sprintf("event buffer of %d bytes exceeds the %d byte limit", len(buf), maxEventBufferBytes))
	}
	if !IsStatusByte(buf[0]) {
		return nil, newErr(InvalidStatus, fmt.Sprintf("first byte 0x%02X is not a status byte", buf[0]))
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	return cp, nil
}

// SetBuffer fills an event created with NewEvent. Calling it on an
// attached event is a contract violation and panics.
func (e *Event) SetBuffer(buf []byte) error {
	if e.Attached() {
		panic("smfcore: SetBuffer called on an attached event")
	}
	cp, err := copyEventBuffer(buf)
	if err != nil {
		return err
	}
	e.buf = cp
	return nil
}

// Attached reports whether the event has been added to a track.
func (e *Event) Attached() bool { return e.track != nil }

// Track returns the track this event is attached to, or nil.
func (e *Event) Track() *Track { return e.track }

// TrackNumber returns the cached 1-based track number, or -1 if detached.
// Duplicated onto the event for reader convenience; kept in sync by the
// owning Track/Song whenever tracks are renumbered.
func (e *Event) TrackNumber() int { return e.trackNumber }

// EventNumber returns the event's 1-based position within its track, or -1
// if detached.
func (e *Event) EventNumber() int { return e.eventNumber }

// DeltaTimePulses returns the pulses since the previous event on the same
// track (or since pulses 0 for the first event), or -1 if detached.
func (e *Event) DeltaTimePulses() int { return e.deltaTimePulses }

// TimePulses returns the event's absolute time in pulses, or -1 if
// detached.
func (e *Event) TimePulses() int { return e.timePulses }

// TimeSeconds returns the event's absolute time in seconds under the
// current tempo map, or -1 if detached.
func (e *Event) TimeSeconds() float64 { return e.timeSeconds }

// Buffer returns a copy of the event's normalized MIDI message.
func (e *Event) Buffer() []byte {
	return append([]byte(nil), e.buf...)
}

// IsMetadata reports whether this event is a metaevent.
func (e *Event) IsMetadata() bool { return IsMetadata(e.buf) }

// IsEOT reports whether this event is an End-of-Track metaevent.
func (e *Event) IsEOT() bool { return IsEOT(e.buf) }

// IsTempoChange reports whether this event is a Set Tempo metaevent.
func (e *Event) IsTempoChange() bool { return IsTempoChange(e.buf) }

// IsTimeSignature reports whether this event is a Time Signature
// metaevent.
func (e *Event) IsTimeSignature() bool { return IsTimeSignature(e.buf) }

// IsSysex reports whether this event is a system-exclusive message.
func (e *Event) IsSysex() bool { return IsSysex(e.buf) }

func (e *Event) detach() {
	e.track = nil
	e.eventNumber = -1
	e.deltaTimePulses = -1
	e.timePulses = -1
	e.timeSeconds = -1
	e.trackNumber = -1
}

func newEOTEvent() *Event {
	e, err := NewEventFromBuffer([]byte{0xFF, 0x2F, 0x00})
	if err != nil {
		panic("smfcore: malformed built-in EOT buffer")
	}
	return e
}

// NewTempoChangeEvent builds a detached Set Tempo metaevent for the given
// microseconds-per-quarter-note value.
func NewTempoChangeEvent(microsecondsPerQuarter int) (*Event, error) {
	if microsecondsPerQuarter <= 0 || microsecondsPerQuarter > 0xFFFFFF {
		return nil, newErr(InvalidDataByte, fmt.Sprintf("%d microseconds per quarter note is out of range", microsecondsPerQuarter))
	}
	buf := []byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerQuarter >> 16),
		byte(microsecondsPerQuarter >> 8),
		byte(microsecondsPerQuarter),
	}
	return NewEventFromBuffer(buf)
}

// NewTimeSignatureEvent builds a detached Time Signature metaevent.
// denominator must be a power of two (the wire format stores log2 of it).
func NewTimeSignatureEvent(numerator, denominator, clocksPerClick, notesPerNote int) (*Event, error) {
	if numerator < 0 || numerator > 0xFF {
		return nil, newErr(InvalidDataByte, fmt.Sprintf("numerator %d is out of range", numerator))
	}
	log2den, ok := log2PowerOfTwo(denominator)
	if !ok {
		return nil, newErr(InvalidDataByte, fmt.Sprintf("denominator %d is not a power of two", denominator))
	}
	if clocksPerClick < 0 || clocksPerClick > 0xFF {
		return nil, newErr(InvalidDataByte, fmt.Sprintf("clocks per click %d is out of range", clocksPerClick))
	}
	if notesPerNote < 0 || notesPerNote > 0xFF {
		return nil, newErr(InvalidDataByte, fmt.Sprintf("notes per note %d is out of range", notesPerNote))
	}
	buf := []byte{0xFF, 0x58, 0x04, byte(numerator), byte(log2den), byte(clocksPerClick), byte(notesPerNote)}
	return NewEventFromBuffer(buf)
}

func log2PowerOfTwo(n int) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	for shift := 0; shift < 32; shift++ {
		if n == 1<<uint(shift) {
			return shift, true
		}
	}
	return 0, false
}

func decodeTempo(buf []byte) int {
	return int(buf[3])<<16 | int(buf[4])<<8 | int(buf[5])
}

func decodeTimeSignature(buf []byte) (numerator, denominator, clocksPerClick, notesPerNote int) {
	numerator = int(buf[3])
	denominator = 1 << uint(buf[4])
	clocksPerClick = int(buf[5])
	notesPerNote = int(buf[6])
	return
}
