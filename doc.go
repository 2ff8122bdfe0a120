// Package smfcore is an in-memory model of a Standard MIDI File song: a
// dual-coordinate (pulses and seconds) event timeline, a tempo map derived
// from embedded tempo/time-signature metaevents, and a multi-track
// ordered-merge playback cursor.
//
// The package does not read or write SMF chunks itself; see loader/smf for
// that boundary. It has no notion of real-time scheduling: callers drive
// the cursor themselves.
package smfcore
