// Package smf is the on-disk Standard MIDI File boundary for smfcore: it
// reads and writes SMF chunks with gitlab.com/gomidi/midi/v2/smf and
// builds/reads a smfcore.Song purely through the core's public API.
package smf

import (
	"fmt"
	"io"

	"github.com/midisong/smfcore"
	gosmf "gitlab.com/gomidi/midi/v2/smf"
)

// Load reads an SMF byte stream and builds a Song from it. For each track
// chunk it constructs a Track, appends parsed Events in file order with
// Track.AddEventDeltaPulses, and finally attaches the Track to the Song.
func Load(r io.Reader) (*smfcore.Song, error) {
	data, err := gosmf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("smf: read: %w", err)
	}

	song := smfcore.NewSong()
	switch tf := data.TimeFormat.(type) {
	case gosmf.MetricTicks:
		if err := song.SetPPQN(int(tf)); err != nil {
			return nil, fmt.Errorf("smf: ppqn: %w", err)
		}
	case gosmf.TimeCode:
		song.SetSMPTE(int(tf.FramesPerSecond), int(tf.SubFrames))
	default:
		return nil, fmt.Errorf("smf: unrecognized time format %T", data.TimeFormat)
	}
	if err := song.SetFormat(int(data.Format())); err != nil {
		return nil, fmt.Errorf("smf: format: %w", err)
	}

	for i, chunk := range data.Tracks {
		track := smfcore.NewTrack()
		for _, ev := range chunk {
			e, err := smfcore.NewEventFromBuffer(ev.Message.Bytes())
			if err != nil {
				return nil, fmt.Errorf("smf: track %d: %w", i, err)
			}
			if err := track.AddEventDeltaPulses(e, int(ev.Delta)); err != nil {
				return nil, fmt.Errorf("smf: track %d: %w", i, err)
			}
		}
		if err := song.AddTrack(track); err != nil {
			return nil, fmt.Errorf("smf: track %d: %w", i, err)
		}
	}
	return song, nil
}

// Save writes song as an SMF byte stream. Before writing a track, if its
// last event is not an EOT, one is synthesized with delta 0 in the written
// chunk; the core's own Track is left untouched.
func Save(w io.Writer, song *smfcore.Song) (int64, error) {
	out := gosmf.NewSMF1()
	if song.Format() == 0 {
		out = gosmf.New()
	}
	if fps, res, ok := song.SMPTE(); ok {
		out.TimeFormat = gosmf.TimeCode{FramesPerSecond: uint8(fps), SubFrames: uint8(res)}
	} else {
		out.TimeFormat = gosmf.MetricTicks(song.PPQN())
	}

	for _, track := range song.Tracks() {
		chunk := gosmf.Track{}
		events := track.Events()
		for _, ev := range events {
			chunk = append(chunk, gosmf.Event{
				Delta:   uint32(ev.DeltaTimePulses()),
				Message: gosmf.Message(ev.Buffer()),
			})
		}
		if len(events) == 0 || !events[len(events)-1].IsEOT() {
			chunk = append(chunk, gosmf.Event{Delta: 0, Message: gosmf.Message(gosmf.EOT)})
		}
		out.Add(chunk)
	}
	return out.WriteTo(w)
}
