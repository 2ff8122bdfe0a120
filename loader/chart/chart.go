// Package chart is a second, non-SMF timeline ingestion path for
// smfcore: the `.chart` sync-track format used by rhythm-game tooling.
// It reads only the [Song] resolution and [SyncTrack] tempo/time-signature
// events (the part of the format that is a timeline, not a note chart)
// and builds a Song purely through the core's public API.
package chart

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/midisong/smfcore"
)

type bpmEvent struct {
	tick uint32
	bpm  uint32 // BPM * 1000, the chart format's convention
}

type timeSigEvent struct {
	tick      uint32
	numerator uint8
	denomLog2 uint8 // stored as log2 of the actual denominator, as on the SMF wire
}

// OpenFile opens and parses a .chart file's sync track into a Song.
func OpenFile(filename string) (*smfcore.Song, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("chart: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses the [Song] and [SyncTrack] sections of r and returns a Song
// with a single track carrying the resulting tempo-change and
// time-signature events, terminated by an EOT.
func Load(r io.Reader) (*smfcore.Song, error) {
	resolution := 192
	var bpms []bpmEvent
	var sigs []timeSigEvent

	scanner := bufio.NewScanner(r)
	var section string
	inSection := false
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			section = line[1 : len(line)-1]
			inSection = false
			continue
		case line == "{":
			inSection = true
			continue
		case line == "}":
			inSection = false
			section = ""
			continue
		}
		if !inSection {
			continue
		}
		switch section {
		case "Song":
			if v, ok := parseAssignment(line, "Resolution"); ok {
				if n, err := strconv.Atoi(v); err == nil {
					resolution = n
				}
			}
		case "SyncTrack":
			if ev, ok, err := parseSyncLine(line); err != nil {
				return nil, fmt.Errorf("chart: sync track: %w", err)
			} else if ok {
				switch e := ev.(type) {
				case bpmEvent:
					bpms = append(bpms, e)
				case timeSigEvent:
					sigs = append(sigs, e)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("chart: scan: %w", err)
	}

	song := smfcore.NewSong()
	if err := song.SetPPQN(resolution); err != nil {
		return nil, fmt.Errorf("chart: resolution: %w", err)
	}

	track := smfcore.NewTrack()
	for _, ev := range mergeSyncEvents(bpms, sigs) {
		if bpm, ok := ev.(bpmEvent); ok {
			micros := int(60_000_000_000 / uint64(bpm.bpm))
			e, err := smfcore.NewTempoChangeEvent(micros)
			if err != nil {
				return nil, fmt.Errorf("chart: tempo: %w", err)
			}
			if err := track.AddEventPulses(e, int(bpm.tick)); err != nil {
				return nil, fmt.Errorf("chart: tempo: %w", err)
			}
			continue
		}
		ts := ev.(timeSigEvent)
		denominator := 1 << ts.denomLog2
		e, err := smfcore.NewTimeSignatureEvent(int(ts.numerator), denominator, 24, 8)
		if err != nil {
			return nil, fmt.Errorf("chart: time signature: %w", err)
		}
		if err := track.AddEventPulses(e, int(ts.tick)); err != nil {
			return nil, fmt.Errorf("chart: time signature: %w", err)
		}
	}
	if _, err := track.AddEOTDeltaPulses(0); err != nil {
		return nil, fmt.Errorf("chart: eot: %w", err)
	}
	if err := song.AddTrack(track); err != nil {
		return nil, fmt.Errorf("chart: add track: %w", err)
	}
	return song, nil
}

// mergeSyncEvents orders bpm and time-signature events by tick, ties
// broken bpm-before-timesig so a coincident pair merges predictably into
// one TempoPoint.
func mergeSyncEvents(bpms []bpmEvent, sigs []timeSigEvent) []interface{} {
	all := make([]interface{}, 0, len(bpms)+len(sigs))
	for _, b := range bpms {
		all = append(all, b)
	}
	for _, s := range sigs {
		all = append(all, s)
	}
	tickOf := func(v interface{}) uint32 {
		switch e := v.(type) {
		case bpmEvent:
			return e.tick
		case timeSigEvent:
			return e.tick
		}
		return 0
	}
	isBPM := func(v interface{}) bool {
		_, ok := v.(bpmEvent)
		return ok
	}
	sort.SliceStable(all, func(i, j int) bool {
		if tickOf(all[i]) != tickOf(all[j]) {
			return tickOf(all[i]) < tickOf(all[j])
		}
		return isBPM(all[i]) && !isBPM(all[j])
	})
	return all
}

func parseAssignment(line, key string) (string, bool) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", false
	}
	if strings.TrimSpace(parts[0]) != key {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func parseSyncLine(line string) (interface{}, bool, error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return nil, false, nil
	}
	tick, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return nil, false, nil
	}
	fields := strings.Fields(strings.TrimSpace(parts[1]))
	if len(fields) < 2 {
		return nil, false, nil
	}
	switch fields[0] {
	case "B":
		bpm, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, false, fmt.Errorf("bad BPM value %q: %w", fields[1], err)
		}
		if bpm == 0 {
			return nil, false, fmt.Errorf("BPM event at tick %d is zero", tick)
		}
		return bpmEvent{tick: uint32(tick), bpm: uint32(bpm)}, true, nil
	case "TS":
		num, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return nil, false, fmt.Errorf("bad time signature numerator %q: %w", fields[1], err)
		}
		denomLog2 := uint8(2) // default denominator 4 (log2(4) == 2)
		if len(fields) >= 3 {
			d, err := strconv.ParseUint(fields[2], 10, 8)
			if err != nil {
				return nil, false, fmt.Errorf("bad time signature denominator %q: %w", fields[2], err)
			}
			denomLog2 = uint8(d)
		}
		return timeSigEvent{tick: uint32(tick), numerator: uint8(num), denomLog2: denomLog2}, true, nil
	default:
		return nil, false, nil
	}
}
