package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/midisong/smfcore"
	chartloader "github.com/midisong/smfcore/loader/chart"
	smfloader "github.com/midisong/smfcore/loader/smf"
)

func main() {
	jsonOutput := flag.Bool("json", false, "Output song information as JSON")
	printTempoMap := flag.Bool("tempo-map", false, "Print the tempo map")
	printEvents := flag.Bool("events", false, "Print every event in playback order")
	seekSeconds := flag.Float64("seek", -1, "Seek to this position in seconds before printing events")
	resave := flag.String("resave", "", "Write the loaded song back out as a Standard MIDI File")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.mid|file.chart>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	filename := flag.Arg(0)
	ext := strings.ToLower(filepath.Ext(filename))

	var song *smfcore.Song
	var err error
	if ext == ".chart" {
		song, err = chartloader.OpenFile(filename)
		if err != nil {
			log.Printf("Error opening chart file: %v\n", err)
			os.Exit(1)
		}
	} else {
		// treat the file as a regular midi file
		file, err := os.Open(filename)
		if err != nil {
			log.Printf("Error opening file: %v\n", err)
			os.Exit(1)
		}
		song, err = smfloader.Load(file)
		file.Close()
		if err != nil {
			log.Printf("Error reading MIDI file: %v\n", err)
			os.Exit(1)
		}
	}

	if *jsonOutput {
		printSummaryJSON(filename, song)
	} else {
		printSummary(filename, song)
	}

	if *printTempoMap {
		fmt.Println()
		fmt.Println("Tempo map:")
		for _, p := range song.TempoMap().Points() {
			bpm := 60000000.0 / float64(p.MicrosecondsPerQuarter)
			fmt.Printf("  pulse %7d  %9.3fs  %7.2f BPM  %d/%d\n",
				p.TimePulses, p.TimeSeconds, bpm, p.Numerator, p.Denominator)
		}
	}

	if *printEvents {
		fmt.Println()
		fmt.Println("Events:")
		song.Rewind()
		if *seekSeconds >= 0 {
			if err := song.SeekToSeconds(*seekSeconds); err != nil {
				log.Printf("Error seeking to %gs: %v\n", *seekSeconds, err)
				os.Exit(1)
			}
		}
		for e := song.GetNextEvent(); e != nil; e = song.GetNextEvent() {
			fmt.Printf("  track %d  pulse %7d  %9.3fs  %s\n",
				e.TrackNumber(), e.TimePulses(), e.TimeSeconds(), describeEvent(e))
		}
	}

	if *resave != "" {
		out, err := os.Create(*resave)
		if err != nil {
			log.Printf("Error creating output file: %v\n", err)
			os.Exit(1)
		}
		if _, err := smfloader.Save(out, song); err != nil {
			out.Close()
			log.Printf("Error writing MIDI file: %v\n", err)
			os.Exit(1)
		}
		if err := out.Close(); err != nil {
			log.Printf("Error closing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote %s\n", *resave)
	}
}

func printSummary(filename string, song *smfcore.Song) {
	fmt.Printf("File: %s\n", filename)
	fmt.Printf("Format: %d\n", song.Format())
	if fps, res, ok := song.SMPTE(); ok {
		fmt.Printf("SMPTE: %d fps, resolution %d\n", fps, res)
	} else {
		fmt.Printf("PPQN: %d\n", song.PPQN())
	}
	fmt.Printf("Tracks: %d\n", song.NumberOfTracks())
	for _, track := range song.Tracks() {
		fmt.Printf("  track %d: %d events\n", track.TrackNumber(), track.NumEvents())
	}
	fmt.Printf("Length: %d pulses, %.3f seconds\n", song.GetLengthPulses(), song.GetLengthSeconds())
}

type songSummary struct {
	File          string  `json:"file"`
	Format        int     `json:"format"`
	PPQN          int     `json:"ppqn"`
	Tracks        []int   `json:"track_event_counts"`
	LengthPulses  int     `json:"length_pulses"`
	LengthSeconds float64 `json:"length_seconds"`
}

func printSummaryJSON(filename string, song *smfcore.Song) {
	summary := songSummary{
		File:          filename,
		Format:        song.Format(),
		PPQN:          song.PPQN(),
		LengthPulses:  song.GetLengthPulses(),
		LengthSeconds: song.GetLengthSeconds(),
	}
	for _, track := range song.Tracks() {
		summary.Tracks = append(summary.Tracks, track.NumEvents())
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func describeEvent(e *smfcore.Event) string {
	buf := e.Buffer()
	switch {
	case e.IsEOT():
		return "end of track"
	case e.IsTempoChange():
		return "tempo change"
	case e.IsTimeSignature():
		return "time signature"
	case e.IsMetadata():
		return fmt.Sprintf("meta 0x%02X (%d bytes)", buf[1], len(buf))
	case e.IsSysex():
		return fmt.Sprintf("sysex (%d bytes)", len(buf))
	default:
		return fmt.Sprintf("% X", buf)
	}
}
