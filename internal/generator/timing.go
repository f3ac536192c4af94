package generator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type timingEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder streams stage and per-file durations as JSON lines. A nil
// or disabled recorder drops everything.
type timingRecorder struct {
	enabled bool
	start   time.Time
	file    *os.File
	enc     *json.Encoder
	err     error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.enabled = true
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Enabled() bool {
	return tr != nil && tr.enabled
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

func (tr *timingRecorder) record(phase, kind, file, status string, start time.Time, duration time.Duration) {
	if tr == nil || !tr.enabled {
		return
	}
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	event := timingEvent{
		Phase:      phase,
		Kind:       kind,
		File:       file,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}
	if tr.enc != nil {
		_ = tr.enc.Encode(event)
	}
}

func (tr *timingRecorder) RecordStage(phase string, start time.Time, status string) {
	tr.record(phase, "stage", "", status, start, time.Since(start))
}

func (tr *timingRecorder) RecordFile(phase, file, status string, start time.Time) {
	tr.record(phase, "file", file, status, start, time.Since(start))
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}

// resolveTimingPath picks where timing events go. The environment wins over
// flags; the default file sits next to the generated header.
func (g *Generator) resolveTimingPath(outPath string) string {
	if envPath := os.Getenv("XLATE_VREG_TIMING_JSONL"); envPath != "" {
		return envPath
	}
	if !g.Timing && !envBool("XLATE_VREG_TIMING") {
		return ""
	}
	if g.TimingPath != "" {
		return g.TimingPath
	}
	if toStdout(outPath) {
		return "timing.jsonl"
	}
	return filepath.Join(filepath.Dir(outPath), "timing.jsonl")
}

func envBool(key string) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "on"
}
