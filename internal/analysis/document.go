package analysis

import (
	"encoding/json"
	"math"
)

// Seconds is a time offset that serialises rounded to 2 decimals. The
// in-memory value is never rounded.
type Seconds float64

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(round2(float64(s)))
}

// Confidence is a classifier score in [0, 1], serialised like Seconds.
type Confidence float64

func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(round2(float64(c)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Shot is the per-scene record. Caption is null when captioning is off or
// failed for that frame.
type Shot struct {
	Index     int      `json:"index"`
	Timestamp Seconds  `json:"time"`
	Objects   []string `json:"objects"`
	Caption   *string  `json:"caption"`
}

type SoundLabel struct {
	Label      string     `json:"label"`
	Confidence Confidence `json:"confidence"`
}

// SoundEvent is one analysis window with at least one label over threshold.
type SoundEvent struct {
	Time   Seconds      `json:"time"`
	Labels []SoundLabel `json:"labels"`
}

type TranscriptSegment struct {
	Start Seconds `json:"start_time"`
	End   Seconds `json:"end_time"`
	Text  string  `json:"text"`
}

// Document is the assembled analysis of one video and the sole input to the
// moment selector.
type Document struct {
	VideoName   string              `json:"video_name"`
	ShotCount   int                 `json:"number_of_shots"`
	Shots       []Shot              `json:"shots"`
	SoundEvents []SoundEvent        `json:"sound_events"`
	Transcript  []TranscriptSegment `json:"transcript"`
}

// MarshalCompact returns minified JSON for prompting.
func MarshalCompact(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// MarshalIndent returns human-readable JSON for archiving.
func MarshalIndent(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
