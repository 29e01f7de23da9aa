package analysis

import (
	"errors"
	"fmt"
)

// ErrMisaligned means the per-shot inputs differ in length. It is a bug in
// the caller, not a property of the video.
var ErrMisaligned = errors.New("per-shot inputs are misaligned")

// Assemble zips per-shot timestamps, object labels and captions by position
// and carries sound events and transcript through unchanged. A nil captions
// slice means captioning is disabled and every shot gets a null caption.
func Assemble(videoName string, timestamps []float64, objects [][]string, captions []*string, sounds []SoundEvent, transcript []TranscriptSegment) (*Document, error) {
	if len(objects) != len(timestamps) {
		return nil, fmt.Errorf("%w: %d timestamps, %d object sets", ErrMisaligned, len(timestamps), len(objects))
	}
	if captions != nil && len(captions) != len(timestamps) {
		return nil, fmt.Errorf("%w: %d timestamps, %d captions", ErrMisaligned, len(timestamps), len(captions))
	}

	shots := make([]Shot, len(timestamps))
	for i, ts := range timestamps {
		labels := append([]string{}, objects[i]...)

		var caption *string
		if captions != nil && captions[i] != nil {
			c := *captions[i]
			caption = &c
		}

		shots[i] = Shot{
			Index:     i,
			Timestamp: Seconds(ts),
			Objects:   labels,
			Caption:   caption,
		}
	}

	return &Document{
		VideoName:   videoName,
		ShotCount:   len(shots),
		Shots:       shots,
		SoundEvents: append([]SoundEvent{}, sounds...),
		Transcript:  append([]TranscriptSegment{}, transcript...),
	}, nil
}
