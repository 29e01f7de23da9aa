package audio

import (
	"context"
	"fmt"
	"math"
	"sort"

	"jamesfarrell.me/vidextract/internal/analysis"
	"jamesfarrell.me/vidextract/internal/parallel"
)

// Classifier scores one window of 16 kHz mono audio against every class.
type Classifier interface {
	Classify(ctx context.Context, window []float32) ([]float32, error)
	ClassNames() []string
}

type EventOptions struct {
	WindowSeconds float64
	HopSeconds    float64
	TopK          int
	Threshold     float32
	Workers       int
}

func DefaultEventOptions() EventOptions {
	return EventOptions{
		WindowSeconds: 1.0,
		HopSeconds:    0.5,
		TopK:          3,
		Threshold:     0.5,
		Workers:       1,
	}
}

// WindowStarts returns the start sample of every full window that fits in n
// samples. A window is evaluated when start+window <= n.
func WindowStarts(n, window, hop int) []int {
	if window <= 0 || hop <= 0 {
		return nil
	}
	var starts []int
	for start := 0; start+window <= n; start += hop {
		starts = append(starts, start)
	}
	return starts
}

// DetectSoundEvents slides a window over the waveform and keeps, per window,
// the top-K classes scoring strictly above the threshold. Windows with no
// surviving label are left out.
func DetectSoundEvents(ctx context.Context, wave *Waveform, clf Classifier, opts EventOptions) ([]analysis.SoundEvent, error) {
	window := int(math.Round(opts.WindowSeconds * float64(wave.SampleRate)))
	hop := int(math.Round(opts.HopSeconds * float64(wave.SampleRate)))
	starts := WindowStarts(len(wave.Samples), window, hop)
	names := clf.ClassNames()

	perWindow, err := parallel.Map(ctx, opts.Workers, starts, func(ctx context.Context, _ int, start int) (*analysis.SoundEvent, error) {
		scores, err := clf.Classify(ctx, wave.Samples[start:start+window])
		if err != nil {
			return nil, fmt.Errorf("window at sample %d: %w", start, err)
		}

		labels := topLabels(scores, names, opts.TopK, opts.Threshold)
		if len(labels) == 0 {
			return nil, nil
		}
		return &analysis.SoundEvent{
			Time:   analysis.Seconds(roundTo2(float64(start) / float64(wave.SampleRate))),
			Labels: labels,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sound event detection failed: %w", err)
	}

	events := []analysis.SoundEvent{}
	for _, e := range perWindow {
		if e != nil {
			events = append(events, *e)
		}
	}
	return events, nil
}

// topLabels takes the k highest scores, then drops those not above threshold.
func topLabels(scores []float32, names []string, k int, threshold float32) []analysis.SoundLabel {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	k = max(0, min(k, len(idx)))
	idx = idx[:k]

	var labels []analysis.SoundLabel
	for _, i := range idx {
		if scores[i] <= threshold {
			continue
		}
		name := fmt.Sprintf("class_%d", i)
		if i < len(names) {
			name = names[i]
		}
		labels = append(labels, analysis.SoundLabel{
			Label:      name,
			Confidence: analysis.Confidence(scores[i]),
		})
	}
	return labels
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
