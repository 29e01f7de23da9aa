package transcription

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseVTT parses WebVTT content into transcript segments
func ParseVTT(content string) ([]Segment, error) {
	// Some APIs return the document as a JSON string
	content = strings.Trim(content, "\"")
	if strings.Contains(content, "\\n") {
		content = strings.ReplaceAll(content, "\\n", "\n")
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	if !strings.HasPrefix(content, "WEBVTT") {
		return nil, fmt.Errorf("invalid VTT format: missing WEBVTT header")
	}

	segments := []Segment{}
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")

		// optional cue identifier before the timing line
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 || timing == len(lines)-1 {
			continue
		}

		start, end, err := parseCueTiming(lines[timing])
		if err != nil {
			return nil, err
		}

		segments = append(segments, Segment{
			Start: start.Seconds(),
			End:   end.Seconds(),
			Text:  strings.TrimSpace(strings.Join(lines[timing+1:], " ")),
		})
	}

	return segments, nil
}

func parseCueTiming(line string) (time.Duration, time.Duration, error) {
	startStr, rest, _ := strings.Cut(line, "-->")
	// cue settings may follow the end timestamp
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("invalid cue timing: %q", line)
	}

	start, err := parseVTTTimestamp(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start timestamp: %w", err)
	}
	end, err := parseVTTTimestamp(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end timestamp: %w", err)
	}
	return start, end, nil
}

// parseVTTTimestamp accepts HH:MM:SS.mmm and the short MM:SS.mmm form.
func parseVTTTimestamp(timestamp string) (time.Duration, error) {
	clock, frac, found := strings.Cut(timestamp, ".")
	if !found || len(frac) != 3 {
		return 0, fmt.Errorf("invalid timestamp format: missing milliseconds")
	}

	parts := strings.Split(clock, ":")
	var hours int
	switch {
	case len(parts) == 3 && len(parts[0]) >= 2:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours: %w", err)
		}
		hours = h
		parts = parts[1:]
	case len(parts) == 2:
	default:
		return 0, fmt.Errorf("invalid timestamp format: expected HH:MM:SS.mmm")
	}

	if len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid timestamp format: expected HH:MM:SS.mmm")
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes: %w", err)
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds: %w", err)
	}
	milliseconds, err := strconv.Atoi(frac)
	if err != nil {
		return 0, fmt.Errorf("invalid milliseconds: %w", err)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(milliseconds)*time.Millisecond, nil
}
