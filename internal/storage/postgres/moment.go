package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"jamesfarrell.me/vidextract/internal/storage/models"
)

type validMoment struct {
	timestamp   float64
	description string
	summary     *string
}

func validateMoment(m models.Moment) (validMoment, error) {
	var missing []string
	if m.StartTime == nil {
		missing = append(missing, "start_time")
	}
	if m.EndTime == nil {
		missing = append(missing, "end_time")
	}
	if m.Description == nil {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return validMoment{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	description, ok := m.Description.(string)
	if !ok {
		return validMoment{}, fmt.Errorf("description is %T, not a string", m.Description)
	}
	if strings.TrimSpace(description) == "" {
		return validMoment{}, errors.New("description is empty")
	}

	ts, err := coerceSeconds(m.StartTime)
	if err != nil {
		return validMoment{}, fmt.Errorf("invalid start_time: %w", err)
	}

	v := validMoment{timestamp: ts, description: description}
	if s, ok := m.Summary.(string); ok && s != "" {
		v.summary = &s
	}
	return v, nil
}

// coerceSeconds converts a loosely typed JSON value to seconds.
func coerceSeconds(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, err
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		f = n
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", f)
	}
	return f, nil
}
