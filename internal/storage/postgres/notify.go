package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EventsSaved is the payload sent on EventsSavedChannel.
type EventsSaved struct {
	VideoFilename string  `json:"video_filename"`
	IDs           []int64 `json:"ids"`
}

// Listen blocks until ctx is done, calling handle for every committed batch.
func (r *EventRepository) Listen(ctx context.Context, dbURL string, handle func(EventsSaved)) error {
	listener := pq.NewListener(dbURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				r.logger.Warn().Err(err).Msg("listener error")
			}
		})
	defer listener.Close()

	if err := listener.Listen(EventsSavedChannel); err != nil {
		return fmt.Errorf("listen error: %w", err)
	}

	r.logger.Info().Str("channel", EventsSavedChannel).Msg("listening for saved events")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			// nil after a reconnect; notifications may have been missed
			if n == nil {
				r.logger.Warn().Msg("listener reconnected")
				continue
			}
			var saved EventsSaved
			if err := json.Unmarshal([]byte(n.Extra), &saved); err != nil {
				r.logger.Warn().Err(err).Msg("malformed notification")
				continue
			}
			handle(saved)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					r.logger.Warn().Err(err).Msg("listener ping failed")
				}
			}()
		}
	}
}
