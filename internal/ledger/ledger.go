// Package ledger turns an ordered time log into elapsed play time.
//
// Everything here is pure: no storage, no clock reads. Callers pass "now"
// explicitly so live runs can be measured without a separate code path.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/woozymasta/speedrun/internal/models"
)

// ErrUnknownAction is returned for actions outside the state-update vocabulary.
var ErrUnknownAction = errors.New("unknown action")

// Elapsed replays logs (ordered by timestamp) and returns the accumulated
// milliseconds. START and RESUME switch the clock on, PAUSE and END switch it
// off. Redundant edges are ignored. ABORT and FAIL do not stop the clock.
// A log that ends with the clock on is measured up to now.
func Elapsed(logs []models.TimeLog, now time.Time) int64 {
	var (
		total  int64
		on     bool
		lastOn time.Time
	)

	for _, entry := range logs {
		switch entry.Action {
		case models.ActionStart, models.ActionResume:
			if !on {
				on = true
				lastOn = entry.Timestamp
			}
		case models.ActionPause, models.ActionEnd:
			if on {
				on = false
				total += span(lastOn, entry.Timestamp)
			}
		}
	}

	if on {
		total += span(lastOn, now)
	}

	return total
}

// span is the non-negative distance between two instants in milliseconds.
func span(from, to time.Time) int64 {
	ms := to.UnixMilli() - from.UnixMilli()
	if ms < 0 {
		return 0
	}

	return ms
}

// FormatDuration renders milliseconds as "{h}h {m}m {s}s" using floor division.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// StatusFor maps an external state-update action to the run status it sets.
// END is not accepted here; finishing a run has its own operation.
func StatusFor(action models.Action) (models.RunStatus, error) {
	switch action {
	case models.ActionStart, models.ActionResume:
		return models.StatusRunning, nil
	case models.ActionPause:
		return models.StatusPaused, nil
	case models.ActionAbort:
		return models.StatusAborted, nil
	case models.ActionFail:
		return models.StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
