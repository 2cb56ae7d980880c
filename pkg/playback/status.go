// ABOUTME: Status reporting for hosts and user interfaces
// ABOUTME: Pure mapping from scheduler state and buffer health to a display status
package playback

import (
	"fmt"
	"math"
	"time"
)

// Status is what a host shows the user
type Status struct {
	Label      string `json:"label"`
	Message    string `json:"message"`
	Percentage int    `json:"percentage"`
	Text       string `json:"text"`
}

// Report maps playback state and buffer health to a status. It has no side
// effects and is safe to call at any rate.
func Report(state State, occupancy, capacity int, buffered time.Duration) Status {
	var label, message string
	switch {
	case state == Paused:
		label, message = "paused", "Paused"
	case state == Playing:
		label, message = "playing", "Playing..."
	case state == Buffering:
		label, message = "buffering", "Buffering..."
	case occupancy > 0:
		label, message = "ready", "Ready to play"
	default:
		label, message = "idle", "Waiting for audio"
	}

	pct := BufferPercentage(occupancy, capacity)
	return Status{
		Label:      label,
		Message:    message,
		Percentage: pct,
		Text:       fmt.Sprintf("%s Buffer: %.1fs (%d%%)", message, buffered.Seconds(), pct),
	}
}

// FaultStatus is reported instead of Report once the device has failed
func FaultStatus(err error) Status {
	return Status{
		Label:   "error",
		Message: "Audio device unavailable",
		Text:    fmt.Sprintf("Audio device unavailable: %v", err),
	}
}

// BufferPercentage returns occupancy as a whole percentage of capacity, capped at 100
func BufferPercentage(occupancy, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	pct := int(math.Round(float64(occupancy) * 100 / float64(capacity)))
	return min(pct, 100)
}
