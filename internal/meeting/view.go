package meeting

import (
	"fmt"
	"time"
)

// View is the presentation bucket a meeting falls into. It is derived from
// the stored record and the current time and never written back.
type View string

const (
	ViewUpcoming View = "upcoming"
	ViewAwaiting View = "awaiting"
	ViewHistory  View = "history"
)

// ParseView validates a view name.
func ParseView(value string) (View, error) {
	switch v := View(value); v {
	case ViewUpcoming, ViewAwaiting, ViewHistory:
		return v, nil
	default:
		return "", fmt.Errorf("meeting: unknown view %q", value)
	}
}

// Classify places a meeting in a view. Expired proposals land in history
// while keeping their stored pending status.
func (m *Machine) Classify(meeting Meeting, now time.Time) View {
	switch {
	case meeting.Status.IsTerminal():
		return ViewHistory
	case meeting.Status.AwaitingResponse():
		if m.Expired(meeting, now) {
			return ViewHistory
		}
		return ViewAwaiting
	case meeting.Status == StatusConfirmed && meeting.ScheduledAt.After(now):
		return ViewUpcoming
	default:
		return ViewHistory
	}
}

// IceBreakerDue reports whether a confirmed meeting is inside the final
// window where cancelling is disabled and the pre-meeting prompt is shown.
func (m *Machine) IceBreakerDue(meeting Meeting, now time.Time) bool {
	if meeting.Status != StatusConfirmed || !meeting.ScheduledAt.After(now) {
		return false
	}
	return meeting.ScheduledAt.Sub(now) <= m.policy.CancellationCutoff
}
