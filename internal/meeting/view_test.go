package meeting

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	machine := NewMachine(DefaultPolicy())

	base := Meeting{
		ID:          "m",
		RequesterID: "alice",
		RecipientID: "bob",
		ProposedBy:  "alice",
		CreatedAt:   reference,
		ProposedAt:  reference,
	}

	cases := []struct {
		name   string
		status Status
		at     time.Duration
		now    time.Duration
		want   View
	}{
		{name: "fresh pending", status: StatusPending, at: 10 * 24 * time.Hour, now: time.Hour, want: ViewAwaiting},
		{name: "pending older than four days", status: StatusPending, at: 10 * 24 * time.Hour, now: 4*24*time.Hour + time.Second, want: ViewHistory},
		{name: "pending exactly four days", status: StatusPending, at: 10 * 24 * time.Hour, now: 4 * 24 * time.Hour, want: ViewAwaiting},
		{name: "pending whose time passed", status: StatusPending, at: time.Hour, now: 2 * time.Hour, want: ViewHistory},
		{name: "legacy reschedule requested", status: StatusRescheduleRequested, at: 48 * time.Hour, now: time.Hour, want: ViewAwaiting},
		{name: "confirmed future", status: StatusConfirmed, at: 48 * time.Hour, now: time.Hour, want: ViewUpcoming},
		{name: "confirmed past", status: StatusConfirmed, at: time.Hour, now: 2 * time.Hour, want: ViewHistory},
		{name: "declined", status: StatusDeclined, at: 48 * time.Hour, now: time.Hour, want: ViewHistory},
		{name: "completed", status: StatusCompleted, at: time.Hour, now: 2 * time.Hour, want: ViewHistory},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := base
			m.Status = tc.status
			m.ScheduledAt = reference.Add(tc.at)

			got := machine.Classify(m, reference.Add(tc.now))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if m.Status != tc.status {
				t.Fatalf("classification must not change the stored status")
			}
		})
	}
}

func TestClassifyUsesLatestProposal(t *testing.T) {
	t.Parallel()
	machine := NewMachine(DefaultPolicy())

	m := Meeting{
		RequesterID: "alice",
		RecipientID: "bob",
		Status:      StatusPending,
		CreatedAt:   reference,
		ProposedAt:  reference.Add(3 * 24 * time.Hour),
		ScheduledAt: reference.Add(20 * 24 * time.Hour),
	}
	if got := machine.Classify(m, reference.Add(5*24*time.Hour)); got != ViewAwaiting {
		t.Fatalf("a re-proposal restarts the expiry clock, got %s", got)
	}

	m.ProposedAt = time.Time{}
	if got := machine.Classify(m, reference.Add(5*24*time.Hour)); got != ViewHistory {
		t.Fatalf("without a proposal time createdAt applies, got %s", got)
	}
}

func TestParseView(t *testing.T) {
	t.Parallel()

	if v, err := ParseView("history"); err != nil || v != ViewHistory {
		t.Fatalf("unexpected %v %v", v, err)
	}
	if _, err := ParseView("archive"); err == nil {
		t.Fatalf("expected error")
	}
}
