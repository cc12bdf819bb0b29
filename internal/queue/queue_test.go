package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fleet-command-server/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (s *recordingSink) Record(entry model.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Status)
	}
	return out
}

func TestEnqueueDerivesEmergency(t *testing.T) {
	q := New(&recordingSink{})

	entry, cmd := q.Enqueue(1, 8999, [4]int{}, "", 60, nil)
	if entry.Emergency || cmd.Emergency() {
		t.Fatalf("code 8999 must not be emergency")
	}

	entry, cmd = q.Enqueue(1, 9000, [4]int{}, "", 60, nil)
	if !entry.Emergency || !cmd.Emergency() {
		t.Fatalf("code 9000 must be emergency")
	}
}

func TestEnqueueExpiryStrictlyAfterCreation(t *testing.T) {
	q := New(&recordingSink{})
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 0, nil)
	if entry.ExpiresAt <= entry.EnqueuedAt {
		t.Fatalf("expires_at %d not after enqueued_at %d", entry.ExpiresAt, entry.EnqueuedAt)
	}
}

func TestPollEmergencyPrecedesOlderEntries(t *testing.T) {
	q := New(&recordingSink{})
	a, _ := q.Enqueue(1, 10, [4]int{}, "first", 60, nil)
	b, _ := q.Enqueue(1, 9500, [4]int{}, "emergency", 60, nil)

	claimed := q.Poll(1, 2)
	if len(claimed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(claimed))
	}
	if claimed[0].Entry.ID != b.ID || claimed[1].Entry.ID != a.ID {
		t.Fatalf("expected emergency first: got %d, %d", claimed[0].Entry.ID, claimed[1].Entry.ID)
	}
	for _, d := range claimed {
		if d.Entry.Status != model.StatusDelivered || d.Entry.DeliveredAt == 0 {
			t.Fatalf("claimed entry not delivered: %+v", d.Entry)
		}
	}
}

func TestPollFIFOWithinClass(t *testing.T) {
	now := time.Unix(1000, 0)
	q := NewWithNow(&recordingSink{}, func() time.Time { return now })

	first, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	now = now.Add(time.Second)
	second, _ := q.Enqueue(1, 11, [4]int{}, "", 60, nil)

	claimed := q.Poll(1, 10)
	if len(claimed) != 2 || claimed[0].Entry.ID != first.ID || claimed[1].Entry.ID != second.ID {
		t.Fatalf("expected FIFO order, got %+v", claimed)
	}
}

func TestPollScopedToDevice(t *testing.T) {
	q := New(&recordingSink{})
	q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	other, _ := q.Enqueue(2, 11, [4]int{}, "", 60, nil)

	claimed := q.Poll(2, 10)
	if len(claimed) != 1 || claimed[0].Entry.ID != other.ID {
		t.Fatalf("expected only device 2 entries, got %+v", claimed)
	}
}

func TestPollLimitClamp(t *testing.T) {
	q := New(&recordingSink{})
	for i := 0; i < 15; i++ {
		q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	}

	if got := len(q.Poll(1, 50)); got != 10 {
		t.Fatalf("expected clamp to 10, got %d", got)
	}
	if got := len(q.Poll(1, 0)); got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
}

func TestConcurrentPollersPartitionEntries(t *testing.T) {
	q := New(&recordingSink{})
	q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	q.Enqueue(1, 11, [4]int{}, "", 60, nil)

	results := make(chan []Delivered, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Poll(1, 1)
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	total := 0
	for claimed := range results {
		for _, d := range claimed {
			if seen[d.Entry.ID] {
				t.Fatalf("entry %d delivered twice", d.Entry.ID)
			}
			seen[d.Entry.ID] = true
			total++
		}
	}
	if total != 2 {
		t.Fatalf("expected both entries claimed once, got %d", total)
	}
}

func TestExpireOverdueBeforePoll(t *testing.T) {
	now := time.Unix(1000, 0)
	sink := &recordingSink{}
	q := NewWithNow(sink, func() time.Time { return now })

	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 5, nil)
	now = now.Add(6 * time.Second)

	if expired := q.ExpireOverdue(1); expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	if claimed := q.Poll(1, 10); len(claimed) != 0 {
		t.Fatalf("expired entry must not be delivered: %+v", claimed)
	}

	got, _ := q.Entry(entry.ID)
	if got.Status != model.StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}

func TestAcknowledgeHappyPath(t *testing.T) {
	sink := &recordingSink{}
	q := New(sink)
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	q.Poll(1, 1)

	res, err := q.Acknowledge(1, entry.ID, "acknowledged", "done")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if res.Expired || res.Entry.Status != model.StatusAcknowledged || res.Entry.AcknowledgedAt == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	want := []string{"queued", "delivered", "acknowledged"}
	got := sink.statuses()
	if len(got) != len(want) {
		t.Fatalf("expected %v audit trail, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v audit trail, got %v", want, got)
		}
	}
}

func TestAcknowledgeBackfillsDeliveredAt(t *testing.T) {
	q := New(&recordingSink{})
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)

	res, err := q.Acknowledge(1, entry.ID, "acknowledged", "")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if res.Entry.DeliveredAt == 0 {
		t.Fatalf("expected delivered_at backfill")
	}
}

func TestAcknowledgeExpiredEntry(t *testing.T) {
	now := time.Unix(1000, 0)
	q := NewWithNow(&recordingSink{}, func() time.Time { return now })
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 5, nil)
	q.Poll(1, 1)

	now = now.Add(6 * time.Second)
	res, err := q.Acknowledge(1, entry.ID, "acknowledged", "")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !res.Expired || res.Entry.Status != model.StatusExpired {
		t.Fatalf("expected expired result, got %+v", res)
	}

	// Reporting again stays expired, never flips to acknowledged.
	res, err = q.Acknowledge(1, entry.ID, "acknowledged", "")
	if err != nil || !res.Expired {
		t.Fatalf("expected expired on retry, got %+v %v", res, err)
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	q := New(&recordingSink{})
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	q.Poll(1, 1)

	first, err := q.Acknowledge(1, entry.ID, "acknowledged", "")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	second, err := q.Acknowledge(1, entry.ID, "acknowledged", "again")
	if err != nil {
		t.Fatalf("second Acknowledge: %v", err)
	}
	if second.Expired || second.Entry.Status != model.StatusAcknowledged {
		t.Fatalf("expected idempotent ack, got %+v", second)
	}
	if second.Entry.AcknowledgedAt < first.Entry.AcknowledgedAt {
		t.Fatalf("expected re-stamped time")
	}
}

func TestAcknowledgeCrossDevice(t *testing.T) {
	q := New(&recordingSink{})
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)

	if _, err := q.Acknowledge(2, entry.ID, "acknowledged", ""); !errors.Is(err, ErrUnknownQueue) {
		t.Fatalf("expected unknown_queue, got %v", err)
	}
	if _, err := q.Acknowledge(1, 9999, "acknowledged", ""); !errors.Is(err, ErrUnknownQueue) {
		t.Fatalf("expected unknown_queue for missing id, got %v", err)
	}
}

func TestCancelOnlyFromQueued(t *testing.T) {
	q := New(&recordingSink{})
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)

	if err := q.Cancel(1, entry.ID, "withdrawn"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, _ := q.Entry(entry.ID)
	if got.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	delivered, _ := q.Enqueue(1, 11, [4]int{}, "", 60, nil)
	q.Poll(1, 1)
	if err := q.Cancel(1, delivered.ID, "withdrawn"); !errors.Is(err, ErrUnknownQueue) {
		t.Fatalf("expected cancel refusal after delivery, got %v", err)
	}
}

func TestNoReverseTransitions(t *testing.T) {
	q := New(&recordingSink{})
	entry, _ := q.Enqueue(1, 10, [4]int{}, "", 60, nil)
	q.Poll(1, 1)
	q.Acknowledge(1, entry.ID, "acknowledged", "")

	// Polling again must not pick up the acknowledged entry.
	if claimed := q.Poll(1, 10); len(claimed) != 0 {
		t.Fatalf("terminal entry re-delivered: %+v", claimed)
	}
	got, _ := q.Entry(entry.ID)
	if got.Status != model.StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", got.Status)
	}
}
