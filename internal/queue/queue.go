// Package queue implements the priority command delivery queue. Entries
// move forward only: Queued -> Delivered -> Acknowledged, with Expired
// reachable from Queued and Delivered and Cancelled reserved for internal
// use. Entries are never deleted, terminal entries stay as audit trail.
package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleet-command-server/internal/model"
)

var ErrUnknownQueue = errors.New("unknown_queue")

// AuditSink receives one record per lifecycle transition.
type AuditSink interface {
	Record(entry model.AuditEntry)
}

// Delivered pairs a claimed entry with its command for response building.
type Delivered struct {
	Entry   model.QueueEntry
	Command model.Command
}

// AckResult reports how an acknowledgement landed. Expired means the entry
// ran out before the acknowledgement and was transitioned instead.
type AckResult struct {
	Entry   model.QueueEntry
	Expired bool
}

// Queue holds all entries behind one mutex. Claiming rows under the lock
// is the sanctioned fallback for skip-locked row selection: two concurrent
// pollers for the same device serialize on the claim and partition the
// Queued entries instead of racing on them.
type Queue struct {
	mu       sync.Mutex
	entries  map[int64]model.QueueEntry
	commands map[int64]model.Command
	order    []int64
	seq      int64
	audit    AuditSink
	now      func() time.Time
}

func New(audit AuditSink) *Queue {
	return NewWithNow(audit, time.Now)
}

func NewWithNow(audit AuditSink, now func() time.Time) *Queue {
	return &Queue{
		entries:  make(map[int64]model.QueueEntry),
		commands: make(map[int64]model.Command),
		audit:    audit,
		now:      now,
	}
}

func (q *Queue) record(entry model.QueueEntry, status, details string) {
	if q.audit == nil {
		return
	}
	q.audit.Record(model.AuditEntry{
		ID:        uuid.NewString(),
		DeviceID:  entry.DeviceID,
		CommandID: entry.CommandID,
		QueueID:   entry.ID,
		Status:    status,
		Details:   details,
		CreatedAt: q.now().UnixMilli(),
	})
}

// Enqueue creates the command and its queue entry in one step. The
// emergency flag is snapshotted from the command code here and never
// recomputed. ttlSeconds below 1 is raised to 1 so expiry always lies
// strictly after creation.
func (q *Queue) Enqueue(deviceID int64, code int, params [4]int, note string, ttlSeconds int, metadata map[string]string) (model.QueueEntry, model.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()

	nowMs := q.now().UnixMilli()
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	q.seq++
	cmd := model.Command{
		ID:        q.seq,
		DeviceID:  deviceID,
		Code:      code,
		Params:    params,
		Note:      note,
		CreatedAt: nowMs,
	}
	q.commands[cmd.ID] = cmd

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	q.seq++
	entry := model.QueueEntry{
		ID:         q.seq,
		CommandID:  cmd.ID,
		DeviceID:   deviceID,
		Status:     model.StatusQueued,
		Emergency:  cmd.Emergency(),
		EnqueuedAt: nowMs,
		ExpiresAt:  nowMs + int64(ttlSeconds)*1000,
		Metadata:   meta,
	}
	q.entries[entry.ID] = entry
	q.order = append(q.order, entry.ID)

	q.record(entry, string(model.StatusQueued), "Command enqueued.")
	return entry, cmd
}

// ExpireOverdue transitions every overdue non-terminal entry of the device
// to Expired. Callers run this before polling so stale entries are never
// delivered. Returns the number of entries expired.
func (q *Queue) ExpireOverdue(deviceID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	nowMs := q.now().UnixMilli()
	expired := 0
	for _, id := range q.order {
		entry := q.entries[id]
		if entry.DeviceID != deviceID || entry.Status.Terminal() {
			continue
		}
		if entry.ExpiresAt > nowMs {
			continue
		}
		entry.Status = model.StatusExpired
		q.entries[id] = entry
		q.record(entry, string(model.StatusExpired), "Command expired before delivery.")
		expired++
	}
	return expired
}

// Poll claims up to limit Queued entries for the device, emergency entries
// first and oldest first within the same class, and transitions them to
// Delivered. Selection and transition happen under the same lock, so two
// concurrent pollers never receive the same entry. limit is clamped to
// [1, 10].
func (q *Queue) Poll(deviceID int64, limit int) []Delivered {
	if limit < 1 {
		limit = 1
	} else if limit > 10 {
		limit = 10
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var eligible []int64
	for _, id := range q.order {
		entry := q.entries[id]
		if entry.DeviceID == deviceID && entry.Status == model.StatusQueued {
			eligible = append(eligible, id)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := q.entries[eligible[i]], q.entries[eligible[j]]
		if a.Emergency != b.Emergency {
			return a.Emergency
		}
		return a.EnqueuedAt < b.EnqueuedAt
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	nowMs := q.now().UnixMilli()
	claimed := make([]Delivered, 0, len(eligible))
	for _, id := range eligible {
		entry := q.entries[id]
		entry.Status = model.StatusDelivered
		entry.DeliveredAt = nowMs
		q.entries[id] = entry
		q.record(entry, string(model.StatusDelivered), "Command delivered to device.")
		claimed = append(claimed, Delivered{Entry: entry, Command: q.commands[entry.CommandID]})
	}
	return claimed
}

// Acknowledge finalizes an entry on behalf of the device. Lookups are
// scoped to the device, a foreign id reads as unknown. An entry whose
// deadline passed is expired instead of acknowledged. Acknowledging an
// already acknowledged entry is accepted and simply re-stamps times.
func (q *Queue) Acknowledge(deviceID, queueID int64, statusLabel, detail string) (AckResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[queueID]
	if !ok || entry.DeviceID != deviceID || entry.Status == model.StatusCancelled {
		return AckResult{}, ErrUnknownQueue
	}

	nowMs := q.now().UnixMilli()

	if entry.Status == model.StatusExpired {
		return AckResult{Entry: entry, Expired: true}, nil
	}
	if entry.Status != model.StatusAcknowledged && entry.ExpiresAt <= nowMs {
		entry.Status = model.StatusExpired
		q.entries[queueID] = entry
		q.record(entry, string(model.StatusExpired), "Command expired before acknowledgement.")
		return AckResult{Entry: entry, Expired: true}, nil
	}

	entry.Status = model.StatusAcknowledged
	entry.AcknowledgedAt = nowMs
	if entry.DeliveredAt == 0 {
		entry.DeliveredAt = nowMs
	}
	q.entries[queueID] = entry
	q.record(entry, statusLabel, detail)
	return AckResult{Entry: entry}, nil
}

// Cancel is the reserved Queued -> Cancelled transition. There is no
// public route to it; internal tooling may withdraw a command before
// delivery.
func (q *Queue) Cancel(deviceID, queueID int64, detail string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[queueID]
	if !ok || entry.DeviceID != deviceID {
		return ErrUnknownQueue
	}
	if entry.Status != model.StatusQueued {
		return ErrUnknownQueue
	}

	entry.Status = model.StatusCancelled
	q.entries[queueID] = entry
	q.record(entry, string(model.StatusCancelled), detail)
	return nil
}

// Entry returns a queue entry by id, unscoped. Internal inspection only.
func (q *Queue) Entry(id int64) (model.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[id]
	return entry, ok
}

// Command returns a command by id.
func (q *Queue) Command(id int64) (model.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd, ok := q.commands[id]
	return cmd, ok
}
