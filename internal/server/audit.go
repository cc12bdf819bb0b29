package server

import (
	"encoding/json"

	"fleet-command-server/internal/hub"
	"fleet-command-server/internal/model"
	"fleet-command-server/internal/store"
)

// AuditFanout feeds queue lifecycle records to the store and mirrors them
// to websocket observers on the "commands" topic.
type AuditFanout struct {
	Store *store.Store
	Hub   *hub.Hub
}

type commandEvent struct {
	ID        string `json:"id"`
	DeviceID  int64  `json:"device_id"`
	CommandID int64  `json:"command_id"`
	QueueID   int64  `json:"queue_id"`
	Status    string `json:"status"`
	Details   string `json:"details"`
	CreatedAt int64  `json:"created_at"`
}

func NewAuditFanout(st *store.Store, h *hub.Hub) *AuditFanout {
	return &AuditFanout{Store: st, Hub: h}
}

func (f *AuditFanout) Record(entry model.AuditEntry) {
	f.Store.Record(entry)
	if f.Hub == nil {
		return
	}

	data, err := json.Marshal(commandEvent{
		ID:        entry.ID,
		DeviceID:  entry.DeviceID,
		CommandID: entry.CommandID,
		QueueID:   entry.QueueID,
		Status:    entry.Status,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return
	}
	f.Hub.Publish("commands", data)
}
