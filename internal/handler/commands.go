package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
	"fleet-command-server/internal/codec"
	"fleet-command-server/internal/model"
	"fleet-command-server/internal/queue"
	"fleet-command-server/internal/store"
)

type CommandsHandler struct {
	Store     *store.Store
	Queue     *queue.Queue
	Validator *auth.Validator
}

type pollBody struct {
	Device    any    `json:"device"`
	DeviceID  any    `json:"device_id"`
	Timestamp any    `json:"timestamp"`
	Signature string `json:"signature"`
	Limit     any    `json:"limit"`
	Format    string `json:"format"`
}

type ackBody struct {
	Device    any    `json:"device"`
	DeviceID  any    `json:"device_id"`
	QueueID   any    `json:"queue_id"`
	Timestamp any    `json:"timestamp"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

// identString normalizes the device field, which arrives as a name string
// or a numeric id.
func identString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return fmt.Sprint(t)
	}
}

func parseLimit(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return 1
}

func parseQueueID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (h *CommandsHandler) lookupDevice(c *gin.Context, ident, fallback any) (model.Device, bool) {
	identifier := identString(ident)
	if identifier == "" {
		identifier = identString(fallback)
	}
	device, ok := h.Store.DeviceByIdentifier(identifier)
	if !ok || device.APIKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "invalid", "reason": "unknown_device"})
		return model.Device{}, false
	}
	return device, true
}

func commandJSON(d queue.Delivered) gin.H {
	return gin.H{
		"queue_id":   d.Entry.ID,
		"code":       d.Command.Code,
		"params":     d.Command.Params,
		"expires_at": d.Entry.ExpiresAt,
		"emergency":  d.Entry.Emergency,
	}
}

// Poll expires overdue entries, then claims up to limit queued commands
// for the signed device. format "binary" returns the single claimed
// command as a raw frame with the queue id and code in response headers.
func (h *CommandsHandler) Poll(c *gin.Context) {
	var body pollBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	device, ok := h.lookupDevice(c, body.Device, body.DeviceID)
	if !ok {
		return
	}

	// Canonical fields for polling: device id, then timestamp.
	err := h.Validator.Validate(device.APIKey, body.Signature, body.Timestamp,
		strconv.FormatInt(device.ID, 10))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "invalid", "reason": err.Error()})
		return
	}

	h.Queue.ExpireOverdue(device.ID)
	claimed := h.Queue.Poll(device.ID, parseLimit(body.Limit))

	if len(claimed) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "commands": []gin.H{}})
		return
	}

	if body.Format == "binary" {
		if len(claimed) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Binary format supports a single command"})
			return
		}
		frame, err := codec.Encode(claimed[0].Command)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Header("X-Queue-Id", strconv.FormatInt(claimed[0].Entry.ID, 10))
		c.Header("X-Command-Code", strconv.Itoa(claimed[0].Command.Code))
		c.Data(http.StatusOK, "application/octet-stream", frame)
		return
	}

	payload := make([]gin.H, 0, len(claimed))
	for _, d := range claimed {
		payload = append(payload, commandJSON(d))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "commands": payload})
}

// Ack finalizes a delivered command. An entry past its deadline is
// reported as expired with 410 instead of being acknowledged.
func (h *CommandsHandler) Ack(c *gin.Context) {
	var body ackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.QueueID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid", "reason": "missing_queue"})
		return
	}

	device, ok := h.lookupDevice(c, body.Device, body.DeviceID)
	if !ok {
		return
	}

	queueID, ok := parseQueueID(body.QueueID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid", "reason": "queue_format"})
		return
	}

	statusLabel := body.Status
	if statusLabel == "" {
		statusLabel = "acknowledged"
	}

	// Canonical fields for acknowledgement: device id, queue id, status
	// label, then timestamp.
	err := h.Validator.Validate(device.APIKey, body.Signature, body.Timestamp,
		strconv.FormatInt(device.ID, 10),
		strconv.FormatInt(queueID, 10),
		statusLabel)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "invalid", "reason": err.Error()})
		return
	}

	detail := body.Detail
	if detail == "" {
		detail = "Command acknowledged by device."
	}

	res, err := h.Queue.Acknowledge(device.ID, queueID, statusLabel, detail)
	if errors.Is(err, queue.ErrUnknownQueue) {
		c.JSON(http.StatusNotFound, gin.H{"status": "invalid", "reason": "unknown_queue"})
		return
	}
	if res.Expired {
		c.JSON(http.StatusGone, gin.H{"status": "expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
