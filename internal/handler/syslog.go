package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/middleware"
	"fleet-command-server/internal/model"
	"fleet-command-server/internal/store"
)

type SyslogHandler struct {
	Store *store.Store
}

type syslogBody struct {
	Severity   *int   `json:"severity"`
	Facility   string `json:"facility"`
	Host       string `json:"host"`
	Tag        string `json:"tag"`
	Message    string `json:"message"`
	Priority   *int   `json:"priority"`
	DeviceTime string `json:"device_time"`
}

// Ingest stores one syslog record from a device. Absent fields fall back
// to the syslog conventions the firmware assumes.
func (h *SyslogHandler) Ingest(c *gin.Context) {
	if _, ok := middleware.DeviceIDFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}

	var body syslogBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	entry := model.SyslogEntry{
		Severity:   6,
		Facility:   "user",
		Host:       "unknown",
		Tag:        "esp32",
		Message:    "No message",
		Priority:   14,
		IP:         c.ClientIP(),
		DeviceTime: body.DeviceTime,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if body.Severity != nil {
		entry.Severity = *body.Severity
	}
	if body.Facility != "" {
		entry.Facility = body.Facility
	}
	if body.Host != "" {
		entry.Host = body.Host
	}
	if body.Tag != "" {
		entry.Tag = body.Tag
	}
	if body.Message != "" {
		entry.Message = body.Message
	}
	if body.Priority != nil {
		entry.Priority = *body.Priority
	}

	stored := h.Store.RecordSyslog(entry)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": stored.ID})
}
