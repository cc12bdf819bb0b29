package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/middleware"
	"fleet-command-server/internal/store"
)

type StatusHandler struct {
	Store *store.Store
}

type statusBody struct {
	WifiRSSI      *int   `json:"wifi_rssi"`
	BatteryStatus string `json:"battery_status"`
	DeviceTime    string `json:"esp32_time"`
}

// Update is the device heartbeat: liveness stamp, source address and
// whatever health fields the firmware reports.
func (h *StatusHandler) Update(c *gin.Context) {
	deviceID, ok := middleware.DeviceIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}

	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	device, ok := h.Store.UpdateDeviceHeartbeat(deviceID, c.ClientIP(), body.WifiRSSI, body.BatteryStatus, body.DeviceTime, time.Now().UnixMilli())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "updated_at": device.LastSeenAt})
}
