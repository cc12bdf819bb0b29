package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
	"fleet-command-server/internal/queue"
	"fleet-command-server/internal/store"
)

// InternalHandler serves the trust-gated operator surface: enqueueing
// commands, browsing the audit log, managing devices and minting service
// tokens.
type InternalHandler struct {
	Store       *store.Store
	Queue       *queue.Queue
	TokenConfig auth.TokenConfig
	AuditLimit  int
}

type enqueueBody struct {
	Device    any    `json:"device"`
	DeviceID  any    `json:"device_id"`
	Code      any    `json:"code"`
	Params    []any  `json:"params"`
	Note      string `json:"note"`
	ExpiresIn any    `json:"expires_in"`
	Source    string `json:"source"`
}

func intField(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

func (h *InternalHandler) Enqueue(c *gin.Context) {
	var body enqueueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Code == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code"})
		return
	}

	identifier := identString(body.Device)
	if identifier == "" {
		identifier = identString(body.DeviceID)
	}
	device, ok := h.Store.DeviceByIdentifier(identifier)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
		return
	}

	code, err := intField(body.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid code"})
		return
	}

	var params [4]int
	for i, raw := range body.Params {
		if i >= len(params) {
			break
		}
		if raw == nil {
			continue
		}
		value, err := intField(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid param%d", i+1)})
			return
		}
		params[i] = value
	}

	expiresIn := 60
	if body.ExpiresIn != nil {
		expiresIn, err = intField(body.ExpiresIn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expires_in"})
			return
		}
	}

	source := body.Source
	if source == "" {
		source = "internal_api"
	}

	entry, _ := h.Queue.Enqueue(device.ID, code, params, body.Note, expiresIn, map[string]string{"source": source})
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"queue_id":   entry.ID,
		"emergency":  entry.Emergency,
		"expires_at": entry.ExpiresAt,
	})
}

// CommandLog returns recent audit entries, newest first, optionally scoped
// to one device.
func (h *InternalHandler) CommandLog(c *gin.Context) {
	var deviceID int64
	if identifier := c.Query("device"); identifier != "" {
		device, ok := h.Store.DeviceByIdentifier(identifier)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
			return
		}
		deviceID = device.ID
	}

	entries := h.Store.AuditLog(deviceID, h.AuditLimit)
	payload := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, gin.H{
			"id":         e.ID,
			"device_id":  e.DeviceID,
			"command_id": e.CommandID,
			"queue_id":   e.QueueID,
			"status":     e.Status,
			"details":    e.Details,
			"created_at": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": payload})
}

func (h *InternalHandler) ListDevices(c *gin.Context) {
	devices := h.Store.ListDevices()
	payload := make([]gin.H, 0, len(devices))
	for _, d := range devices {
		payload = append(payload, gin.H{
			"id":           d.ID,
			"name":         d.Name,
			"active":       d.Active,
			"ip_address":   d.IPAddress,
			"wifi_signal":  d.WifiSignal,
			"last_seen_at": d.LastSeenAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "devices": payload})
}

type createDeviceBody struct {
	Name string `json:"name"`
}

// CreateDevice registers a device and returns its generated secret key.
// The key is shown once, here.
func (h *InternalHandler) CreateDevice(c *gin.Context) {
	var body createDeviceBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing name"})
		return
	}

	device, err := h.Store.CreateDevice(body.Name, time.Now().UnixMilli())
	if errors.Is(err, store.ErrDuplicateName) {
		c.JSON(http.StatusConflict, gin.H{"error": "Name already registered"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"id":      device.ID,
		"name":    device.Name,
		"api_key": device.APIKey,
	})
}

type serviceTokenBody struct {
	Service string `json:"service"`
}

// MintServiceToken issues a short-lived bearer token so internal services
// outside the trusted networks can pass the gate without the shared
// secret.
func (h *InternalHandler) MintServiceToken(c *gin.Context) {
	var body serviceTokenBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Service == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing service"})
		return
	}

	token, err := auth.CreateServiceToken(body.Service, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"token":      token,
		"expires_in": int(h.TokenConfig.Expiry.Seconds()),
	})
}
