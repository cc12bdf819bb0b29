package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/middleware"
	"fleet-command-server/internal/store"
)

// TagsHandler serves the session-protected tag surface: access checks and
// pending register/revoke requests raised from the field.
type TagsHandler struct {
	Store *store.Store
}

type tagCheckBody struct {
	TagUID string `json:"tag_uid"`
}

type tagRegisterBody struct {
	TagUID      string `json:"tag_uid"`
	Description string `json:"description"`
}

type tagRevokeBody struct {
	TagUID string `json:"tag_uid"`
	Reason string `json:"reason"`
}

func (h *TagsHandler) Check(c *gin.Context) {
	deviceID, ok := middleware.DeviceIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}

	var body tagCheckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.TagUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tag_uid"})
		return
	}

	now := time.Now().UnixMilli()
	tag, ok := h.Store.TagByUID(body.TagUID)
	if !ok {
		h.Store.RecordAccess(deviceID, body.TagUID, "", false, "Access denied: unknown tag", now)
		c.JSON(http.StatusOK, gin.H{"access_granted": false, "reason": "unknown_tag"})
		return
	}

	var owner any
	if tag.OwnerID != "" {
		if person, ok := h.Store.PersonByID(tag.OwnerID); ok {
			owner = person.FullName
		}
	}

	detail := "Access granted"
	if !tag.Allowed {
		detail = "Access denied: tag not allowed"
	}
	h.Store.TouchTag(tag.UID, now)
	h.Store.RecordAccess(deviceID, tag.UID, identString(owner), tag.Allowed, detail, now)

	c.JSON(http.StatusOK, gin.H{"access_granted": tag.Allowed, "owner": owner})
}

func (h *TagsHandler) RegisterRequest(c *gin.Context) {
	deviceID, ok := middleware.DeviceIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body tagRegisterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.TagUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tag_uid"})
		return
	}

	req := h.Store.CreateTagRequest("register", deviceID, body.TagUID, body.Description, "", time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": req.ID})
}

func (h *TagsHandler) RevokeRequest(c *gin.Context) {
	deviceID, ok := middleware.DeviceIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body tagRevokeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.TagUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tag_uid"})
		return
	}
	if _, ok := h.Store.TagByUID(body.TagUID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	req := h.Store.CreateTagRequest("revoke", deviceID, body.TagUID, "", body.Reason, time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": req.ID})
}
