package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
)

type AuthHandler struct {
	Auth *auth.Authenticator
}

type challengeBody struct {
	Key string `json:"key"`
}

type respondBody struct {
	Key      string `json:"key"`
	DeviceID int64  `json:"device_id"`
	Nonce    string `json:"nonce"`
	Response string `json:"response"`
}

// Challenge hands out a one-shot nonce. Unknown and inactive keys receive
// a decoy of identical shape, never an error.
func (h *AuthHandler) Challenge(c *gin.Context) {
	var body challengeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing key"})
		return
	}

	res := h.Auth.IssueChallenge(body.Key)
	if res.Garbage {
		c.JSON(http.StatusOK, gin.H{"status": "garbage", "nonce": res.Nonce})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"nonce":             res.Nonce,
		"ts":                res.IssuedAt,
		"min_delay_seconds": res.MinDelay,
	})
}

// Respond verifies the device's proof and mints a session token. Failures
// come back as status invalid with a decoy value; the HTTP status stays
// 200 so the response shape alone carries the outcome.
func (h *AuthHandler) Respond(c *gin.Context) {
	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.Nonce == "" || body.Response == "" || (body.Key == "" && body.DeviceID == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}

	grant, reason := h.Auth.VerifyChallenge(body.Key, body.DeviceID, body.Nonce, body.Response)
	if reason != "" {
		c.JSON(http.StatusOK, gin.H{"status": "invalid", "reason": reason, "garbage": auth.GarbageHex()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"session_token": grant.Token,
		"expires_in":    grant.ExpiresIn,
	})
}
