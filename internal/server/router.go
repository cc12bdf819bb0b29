package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
	"fleet-command-server/internal/handler"
	"fleet-command-server/internal/hub"
	"fleet-command-server/internal/middleware"
	"fleet-command-server/internal/queue"
	"fleet-command-server/internal/store"
)

type Deps struct {
	Store       *store.Store
	Queue       *queue.Queue
	Auth        *auth.Authenticator
	Validator   *auth.Validator
	Trust       *middleware.TrustGate
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
	AuditLimit  int
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Challenge issuance is the only unauthenticated endpoint that
	// creates state; cap it per source address.
	challengeLimiter := middleware.NewRateLimiter(10, time.Minute)

	authHandler := &handler.AuthHandler{Auth: deps.Auth}
	r.POST("/auth/challenge", middleware.Limit(challengeLimiter), authHandler.Challenge)
	r.POST("/auth/respond", authHandler.Respond)

	commands := &handler.CommandsHandler{Store: deps.Store, Queue: deps.Queue, Validator: deps.Validator}
	r.POST("/commands/poll", commands.Poll)
	r.POST("/commands/ack", commands.Ack)

	device := r.Group("")
	device.Use(middleware.RequireSession(deps.Auth))

	tags := &handler.TagsHandler{Store: deps.Store}
	device.POST("/tags/check", tags.Check)
	device.POST("/tags/register-request", tags.RegisterRequest)
	device.POST("/tags/revoke-request", tags.RevokeRequest)

	status := &handler.StatusHandler{Store: deps.Store}
	device.POST("/device/status", status.Update)

	syslog := &handler.SyslogHandler{Store: deps.Store}
	device.POST("/syslog", syslog.Ingest)

	internal := r.Group("/internal")
	internal.Use(deps.Trust.Require())

	internalHandler := &handler.InternalHandler{
		Store:       deps.Store,
		Queue:       deps.Queue,
		TokenConfig: deps.TokenConfig,
		AuditLimit:  deps.AuditLimit,
	}
	internal.POST("/commands/enqueue", internalHandler.Enqueue)
	internal.GET("/commands/log", internalHandler.CommandLog)
	internal.GET("/devices", internalHandler.ListDevices)
	internal.POST("/devices", internalHandler.CreateDevice)
	internal.POST("/service-token", internalHandler.MintServiceToken)

	events := &handler.EventsHandler{Hub: deps.Hub}
	r.GET("/ws", deps.Trust.Require(), events.Serve)

	return r
}
