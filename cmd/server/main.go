package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
	"fleet-command-server/internal/config"
	"fleet-command-server/internal/hub"
	"fleet-command-server/internal/middleware"
	"fleet-command-server/internal/queue"
	"fleet-command-server/internal/server"
	"fleet-command-server/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	st := store.New()
	eventHub := hub.New()
	commandQueue := queue.New(server.NewAuditFanout(st, eventHub))

	authenticator := auth.NewAuthenticator(st, auth.NewTTLStore(), cfg.ChallengeTTL, cfg.SessionTTL, cfg.MinResponseDelay)
	validator := auth.NewValidator(cfg.HMACTolerance)

	tokenCfg := auth.DefaultTokenConfig(cfg.InternalToken)
	trust, err := middleware.NewTrustGate(cfg.InternalToken, cfg.InternalNetworks, tokenCfg)
	if err != nil {
		log.Fatal(err)
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		Queue:       commandQueue,
		Auth:        authenticator,
		Validator:   validator,
		Trust:       trust,
		Hub:         eventHub,
		TokenConfig: tokenCfg,
		AuditLimit:  cfg.AuditLogLimit,
	})

	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
