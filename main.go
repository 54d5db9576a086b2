package main

import (
	"context"
	"log"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/config"
	"github.com/sprintdeck/estimation/internal/handlers"
	"github.com/sprintdeck/estimation/internal/security"
	"github.com/sprintdeck/estimation/internal/services"
	_ "github.com/sprintdeck/estimation/pb_migrations"
)

func main() {
	pb := pocketbase.New()

	cfg := config.LoadConfig()

	metrics := services.NewMetrics()
	hub := services.NewHub(metrics)

	search, err := services.NewStorySearch()
	if err != nil {
		log.Fatal(err)
	}

	pb.OnServe().BindFunc(func(se *core.ServeEvent) error {
		se.Router.Bind(handlers.AuthCookieMiddleware())

		manager := services.NewSessionManager(se.App)
		calculator := services.NewConsensusCalculator(manager.Catalog())
		history := services.NewHistoryAggregator(se.App, manager.Ledger(), calculator)

		estimation := handlers.NewEstimationHandlers(manager, history, search, hub, calculator)
		if err := estimation.RegisterEstimation(se); err != nil {
			return err
		}

		origins := security.NewOriginValidator(cfg.AllowedOrigins)
		ws := handlers.NewWSHandler(hub, estimation, origins)
		if err := ws.RegisterWS(se); err != nil {
			return err
		}

		se.Router.GET("/api/estimation/metrics", handlers.HandleMetrics(hub))
		se.Router.GET("/healthz", handlers.HandleHealth(hub))

		if err := search.Rebuild(se.App); err != nil {
			return err
		}

		go hub.Run(context.Background())

		return se.Next()
	})

	// Keep the story search index current.
	pb.OnRecordAfterCreateSuccess("stories").BindFunc(func(e *core.RecordEvent) error {
		if err := search.IndexStory(e.Record); err != nil {
			log.Printf("failed to index story %s: %v", e.Record.Id, err)
		}
		return e.Next()
	})
	pb.OnRecordAfterUpdateSuccess("stories").BindFunc(func(e *core.RecordEvent) error {
		if err := search.IndexStory(e.Record); err != nil {
			log.Printf("failed to reindex story %s: %v", e.Record.Id, err)
		}
		return e.Next()
	})
	pb.OnRecordAfterDeleteSuccess("stories").BindFunc(func(e *core.RecordEvent) error {
		if err := search.RemoveStory(e.Record.Id); err != nil {
			log.Printf("failed to drop story %s from index: %v", e.Record.Id, err)
		}
		return e.Next()
	})

	if err := pb.Start(); err != nil {
		log.Fatal(err)
	}
}
