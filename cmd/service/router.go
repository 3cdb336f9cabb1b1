package service

import (
	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/cmd/service/handler"
	"github.com/mentraflow/mentraflow/cmd/service/middleware"
	"github.com/mentraflow/mentraflow/pkg/metrics"
)

func serve(core *core.Core) {
	httpSrv := &handler.HttpSrv{
		Core:   core,
		Engine: core.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	core.HttpEngine().Run(core.Cfg().Addr)
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.GET("/metrics", metrics.DefaultExportHandler())

	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)
	s.Engine.Use(middleware.AcceptLanguage())
	s.Engine.Use(middleware.Metrics(s.Core))

	apiV1 := s.Engine.Group("/api/v1")
	apiV1.Use(middleware.Identity(s.Core))
	{
		document := apiV1.Group("/documents")
		{
			document.POST("", s.CreateDocument)
			document.GET("", s.ListDocuments)
			document.GET("/:id", s.GetDocument)
			document.DELETE("/:id", s.DeleteDocument)
			document.POST("/:id/ingest", s.IngestDocument)
			document.POST("/:id/summary", s.SummarizeDocument)
			document.POST("/:id/flashcards", s.GenerateFlashcards)
			document.POST("/:id/kg", s.ExtractDocumentKG)
		}

		apiV1.POST("/chat", s.Chat)

		flashcard := apiV1.Group("/flashcards")
		{
			flashcard.GET("", s.ListFlashcards)
			flashcard.DELETE("/:id", s.DeleteFlashcard)
		}

		apiV1.GET("/kg", s.GetKnowledgeGraph)

		run := apiV1.Group("/runs")
		{
			run.GET("", s.ListRuns)
			run.GET("/:id", s.GetRun)
		}
	}
}
