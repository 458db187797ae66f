package api

import (
	"log/slog"

	"github.com/listopadhq/listopad/internal/artifacts"
	"github.com/listopadhq/listopad/internal/catalog"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine       *lifecycle.Engine
	runRepo      *repo.RunRepo
	targetRepo   *repo.TargetRepo
	eventRepo    *repo.EventRepo
	artifactRepo *repo.ArtifactRepo
	artifacts    *artifacts.Service
	catalog      *catalog.Registry
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine       *lifecycle.Engine
	RunRepo      *repo.RunRepo
	TargetRepo   *repo.TargetRepo
	EventRepo    *repo.EventRepo
	ArtifactRepo *repo.ArtifactRepo
	Artifacts    *artifacts.Service
	Catalog      *catalog.Registry
	Publisher    *mq.Publisher
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		engine:       cfg.Engine,
		runRepo:      cfg.RunRepo,
		targetRepo:   cfg.TargetRepo,
		eventRepo:    cfg.EventRepo,
		artifactRepo: cfg.ArtifactRepo,
		artifacts:    cfg.Artifacts,
		catalog:      cfg.Catalog,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
