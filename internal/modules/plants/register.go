package plants

import (
	"database/sql"
	"net/http"

	"plantsense-server/internal/config"
	"plantsense-server/internal/modules/plants/controller"
	"plantsense-server/internal/modules/plants/repository"
	"plantsense-server/internal/modules/plants/service"
)

// NewService wires the plants feature's storage and service layers.
func NewService(db *sql.DB, cfg config.Config) *service.Service {
	repo := repository.NewRepository(db)
	return service.NewService(repo, service.Options{
		RawDataDir:   cfg.RawDataDir,
		CanonicalDir: cfg.CanonicalDir,
		Plants:       cfg.Plants,
		ChunkSize:    cfg.StreamChunkSize,
	})
}

// RegisterFeature mounts the plants feature's routes on the mux.
func RegisterFeature(mux *http.ServeMux, svc *service.Service) {
	plantController := controller.NewPlantController(svc)
	plantController.RegisterRoutes(mux)
}
