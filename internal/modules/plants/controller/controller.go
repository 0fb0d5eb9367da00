package controller

import (
	"net/http"

	"plantsense-server/internal/modules/plants/service"
)

type PlantController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type plantControllerImpl struct {
	service *service.Service
}

func NewPlantController(service *service.Service) PlantController {
	return &plantControllerImpl{service: service}
}

func (c *plantControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /plants/sensor_data/", c.handleSensorData)
	mux.HandleFunc("GET /plants/{plant_name}/sensor_data/", c.handleSensorData)
	mux.HandleFunc("GET /plants/{plant_name}/stats", c.handleStats)
	mux.HandleFunc("GET /plants/{plant_name}/stats/table", c.handleStatsTable)
	mux.HandleFunc("GET /plants/{plant_name}/info", c.handlePlantInfo)
}
