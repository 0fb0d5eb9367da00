package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"plantsense-server/internal/modules/plants/types"
	"plantsense-server/internal/modules/plants/views"
	"plantsense-server/internal/utils"
)

func (c *plantControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	stats, err := c.service.Stats(r.Context(), "")
	if err != nil {
		slog.Error("dashboard: get stats failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load plants")
		return
	}
	data := views.DashboardData{Plants: plantOptions(stats)}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.RenderDashboard(w, &data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
}

// handleSensorData streams readings as NDJSON, all plants or one. Chunks
// are flushed as they are produced so the full result never sits in
// memory; a disconnected client aborts the stream via the request context.
func (c *plantControllerImpl) handleSensorData(w http.ResponseWriter, r *http.Request) {
	plant := r.PathValue("plant_name")
	chunkSize, err := parseChunkSize(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stream, err := c.service.StreamReadings(r.Context(), plant, chunkSize)
	if err != nil {
		slog.Error("sensor data: open stream failed", "plant", plant, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to query readings")
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Error("sensor data: close stream", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	flusher, _ := w.(http.Flusher)
	for {
		chunk, err := stream.Next()
		if err != nil {
			// Headers are gone; all we can do is stop mid-stream.
			slog.Error("sensor data: stream chunk failed", "plant", plant, "error", err)
			return
		}
		if chunk == nil {
			return
		}
		if _, err := w.Write(chunk); err != nil {
			slog.Debug("sensor data: client went away", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}

func (c *plantControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	plant := r.PathValue("plant_name")
	stats, err := c.service.Stats(r.Context(), plant)
	if err != nil {
		slog.Error("stats: query failed", "plant", plant, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	if stats == nil {
		stats = []types.PlantStatistic{}
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *plantControllerImpl) handleStatsTable(w http.ResponseWriter, r *http.Request) {
	plant := r.PathValue("plant_name")
	stats, err := c.service.Stats(r.Context(), plant)
	if err != nil {
		slog.Error("stats table: query failed", "plant", plant, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}

	data := views.StatsTableData{PlantName: types.TitleName(plant)}
	for _, stat := range stats {
		data.Rows = append(data.Rows, views.StatRow{
			Stat:        string(stat.Stat),
			SignalValue: stat.SignalValue,
			Temperature: stat.Temperature,
			Humidity:    stat.Humidity,
		})
	}

	var buf bytes.Buffer
	if err := views.RenderStatsTablePartial(&buf, &data); err != nil {
		slog.Error("stats table partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("stats table: write response failed", "error", err)
	}
}

func (c *plantControllerImpl) handlePlantInfo(w http.ResponseWriter, r *http.Request) {
	plant := r.PathValue("plant_name")
	stats, err := c.service.Stats(r.Context(), plant)
	if err != nil {
		slog.Error("plant info: query failed", "plant", plant, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}

	data := views.PlantInfoData{
		Key:  plant,
		Name: types.TitleName(plant),
	}
	for _, stat := range stats {
		switch stat.Stat {
		case types.StatMin:
			data.SignalMin = stat.SignalValue
			data.TempMin = stat.Temperature
			data.HumidityMin = stat.Humidity
		case types.StatMax:
			data.SignalMax = stat.SignalValue
			data.TempMax = stat.Temperature
			data.HumidityMax = stat.Humidity
		}
	}

	var buf bytes.Buffer
	if err := views.RenderPlantInfoPartial(&buf, &data); err != nil {
		slog.Error("plant info partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("plant info: write response failed", "error", err)
	}
}

// plantOptions derives the distinct plant list from stat rows, preserving
// their (plant-ordered) storage order.
func plantOptions(stats []types.PlantStatistic) []views.PlantOption {
	var opts []views.PlantOption
	seen := make(map[string]bool)
	for _, stat := range stats {
		if seen[stat.PlantName] {
			continue
		}
		seen[stat.PlantName] = true
		opts = append(opts, views.PlantOption{
			Key:  stat.PlantName,
			Name: stat.PlantName,
		})
	}
	return opts
}
