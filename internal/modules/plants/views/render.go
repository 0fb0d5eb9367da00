package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
)

var dashboardTmpl *template.Template

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// PlantOption is the view model for a plant in the dashboard selector.
type PlantOption struct {
	Key  string // lookup key used in hx-get URLs
	Name string // stored (title-cased) display name
}

// DashboardData is the view model for the full dashboard page.
type DashboardData struct {
	Plants []PlantOption
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// StatRow is one row of the statistics table partial, values already
// rounded by the statistics engine.
type StatRow struct {
	Stat        string
	SignalValue float64
	Temperature float64
	Humidity    float64
}

// StatsTableData is the view model for the stats table partial.
type StatsTableData struct {
	PlantName string
	Rows      []StatRow
}

// RenderStatsTablePartial executes only the stats table partial into w.
// Use for HTMX fragment refresh.
func RenderStatsTablePartial(w io.Writer, data *StatsTableData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/stats_table.html", data)
}

// PlantInfoData is the view model for the plant info partial. The recorded
// ranges come from the persisted min/max stat rows.
type PlantInfoData struct {
	Key         string
	Name        string
	TempMin     float64
	TempMax     float64
	HumidityMin float64
	HumidityMax float64
	SignalMin   float64
	SignalMax   float64
}

// RenderPlantInfoPartial executes only the plant info partial into w.
func RenderPlantInfoPartial(w io.Writer, data *PlantInfoData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/plant_info.html", data)
}
