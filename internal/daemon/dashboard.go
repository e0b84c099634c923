package daemon

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"onthefly/internal/config"
	"onthefly/internal/logging"
)

//go:embed dashboard/index.html.tmpl dashboard/dashboard.js
var dashboardFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(dashboardFS, "dashboard/index.html.tmpl"))

// dashboardSettings is the slice of configuration rendered into the page.
type dashboardSettings struct {
	Title                  string
	VideoURL               string
	VideoPath              string
	CaptureIntervalSeconds int
	AnalyticsPollSeconds   int
	HomeName               string
	HomeAbbreviation       string
	AwayName               string
	AwayAbbreviation       string
}

// clientConfig is handed to dashboard.js as JSON.
type clientConfig struct {
	CaptureIntervalMs int               `json:"captureIntervalMs"`
	AnalyticsPollMs   int               `json:"analyticsPollMs"`
	Home              map[string]string `json:"home"`
	Away              map[string]string `json:"away"`
	Welcome           []welcomeMessage  `json:"welcome"`
}

type welcomeMessage struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type dashboardPage struct {
	Title    string
	VideoURL string
	HomeName string
	AwayName string
	Config   template.JS
}

func dashboardFromConfig(cfg *config.Config) dashboardSettings {
	settings := dashboardSettings{
		Title:                  cfg.Dashboard.Title,
		VideoURL:               strings.TrimSpace(cfg.Dashboard.VideoURL),
		VideoPath:              strings.TrimSpace(cfg.Dashboard.VideoPath),
		CaptureIntervalSeconds: cfg.Dashboard.CaptureIntervalSeconds,
		AnalyticsPollSeconds:   cfg.Dashboard.AnalyticsPollSeconds,
		HomeName:               cfg.Game.HomeName,
		HomeAbbreviation:       cfg.Game.HomeAbbreviation,
		AwayName:               cfg.Game.AwayName,
		AwayAbbreviation:       cfg.Game.AwayAbbreviation,
	}
	if settings.VideoURL == "" && settings.VideoPath != "" {
		settings.VideoURL = "/video"
	}
	return settings
}

func (d dashboardSettings) clientConfig() clientConfig {
	title := d.Title
	if title == "" {
		title = "OnTheFly"
	}
	return clientConfig{
		CaptureIntervalMs: max(d.CaptureIntervalSeconds, 1) * 1000,
		AnalyticsPollMs:   max(d.AnalyticsPollSeconds, 1) * 1000,
		Home:              map[string]string{"name": d.HomeName, "abbreviation": d.HomeAbbreviation},
		Away:              map[string]string{"name": d.AwayName, "abbreviation": d.AwayAbbreviation},
		Welcome: []welcomeMessage{
			{Text: "Welcome to the " + title + " commentaries!", Type: "ai"},
			{Text: "The AI is now watching the game and generating commentaries.", Type: "ai"},
			{Text: "Feel free to join the conversation!", Type: "user"},
		},
	}
}

func (s *apiServer) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	encoded, err := json.Marshal(s.dashboard.clientConfig())
	if err != nil {
		s.log().Error("encode dashboard config", logging.Error(err))
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	err = dashboardTemplate.Execute(&buf, dashboardPage{
		Title:    s.dashboard.Title,
		VideoURL: s.dashboard.VideoURL,
		HomeName: s.dashboard.HomeName,
		AwayName: s.dashboard.AwayName,
		Config:   template.JS(encoded),
	})
	if err != nil {
		s.log().Error("render dashboard", logging.Error(err))
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *apiServer) handleDashboardScript(w http.ResponseWriter, _ *http.Request) {
	script, err := dashboardFS.ReadFile("dashboard/dashboard.js")
	if err != nil {
		http.Error(w, "script unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(script)
}
