package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"juju/internal/services"
)

type HealthController struct {
	service   services.SessionServiceInterface
	startTime time.Time
	now       func() time.Time
}

type activeSessionStatus struct {
	ID             string `json:"id"`
	Project        string `json:"project"`
	RunningMinutes int    `json:"running_minutes"`
}

type healthResponse struct {
	Status        string               `json:"status"`
	Uptime        string               `json:"uptime"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	ActiveSession *activeSessionStatus `json:"active_session,omitempty"`
	Subscribers   int                  `json:"subscribers"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	now := hc.now()
	uptime := now.Sub(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Subscribers:   hc.service.Subscribers(),
	}
	if handle, ok := hc.service.ActiveSession(); ok {
		resp.ActiveSession = &activeSessionStatus{
			ID:             handle.ID,
			Project:        handle.ProjectName,
			RunningMinutes: max(int(now.Sub(handle.Start)/time.Minute), 0),
		}
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%dh%02dm%02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func NewHealthController(service services.SessionServiceInterface) *HealthController {
	return &HealthController{
		service:   service,
		startTime: time.Now(),
		now:       time.Now,
	}
}
