package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/starlight-qa/starlight/internal/utils"
	"github.com/starlight-qa/starlight/pkg/report"
	"github.com/starlight-qa/starlight/pkg/star"
	"github.com/starlight-qa/starlight/pkg/storage"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices(r)
	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	PageLayout(
		"STAR light - devices",
		Navbar("/"),
		IndexContent(devices, err, r.URL.Query().Get("page")),
		FooterEl(),
	).Render(w)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device := r.PathValue("device")

	prefs, fromQuery, err := s.pagePrefs(ctx, r)
	var res *report.Result
	if err != nil {
		prefs = defaultPrefs()
	} else {
		if fromQuery {
			setPrefsCookie(w, r.URL.Query())
		}
		res, err = s.buildReport(ctx, device, prefs.Filters)
	}

	categories, cerr := s.DB.ListCategories(ctx, true)
	teams, terr := s.DB.ListTeams(ctx)
	if err == nil {
		err = errors.Join(cerr, terr)
	}

	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	PageLayout(
		"STAR light - "+device,
		Navbar(""),
		ViewContent(device, prefs, categories, teams, res, err),
		FooterEl(),
	).Render(w)
}

func (s *Server) devices(r *http.Request) ([]star.Device, error) {
	devices, err := s.STAR.Devices(r.Context())
	status := "ok"
	if err != nil {
		status = "error"
		utils.Log.Warnf("listing devices: %v", err)
	}
	DeviceListFetches.WithLabelValues(status).Inc()
	return devices, err
}

func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if devices == nil {
		devices = []star.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleAPIView builds a report from query filters only. Unlike the page,
// it never falls back to saved preferences, so Priority is required.
func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefs, err := s.prefsFromValues(ctx, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.buildReport(ctx, r.PathValue("device"), prefs.Filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	cats, err := s.DB.ListCategories(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	if cats == nil {
		cats = []storage.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

type SetActiveRequest struct {
	ID     int64 `json:"id"`
	Active bool  `json:"active"`
}

func (s *Server) handleAPISetCategoryActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.DB.SetCategoryActive(r.Context(), req.ID, req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleAPITeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.DB.ListTeams(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if teams == nil {
		teams = []storage.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}
