package server

import (
	"context"
	"encoding/json"
	"net/http"

	"shrike/internal/blocklist"
	"shrike/internal/config"
	"shrike/internal/geo"
	"shrike/internal/ipaddr"
	"shrike/internal/sources"
)

type checkResponse struct {
	IP      string `json:"ip"`
	Blocked bool   `json:"blocked"`
	Country string `json:"country,omitempty"`
}

func checkAddress(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ip")
	if raw == "" {
		writeError(w, "missing ip parameter", http.StatusBadRequest)
		return
	}

	addr, ok := ipaddr.Parse(raw)
	if !ok {
		writeError(w, "invalid ip address", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		IP:      addr.String(),
		Blocked: blocklist.ActiveFilter().Contains(addr),
		Country: geo.CountryCode(addr),
	})
}

func getFilterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, blocklist.GetStatus())
}

type reloadRequest struct {
	Path string `json:"path"`
}

func reloadFilter(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if r.Body != nil {
		// An empty or absent body means the configured path.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	path := req.Path
	if path == "" {
		path = config.GetConfig().Filter.Path
	}
	if path == "" {
		writeError(w, "no filter path configured", http.StatusBadRequest)
		return
	}

	blocklist.Reload(path)
	writeJSON(w, http.StatusAccepted, map[string]string{"path": path})
}

func refreshSources(w http.ResponseWriter, r *http.Request) {
	// The round must outlive the request.
	go sources.RunRefresh(context.Background(), "api")
	w.WriteHeader(http.StatusAccepted)
}
