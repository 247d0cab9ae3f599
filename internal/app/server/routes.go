package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"shrike/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func newRouter() *http.ServeMux {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", healthz)
	router.HandleFunc("GET /version", getVersion)
	router.HandleFunc("POST /login", login)

	router.HandleFunc("GET /filter/check", checkAddress)
	router.HandleFunc("GET /filter/status", getFilterStatus)
	router.Handle("POST /filter/reload", auth.RequireAuth(http.HandlerFunc(reloadFilter)))
	router.Handle("POST /filter/refresh", auth.RequireAuth(http.HandlerFunc(refreshSources)))

	router.Handle("GET /settings", auth.RequireAuth(http.HandlerFunc(getSettings)))
	router.Handle("POST /settings", auth.RequireAuth(http.HandlerFunc(saveSettings)))

	return router
}

func OpenRoutes(port int) error {
	server := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: enableCORS(newRouter()),
	}

	log.Infof("Starting shrike API on port :%d", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
