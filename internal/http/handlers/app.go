package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/publish"
	"server/internal/storage"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Store       domain.JobStore
	Files       *storage.FileStore
	Coordinator *publish.Coordinator
	Logger      zerolog.Logger
}

// NewApp wires the handler container.
func NewApp(store domain.JobStore, files *storage.FileStore, coordinator *publish.Coordinator, logger zerolog.Logger) *App {
	return &App{Store: store, Files: files, Coordinator: coordinator, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
