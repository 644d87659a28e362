package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/listing"
	"server/internal/middleware"
	"server/internal/storage"
)

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	Logger    zerolog.Logger
	Users     domain.UserRepository
	History   domain.HistoryRepository
	Pipeline  *listing.Pipeline
	Store     *storage.FileStore
	JWTSecret string
}

// NewApp constructs the handler container.
func NewApp(logger zerolog.Logger, users domain.UserRepository, history domain.HistoryRepository, pipeline *listing.Pipeline, store *storage.FileStore, jwtSecret string) *App {
	return &App{
		Logger:    logger,
		Users:     users,
		History:   history,
		Pipeline:  pipeline,
		Store:     store,
		JWTSecret: jwtSecret,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorEnvelope{OK: false, Error: errorBody{Code: code, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
