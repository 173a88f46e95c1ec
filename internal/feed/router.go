package feed

import (
	"encoding/json"
	"net/http"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/comprehend"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionView is the read-only surface the feed exposes. The session
// orchestrator implements it over snapshots; handlers never touch live
// pipeline state.
type SessionView interface {
	ID() string
	Display() []models.ReconciledSpan
	Entities() comprehend.EntitySnapshot
	Alerts() []models.SafetyAlert
	Quality() models.QualitySnapshot
}

// NewRouter constructs the HTTP surface: snapshot endpoints plus the
// websocket feed.
func NewRouter(view SessionView, hub *Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/transcript", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{
				"sessionId": view.ID(),
				"spans":     view.Display(),
			})
		})
		r.Get("/entities", func(w http.ResponseWriter, _ *http.Request) {
			snap := view.Entities()
			writeJSON(w, map[string]any{
				"sessionId": view.ID(),
				"version":   snap.Version,
				"entities":  snap.Entities,
			})
		})
		r.Get("/alerts", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{
				"sessionId": view.ID(),
				"alerts":    view.Alerts(),
			})
		})
		r.Get("/quality", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{
				"sessionId": view.ID(),
				"quality":   view.Quality(),
			})
		})
	})

	r.Get("/ws", hub.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
