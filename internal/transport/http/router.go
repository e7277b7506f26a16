package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/maluki2001/LearnKick2-sub002/internal/app"
	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// NewRouter assembles the HTTP surface: the WebSocket endpoint plus a small
// read-only ops API for queue and session inspection.
func NewRouter(service *app.Service, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/queue", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, service.QueueState())
		})
		r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, service.Sessions())
		})
		r.Get("/sessions/{matchID}", func(w http.ResponseWriter, req *http.Request) {
			sess, err := service.Session(chi.URLParam(req, "matchID"))
			if err == domain.ErrUnknownMatch {
				writeJSON(w, http.StatusNotFound, errorPayload{Message: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, sess.Snapshot(req.URL.Query().Get("playerId")))
		})
		r.Get("/ratings/{playerID}", func(w http.ResponseWriter, req *http.Request) {
			rating, err := service.Rating(req.Context(), chi.URLParam(req, "playerID"))
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorPayload{Message: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, rating)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
