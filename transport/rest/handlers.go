package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vasablaha/gomoku-tel/internal/apperror"
)

func (that *Server) handleCreateGame(w http.ResponseWriter, _ *http.Request) {
	session := that.registry.Create()

	that.writeJSON(w, http.StatusOK, map[string]string{"gameId": session.ID})
}

// handleGetGame serves the read-only snapshot for status polling; no
// session membership is required.
func (that *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	session, err := that.registry.Get(r.PathValue("id"))
	if errors.Is(err, apperror.ErrGameNotFound) {
		that.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Game not found"})
		return
	}

	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusOK, session.Snapshot())
}

func (that *Server) handleListLobbies(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, that.registry.ListOpenLobbies())
}

func (that *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"games":  that.registry.Count(),
	})
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
