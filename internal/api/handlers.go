// Package api provides HTTP handlers for Barbara endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/autofondo/barbara/internal/models"
)

// chatHandler runs one conversational turn for a web client.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}

	reply := s.bot.Process(r.Context(), req.UserID, req.Message)
	writeJSONResponse(w, http.StatusOK, models.Success(models.ChatResponse{Reply: reply}))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Barbara is up", nil))
}

// quotesHandler lists the archived quotations.
func (s *Server) quotesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Quote archive not configured"))
		return
	}

	quotes, err := s.archive.GetQuotes()
	if err != nil {
		slog.Error("Server.quotesHandler: failed to read archive", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read quote archive"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(quotes))
}
