package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/toolgate/toolgate/internal/service"
)

func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
}

type callRequest struct {
	ServerID  string `json:"server_id"`
	ToolName  string `json:"tool_name"`
	Arguments any    `json:"arguments"`
}

type callResponse struct {
	Result string `json:"result"`
}

func callHandler(gw *service.Gateway) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req callRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, loggerFromContext(r.Context()), http.StatusBadRequest, err)
			return
		}

		result, err := gw.Call(r.Context(), req.ServerID, req.ToolName, req.Arguments)
		if err != nil {
			writeError(w, loggerFromContext(r.Context()), http.StatusUnprocessableEntity, err)
			return
		}

		writeJSON(w, http.StatusOK, callResponse{Result: result})
	})
}

type searchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

func searchHandler(gw *service.Gateway) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, loggerFromContext(r.Context()), http.StatusBadRequest, err)
			return
		}

		hits, err := gw.Search(r.Context(), req.Query, req.TopK, req.MinScore)
		if err != nil {
			writeError(w, loggerFromContext(r.Context()), http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"tools": hits})
	})
}

type discoverRequest struct {
	ServerID     string `json:"server_id"`
	ForceRefresh bool   `json:"force_refresh"`
}

func discoverHandler(gw *service.Gateway) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req discoverRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, loggerFromContext(r.Context()), http.StatusBadRequest, err)
				return
			}
		}

		tools, err := gw.Discover(r.Context(), req.ServerID, req.ForceRefresh)
		if err != nil {
			writeError(w, loggerFromContext(r.Context()), http.StatusUnprocessableEntity, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
	})
}

func serverToolsHandler(gw *service.Gateway) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverID := r.URL.Query().Get("server_id")
		if serverID == "" {
			writeError(w, loggerFromContext(r.Context()), http.StatusBadRequest, errMissingServerID)
			return
		}

		result, err := gw.GetServerTools(r.Context(), serverID)
		if err != nil {
			writeError(w, loggerFromContext(r.Context()), http.StatusInternalServerError, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result))
	})
}

var errMissingServerID = errors.New("server_id query parameter is required")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	logger.Error("http: request failed", "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
