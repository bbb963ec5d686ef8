// Package web is the token-gated HTTP surface for host-side collaborators:
// plugins and tools that need binding state without speaking OneBot.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"authgate.gg/internal/auth"
	"authgate.gg/internal/config"
)

type Server struct {
	svc *auth.Service
	cfg config.Server
	log *log.Logger
}

func NewServer(svc *auth.Service, cfg config.Server, logger *log.Logger) *Server {
	return &Server{svc: svc, cfg: cfg, log: logger}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", s.withToken(s.handleStatus))
	mux.HandleFunc("POST /api/v1/bind", s.withToken(s.handleBind))
	mux.HandleFunc("POST /api/v1/unbind", s.withToken(s.handleUnbind))
}

func (s *Server) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		got = strings.TrimPrefix(got, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

type statusResponse struct {
	Name  string `json:"name"`
	UUID  string `json:"uuid"`
	QQ    int64  `json:"qq,omitempty"`
	Bound bool   `json:"bound"`
	Guest bool   `json:"guest"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}
	p, found, err := s.svc.Status(r.Context(), name)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown player")
		return
	}
	guest, err := s.svc.IsGuest(r.Context(), p.UUID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Name:  p.Name,
		UUID:  p.UUID.String(),
		QQ:    p.QQ,
		Bound: p.QQ != 0,
		Guest: guest,
	})
}

type bindRequest struct {
	Name string `json:"name"`
	QQ   int64  `json:"qq"`
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Name == "" || req.QQ <= 0 {
		writeError(w, http.StatusBadRequest, "name and qq required")
		return
	}
	res, err := s.svc.BindDirect(r.Context(), req.Name, req.QQ)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"player":        res.PlayerName,
		"qq":            req.QQ,
		"already_bound": res.AlreadyBound,
	})
}

type unbindRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	var req unbindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	if err := s.svc.UnbindDirect(r.Context(), req.Name); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player": req.Name, "unbound": true})
}

// fail maps validation rejections to 409 and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, err error) {
	if v, ok := auth.AsValidation(err); ok {
		writeError(w, http.StatusConflict, v.Key)
		return
	}
	s.log.Printf("[web] request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
