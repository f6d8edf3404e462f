package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type server struct {
	engine      *authcore.Engine
	logger      *zap.Logger
	trustProxy  bool
	development bool
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Email string `json:"email"`
	Mode  string `json:"mode"`
}

type redeemRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type registerResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// routes mounts the auth API. metricsPath is skipped when empty.
func (s *server) routes(metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/request-password-reset", s.handleRequestReset)
	mux.HandleFunc("POST /api/auth/reset-password", s.handleRedeemReset)
	mux.Handle("GET /api/me", middleware.Guard(s.engine)(http.HandlerFunc(s.handleMe)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
	})
	if metricsPath != "" {
		mux.Handle("GET "+metricsPath, promexport.Handler(s.engine))
	}
	return mux
}

func (s *server) meta(r *http.Request) authcore.RequestMeta {
	return authcore.RequestMeta{
		SourceAddress: middleware.ClientAddress(r, s.trustProxy),
		Resource:      r.URL.Path,
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := authcore.KindOf(err)
	if kind == authcore.KindUnknown || kind == authcore.KindUnavailable {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	middleware.WriteError(w, err, s.development)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return authcore.ErrInvalidInput
		}
		return errors.Join(authcore.ErrInvalidInput, err)
	}
	return nil
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	pair, err := s.engine.Login(r.Context(), s.meta(r), identifier, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authcore.RegisterInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	acc, err := s.engine.Register(r.Context(), s.meta(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		ID:       acc.ID,
		Username: acc.Username,
		Email:    acc.Email,
		Roles:    acc.Roles,
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	pair, err := s.engine.Refresh(r.Context(), s.meta(r), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), s.meta(r), r.Header.Get("Authorization")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	asCode := strings.EqualFold(req.Mode, "code")
	if err := s.engine.RequestPasswordReset(r.Context(), s.meta(r), req.Email, asCode); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "If the address is registered, reset instructions have been sent.",
	})
}

func (s *server) handleRedeemReset(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engine.RedeemPasswordReset(r.Context(), s.meta(r), req.Token, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated."})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
