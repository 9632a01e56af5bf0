// Package httpapi serves the goCred REST surface under /api/v1/auth using
// net/http routing. Handlers decode and validate requests, call the Engine
// and translate its error kinds into status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/middleware"
)

// Prefix is the mount point of every route.
const Prefix = "/api/v1/auth"

const maxBodyBytes = 1 << 20

// Service is the Engine surface the handlers use.
type Service interface {
	Register(ctx context.Context, req goCred.RegisterRequest) (goCred.TokenPair, error)
	Authenticate(ctx context.Context, username, password string) (goCred.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (goCred.TokenPair, error)
	ValidateToken(token string) bool
	Claims(token string) (*jwt.Claims, error)
	ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) (goCred.PasswordChangeResult, error)
	InitiateRecovery(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Server holds the handlers. Use Handler to obtain the routed http.Handler.
type Server struct {
	svc    Service
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API. extra is mounted alongside the auth routes
// (for example a metrics endpoint) and may be nil.
func (s *Server) Handler(extra map[string]http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+Prefix+"/register", s.register)
	mux.HandleFunc("POST "+Prefix+"/authenticate", s.authenticate)
	mux.HandleFunc("POST "+Prefix+"/refresh", s.refresh)
	mux.HandleFunc("GET "+Prefix+"/validateToken", s.validateToken)
	mux.Handle("POST "+Prefix+"/change-password", middleware.Guard(s.svc, middleware.WithErrorHandler(s.writeError))(http.HandlerFunc(s.changePassword)))
	mux.HandleFunc("POST "+Prefix+"/forgot-password", s.forgotPassword)
	mux.HandleFunc("POST "+Prefix+"/reset-password", s.resetPassword)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}

	return mux
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !s.decode(w, r, &body) {
		return
	}
	req := body.toEngine()
	if err := req.Validate(); err != nil {
		s.writeValidation(w, r, err)
		return
	}

	pair, err := s.svc.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var body authenticateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		s.writeValidation(w, r, err)
		return
	}

	pair, err := s.svc.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeAPIError(w, r, http.StatusBadRequest, "ValidationError", "token query parameter is required", nil)
		return
	}

	pair, err := s.svc.Refresh(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// validateToken always answers 200 with a JSON boolean; failures are false.
func (s *Server) validateToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ValidateToken(r.URL.Query().Get("token")))
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())

	var body changePasswordRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		s.writeValidation(w, r, err)
		return
	}

	res, err := s.svc.ChangePassword(r.Context(), token, body.CurrentPassword, body.NewPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changePasswordResponse{
		Success:   res.Success,
		Message:   res.Message,
		Timestamp: res.LastChange.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		s.writeValidation(w, r, err)
		return
	}

	if err := s.svc.InitiateRecovery(r.Context(), body.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: goCred.RecoveryAcknowledgement})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeAPIError(w, r, http.StatusBadRequest, "ValidationError", "token query parameter is required", nil)
		return
	}

	var body resetPasswordRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		s.writeValidation(w, r, err)
		return
	}

	if err := s.svc.ResetPassword(r.Context(), token, body.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: goCred.PasswordResetMessage})
}

// decode reads a JSON body into dst. It writes a 400 and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		s.writeAPIError(w, r, http.StatusBadRequest, "MalformedRequest", msg, nil)
		return false
	}
	return true
}
