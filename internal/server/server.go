package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gitaditya567/itskillhub/internal/app"
	"github.com/gitaditya567/itskillhub/internal/ratelimit"
	"github.com/gitaditya567/itskillhub/internal/util"
	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/store"
)

const defaultMaxUploadBytes = 50 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Limiters are optional; nil disables the limit.
	LoginLimiter       *ratelimit.FixedWindowLimiter
	RegisterLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies     *util.TrustedProxies
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

// Server exposes the storefront HTTP API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	validate        *validator.Validate
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
	trusted         *util.TrustedProxies
	allowedOrigins  []string
	maxUploadBytes  int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		validate:        newValidator(),
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		trusted:         cfg.TrustedProxies,
		allowedOrigins:  cfg.CORSAllowedOrigins,
		maxUploadBytes:  maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("storefront", util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	// users
	s.mux.Handle("/api/users", s.adminOnly(s.handleListUsers))
	s.mux.Handle("/api/users/profile", s.authenticated(s.handleMe))
	s.mux.HandleFunc("/api/users/download/", s.handleDownloadRoute("/api/users/download/"))

	// books
	s.mux.HandleFunc("/api/books", s.handleBooks)
	s.mux.HandleFunc("/api/books/", s.handleBookPath)
	s.mux.HandleFunc("/preview/", s.handlePreviewRoute("/preview/"))
	s.mux.HandleFunc("/download/", s.handleDownloadRoute("/download/"))

	// orders
	s.mux.Handle("/api/orders", s.authenticated(s.handleCreateOrder))
	s.mux.Handle("/api/orders/verify", s.authenticated(s.handleVerifyPayment))
	s.mux.Handle("/api/orders/myorders", s.authenticated(s.handleMyOrders))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	provider, ok := s.app.Sessions().(store.JWKSProvider)
	if !ok {
		writeError(w, http.StatusNotFound, "SYSTEM_NOT_FOUND", "not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, map[string]any{"keys": provider.JWKS()})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(w, r)
		if !ok {
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(w, r)
		if !ok {
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "storefront.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeAppError(w, r, app.ErrAdminRequired)
			return
		}
		s.audit(r, "storefront.admin.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}

// authorize resolves the bearer token to a freshly loaded user, writing a
// 401 when that fails.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "storefront.token.verify", "fail", "reason", "missing_token")
		writeAppError(w, r, app.ErrUnauthenticated)
		return domain.User{}, false
	}
	user, err := s.app.UserFromToken(token)
	if err != nil {
		s.audit(r, "storefront.token.verify", "fail", "reason", "invalid_token")
		writeAppError(w, r, err)
		return domain.User{}, false
	}
	return user, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// allowRate fails closed: a limiter error rejects the request.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	decision, err := limiter.Allow(r.Context(), key)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("rate limiter unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "SYSTEM_RATE_LIMIT_UNAVAILABLE", "service temporarily unavailable")
		return false
	}
	if decision.Allowed {
		return true
	}
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, "AUTH_RATE_LIMITED", msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "SYSTEM_METHOD_NOT_ALLOWED", "method not allowed")
}

// pathID returns the single path segment after prefix, or "" when the
// remainder is empty or nested.
func pathID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	if id == path || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
