package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/observability"
	"github.com/razezix/authgate/internal/platform/httpx"
	"github.com/razezix/authgate/internal/shared"
)

// CookieConfig carries the session cookie settings.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler wires HTTP endpoints for registration and session flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *authn.TokenIssuer
	throttle  *shared.LoginThrottle
	metrics   *observability.Metrics
	cookie    CookieConfig
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *authn.TokenIssuer, throttle *shared.LoginThrottle, metrics *observability.Metrics, cookie CookieConfig) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		throttle:  throttle,
		metrics:   metrics,
		cookie:    cookie,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Patch("/me", h.handleUpdateMe)
	r.Delete("/me", h.handleDeleteMe)
}

type registerRequest struct {
	FullName  string `json:"full_name" validate:"required,max=255"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type updateMeRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	user, err := h.service.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		h.respondErr(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	throttleKey := normalizeEmail(req.Email)
	allowed, err := h.throttle.Allow(r.Context(), throttleKey)
	if err != nil {
		h.logger.Warn("login throttle check", slog.Any("error", err))
	}
	if !allowed {
		h.metrics.RecordLogin("throttled")
		httpx.RespondError(w, shared.ErrTooManyAttempts)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordLogin("failure")
		if recordErr := h.throttle.RecordFailure(r.Context(), throttleKey); recordErr != nil {
			h.logger.Warn("login throttle record", slog.Any("error", recordErr))
		}
		h.respondErr(w, "authenticate", err)
		return
	}
	h.metrics.RecordLogin("success")
	if err := h.throttle.Reset(r.Context(), throttleKey); err != nil {
		h.logger.Warn("login throttle reset", slog.Any("error", err))
	}

	sess, err := h.service.StartSession(r.Context(), user.ID, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.respondErr(w, "start session", err)
		return
	}

	token, err := h.tokens.Issue(user.ID, sess.ID)
	if err != nil {
		h.respondErr(w, "issue token", err)
		return
	}

	h.setSessionCookie(w, sess.ID, int(h.service.SessionTTL().Seconds()))
	httpx.JSON(w, http.StatusOK, loginResponse{User: user, Token: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal := authn.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	if err := h.service.RevokeSession(r.Context(), principal.Session.ID); err != nil {
		h.logger.Warn("revoke session", slog.Any("error", err))
	}
	h.setSessionCookie(w, "", -1)
	httpx.NoContent(w)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := authn.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	user, err := h.service.GetUser(r.Context(), principal.User.ID)
	if err != nil {
		h.respondErr(w, "get profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	principal := authn.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req updateMeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), principal.User.ID, req.FullName, req.Email)
	if err != nil {
		h.respondErr(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	principal := authn.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	if err := h.service.Deactivate(r.Context(), principal.User.ID); err != nil {
		h.respondErr(w, "deactivate", err)
		return
	}
	h.setSessionCookie(w, "", -1)
	httpx.NoContent(w)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
