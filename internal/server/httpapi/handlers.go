package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/dmitrijs2005/estately/internal/server/auth"
	"github.com/dmitrijs2005/estately/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// AuthService is what the handlers need from services.UserService.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	Logout(ctx context.Context, userID string) error
	ChangeRole(ctx context.Context, userID string, role auth.Role) (*services.AuthResult, error)
	LookupUser(ctx context.Context, id string) (*auth.Identity, error)
	Ping(ctx context.Context) error
}

const maxBodyBytes = 1 << 16

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Role      string `json:"role" validate:"omitempty,oneof=buyer seller"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=buyer seller"`
}

type sessionResponse struct {
	User        *auth.Identity `json:"user"`
	AccessToken string         `json:"accessToken"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type currentUserResponse struct {
	*auth.Identity
	// ActivePersona echoes the X-Active-Persona header. It is UI state only.
	ActivePersona auth.Role `json:"activePersona,omitempty"`
}

type statusResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *auth.Identity `json:"user,omitempty"`
}

type handler struct {
	svc           AuthService
	log           logging.Logger
	metrics       *Metrics
	validate      *validator.Validate
	secureCookies bool
	now           func() time.Time
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and returns false on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeMessage(w, http.StatusBadRequest, msgValidation)
			return false
		}
		out := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		writeJSON(w, http.StatusBadRequest, validationResponse{Message: msgValidation, Errors: out})
		return false
	}
	return true
}

func (h *handler) logger(r *http.Request) logging.Logger {
	return logging.FromContext(r.Context(), h.log)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req, false) {
		h.metrics.AuthEvent("register", "invalid_input")
		return
	}

	res, err := h.svc.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      auth.Role(req.Role),
	})
	h.metrics.AuthEvent("register", eventResult(err))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	setAuthCookies(w, res.Tokens, h.now(), h.secureCookies)
	writeJSON(w, http.StatusCreated, sessionResponse{User: res.User, AccessToken: res.Tokens.AccessToken})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req, false) {
		h.metrics.AuthEvent("login", "invalid_input")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	h.metrics.AuthEvent("login", eventResult(err))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	setAuthCookies(w, res.Tokens, h.now(), h.secureCookies)
	writeJSON(w, http.StatusOK, sessionResponse{User: res.User, AccessToken: res.Tokens.AccessToken})
}

// refresh takes the refresh token from its cookie, falling back to the
// JSON body for clients that cannot hold cookies.
func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		if !h.decode(w, r, &req, true) {
			return
		}
		token = req.RefreshToken
	}

	res, err := h.svc.Refresh(r.Context(), token)
	h.metrics.AuthEvent("refresh", eventResult(err))
	if err != nil {
		if common.IsRefreshFailure(err) {
			clearAuthCookies(w, h.secureCookies)
		}
		writeServiceError(w, r, h.log, err)
		return
	}

	setAuthCookies(w, res.Tokens, h.now(), h.secureCookies)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: res.Tokens.AccessToken})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	err := h.svc.Logout(r.Context(), ident.ID)
	h.metrics.AuthEvent("logout", eventResult(err))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	clearAuthCookies(w, h.secureCookies)
	writeMessage(w, http.StatusOK, msgLoggedOut)
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	resp := currentUserResponse{Identity: ident}
	if persona, ok := auth.ParseRole(r.Header.Get(common.ActivePersonaHeaderName)); ok {
		resp.ActivePersona = persona
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{Authenticated: ok, User: ident})
}

func (h *handler) changeRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req changeRoleRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	res, err := h.svc.ChangeRole(r.Context(), ident.ID, auth.Role(req.Role))
	h.metrics.AuthEvent("change_role", eventResult(err))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.logger(r).Info(r.Context(), "role changed via api", "user_id", ident.ID, "role", req.Role)
	setAuthCookies(w, res.Tokens, h.now(), h.secureCookies)
	writeJSON(w, http.StatusOK, sessionResponse{User: res.User, AccessToken: res.Tokens.AccessToken})
}

func (h *handler) lookupUser(w http.ResponseWriter, r *http.Request) {
	ident, err := h.svc.LookupUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeMessage(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		h.logger(r).Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
