package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/api"
	"github.com/MrMohammed1/miran-search/app/logging"
)

type TokenIssuer interface {
	Obtain(ctx context.Context, username, password string) (TokenPair, error)
	Refresh(refreshToken string) (string, error)
	Verify(token, tokenType string) (*Claims, error)
}

type Handler struct {
	tokens    TokenIssuer
	validator *api.Validator
	logger    *zap.Logger
}

func NewHandler(tokens TokenIssuer, v *api.Validator, logger *zap.Logger) *Handler {
	return &Handler{tokens: tokens, validator: v, logger: logging.OrNop(logger)}
}

// HandleObtain serves POST /api/token/.
func (h *Handler) HandleObtain(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.validator.Bind(w, r, &input) {
		return
	}

	pair, err := h.tokens.Obtain(r.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			api.Error(w, http.StatusUnauthorized, "No active account found with the given credentials")
			return
		}
		h.logger.Error("obtain token", zap.Error(err))
		api.InternalError(w)
		return
	}
	api.JSON(w, http.StatusOK, pair)
}

// HandleRefresh serves POST /api/token/refresh/.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Refresh string `json:"refresh" validate:"required"`
	}
	if !h.validator.Bind(w, r, &input) {
		return
	}

	access, err := h.tokens.Refresh(input.Refresh)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			api.Error(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		h.logger.Error("refresh token", zap.Error(err))
		api.InternalError(w)
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"access": access})
}

type claimsKey struct{}

// Authenticate requires a valid bearer access token.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			api.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		claims, err := h.tokens.Verify(token, TokenAccess)
		if err != nil {
			h.logger.Debug("rejected bearer token", zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			api.Error(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
