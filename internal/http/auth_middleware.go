package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/splax/gigboard/internal/domain"
)

type authContextKey string

type authInfo struct {
	UserID string
	Role   string
	User   *domain.User
}

const contextKeyAuth authContextKey = "gigboard-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
// Browsers cannot set headers on EventSource or WebSocket handshakes, so the
// realtime endpoints also accept an access_token query parameter.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil && isRealtimePath(req.URL.Path) {
		if query := strings.TrimSpace(req.URL.Query().Get("access_token")); query != "" {
			token, err = query, nil
		}
	}
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return req.Context(), authInfo{}, false
	}
	user, claims, err := r.svc.Auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return req.Context(), authInfo{}, false
	}
	info := authInfo{UserID: user.ID, Role: claims.Role, User: user}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

// currentUser returns the authenticated user. Handlers behind requireAuth always have one.
func currentUser(req *http.Request) *domain.User {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		return nil
	}
	return info.User
}

// requireRole rejects the request with 403 unless the caller has the given role.
func requireRole(w http.ResponseWriter, req *http.Request, role string) (*domain.User, bool) {
	user := currentUser(req)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if user.Role != role {
		writeError(w, http.StatusForbidden, "only "+role+"s can perform this action")
		return nil, false
	}
	return user, true
}

func isRealtimePath(path string) bool {
	return path == "/ws" || path == "/events"
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
