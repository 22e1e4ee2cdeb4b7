package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"petlink-go/internal/auth"
	"petlink-go/internal/logging"
)

// contextKey 避免与其它包的 context 键冲突。
type contextKey string

// UserIDKey 上下文中的当前用户 ID。
const UserIDKey contextKey = "userID"

// AuthMiddleware validates the bearer token and stores the caller on the request context.
func AuthMiddleware(jwtSecret string, blacklist auth.TokenBlacklist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, "请求未包含有效的授权令牌")
				return
			}

			claims, err := auth.ValidateToken(r.Context(), tokenString, jwtSecret, blacklist)
			if err != nil {
				logging.FromContext(r.Context()).Info("token rejected", "error", err)
				writeUnauthorized(w, "令牌无效或已过期")
				return
			}

			ctx := WithUser(r.Context(), claims.UserID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser stores the authenticated user id on ctx and tags the request logger with the caller.
func WithUser(ctx context.Context, userID uint, username string) context.Context {
	logger := logging.FromContext(ctx).With("user_id", userID)
	if username != "" {
		logger = logger.With("username", username)
	}
	ctx = logging.WithLogger(ctx, logger)
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext 返回当前用户 ID，不存在时返回 0, false。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok && userID != 0
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": "unauthorized"})
}
