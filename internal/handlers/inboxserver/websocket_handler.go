package inboxserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"petlink-go/internal/auth"
	"petlink-go/internal/config"
	ws "petlink-go/internal/websocket"
)

// WebSocketHandler 负责收件箱推送连接的认证和升级。
type WebSocketHandler struct {
	hub       *ws.Hub
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

func NewWebSocketHandler(hub *ws.Hub, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, blacklist: blacklist, cfg: cfg}
}

// ServeWS authenticates with ?token= (browsers cannot set headers on a websocket
// handshake) or a bearer header, then upgrades the connection.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if scheme, rest, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
			token = strings.TrimSpace(rest)
		}
	}
	if token == "" {
		writeError(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("WebSocket 连接被拒绝: %v", err)
		writeError(w, "令牌无效或已过期", http.StatusUnauthorized)
		return
	}

	ws.ServeWsPerConnection(h.hub, claims.UserID, w, r, h.cfg.WebSocket, h.checkOrigin)
}

// HealthResponse reports the hub's live connection counts.
type HealthResponse struct {
	Status      string `json:"status"`
	OnlineUsers int    `json:"onlineUsers"`
	Connections int    `json:"connections"`
}

// Health 返回在线用户数和连接数；hub 停止后返回 503。
func (h *WebSocketHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	counts, err := h.hub.OnlineCounts(ctx)
	if err != nil {
		log.Printf("健康检查失败: %v", err)
		writeError(w, "inbox hub 不可用", http.StatusServiceUnavailable)
		return
	}
	resp := HealthResponse{Status: "ok", OnlineUsers: len(counts)}
	for _, n := range counts {
		resp.Connections += n
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// checkOrigin allows same-origin and configured CORS origins.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.APIServer.CORS.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
