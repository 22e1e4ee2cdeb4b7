package apiserver

import (
	"net/http"
	"strconv"

	"petlink-go/internal/middleware"
	"petlink-go/internal/services"
	"petlink-go/internal/storage"
)

// MessageHandler 处理私信相关的 HTTP 请求。
type MessageHandler struct {
	messageService services.MessageService
	sendLimiter    middleware.RateLimiter
}

// NewMessageHandler creates a MessageHandler. sendLimiter may be nil to disable limiting.
func NewMessageHandler(ms services.MessageService, sendLimiter middleware.RateLimiter) *MessageHandler {
	return &MessageHandler{messageService: ms, sendLimiter: sendLimiter}
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if h.sendLimiter != nil && !h.sendLimiter.Allow("message:"+strconv.FormatUint(uint64(userID), 10)) {
		writeJSONError(w, "发送过于频繁，请稍后再试", http.StatusTooManyRequests)
		return
	}
	var payload SendMessagePayload
	if !decodeJSONBody(w, r, &payload) {
		return
	}
	if payload.ReceiverID == 0 {
		writeJSONError(w, "缺少接收者ID (receiverId)", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, payload.ReceiverID, payload.Content)
	if err != nil {
		writeServiceError(w, r, err, "发送私信失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, newMessageResponse(msg))
}

// List handles GET /api/v1/messages?box=all|received|sent
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	box, ok := storage.ParseMailbox(r.URL.Query().Get("box"))
	if !ok {
		writeJSONError(w, "box 只能是 all、received 或 sent", http.StatusBadRequest)
		return
	}
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.List(r.Context(), userID, box, opts)
	if err != nil {
		writeServiceError(w, r, err, "获取私信列表失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newMessageListItems(messages))
}

// Get handles GET /api/v1/messages/{messageID}
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}
	msg, err := h.messageService.Get(r.Context(), messageID, userID)
	if err != nil {
		writeServiceError(w, r, err, "获取私信失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newMessageResponse(msg))
}

// MarkRead handles PUT /api/v1/messages/{messageID}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}
	msg, err := h.messageService.MarkRead(r.Context(), messageID, userID)
	if err != nil {
		writeServiceError(w, r, err, "标记已读失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newMessageResponse(msg))
}

// Delete handles DELETE /api/v1/messages/{messageID}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}
	if _, err := h.messageService.SoftDelete(r.Context(), messageID, userID); err != nil {
		writeServiceError(w, r, err, "删除私信失败")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete handles POST /api/v1/messages/bulk-delete
func (h *MessageHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var payload BulkDeletePayload
	if !decodeJSONBody(w, r, &payload) {
		return
	}
	if err := h.messageService.BulkSoftDelete(r.Context(), userID, payload.MessageIDs); err != nil {
		writeServiceError(w, r, err, "批量删除私信失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"deleted": len(payload.MessageIDs)})
}
