package apiserver

import (
	"net/http"

	"petlink-go/internal/services"
)

// FriendRelationHandler 处理好友请求和好友列表相关的 HTTP 请求。
type FriendRelationHandler struct {
	friendService services.FriendRelationService
}

func NewFriendRelationHandler(fs services.FriendRelationService) *FriendRelationHandler {
	return &FriendRelationHandler{friendService: fs}
}

// SendRequest handles POST /api/v1/friends/requests
func (h *FriendRelationHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var payload SendFriendRequestPayload
	if !decodeJSONBody(w, r, &payload) {
		return
	}
	if payload.ToUserID == 0 {
		writeJSONError(w, "缺少被请求者ID (toUserId)", http.StatusBadRequest)
		return
	}

	relation, err := h.friendService.Request(r.Context(), userID, payload.ToUserID)
	if err != nil {
		writeServiceError(w, r, err, "发送好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, newFriendRelationResponse(relation))
}

// ListReceived handles GET /api/v1/friends/requests/received
func (h *FriendRelationHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	relations, err := h.friendService.ListPendingReceived(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "获取收到的好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newFriendRelationResponses(relations))
}

// ListSent handles GET /api/v1/friends/requests/sent
func (h *FriendRelationHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	relations, err := h.friendService.ListPendingSent(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "获取发出的好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newFriendRelationResponses(relations))
}

// Respond handles PUT /api/v1/friends/requests/{relationID}/respond
func (h *FriendRelationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	relationID, ok := pathID(w, r, "relationID")
	if !ok {
		return
	}
	var payload RespondFriendRequestPayload
	if !decodeJSONBody(w, r, &payload) {
		return
	}

	relation, err := h.friendService.Respond(r.Context(), relationID, userID, payload.Status)
	if err != nil {
		writeServiceError(w, r, err, "处理好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newFriendRelationResponse(relation))
}

// ListFriends handles GET /api/v1/friends
func (h *FriendRelationHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	friends, err := h.friendService.ListFriends(r.Context(), userID, opts)
	if err != nil {
		writeServiceError(w, r, err, "获取好友列表失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newFriendResponses(friends))
}

// GetFriend handles GET /api/v1/friends/{relationID}
func (h *FriendRelationHandler) GetFriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	relationID, ok := pathID(w, r, "relationID")
	if !ok {
		return
	}
	friend, err := h.friendService.GetFriend(r.Context(), relationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "获取好友信息失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newFriendResponse(friend))
}

// Unfriend handles DELETE /api/v1/friends/{relationID}
func (h *FriendRelationHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	relationID, ok := pathID(w, r, "relationID")
	if !ok {
		return
	}
	relation, err := h.friendService.Unfriend(r.Context(), relationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "解除好友关系失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, newFriendRelationResponse(relation))
}
