package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the friend and message endpoints on an already-authenticated router.
func RegisterRoutes(router *mux.Router, friends *FriendRelationHandler, messages *MessageHandler) {
	// 固定路径必须在 {relationID} 之前注册
	router.HandleFunc("/friends/requests", friends.SendRequest).Methods(http.MethodPost)
	router.HandleFunc("/friends/requests/received", friends.ListReceived).Methods(http.MethodGet)
	router.HandleFunc("/friends/requests/sent", friends.ListSent).Methods(http.MethodGet)
	router.HandleFunc("/friends/requests/{relationID:[0-9]+}/respond", friends.Respond).Methods(http.MethodPut)
	router.HandleFunc("/friends", friends.ListFriends).Methods(http.MethodGet)
	router.HandleFunc("/friends/{relationID:[0-9]+}", friends.GetFriend).Methods(http.MethodGet)
	router.HandleFunc("/friends/{relationID:[0-9]+}", friends.Unfriend).Methods(http.MethodDelete)

	router.HandleFunc("/messages", messages.Send).Methods(http.MethodPost)
	router.HandleFunc("/messages", messages.List).Methods(http.MethodGet)
	router.HandleFunc("/messages/bulk-delete", messages.BulkDelete).Methods(http.MethodPost)
	router.HandleFunc("/messages/{messageID:[0-9]+}", messages.Get).Methods(http.MethodGet)
	router.HandleFunc("/messages/{messageID:[0-9]+}/read", messages.MarkRead).Methods(http.MethodPut)
	router.HandleFunc("/messages/{messageID:[0-9]+}", messages.Delete).Methods(http.MethodDelete)
}
