package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"

	"petlink-go/internal/config"
	"petlink-go/internal/events"
	"petlink-go/internal/logging"
	"petlink-go/internal/middleware"
	"petlink-go/internal/models"
	"petlink-go/internal/services"
	"petlink-go/internal/storage"
)

const testUserHeader = "X-Test-User"

type testServer struct {
	router *mux.Router
	users  []*models.User
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func newTestServer(t *testing.T, limiter middleware.RateLimiter) *testServer {
	t.Helper()
	db, err := storage.InitDB(config.DatabaseConfig{Type: "sqlite", Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		t.Fatalf("AutoMigrateTables() error = %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	userRepo := storage.NewGormUserRepository(db)
	users := make([]*models.User, 0, 3)
	for i, nickname := range []string{"coco", "dubu", "gaeul"} {
		u := &models.User{Username: fmt.Sprintf("user%d", i+1), Nickname: nickname}
		if err := userRepo.Create(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		users = append(users, u)
	}

	publisher := events.NopPublisher{}
	friendSvc := services.NewFriendRelationService(userRepo, storage.NewGormFriendRelationRepository(db), publisher)
	messageSvc := services.NewMessageService(db, userRepo, storage.NewGormMessageRepository(db), publisher)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseUint(r.Header.Get(testUserHeader), 10, 32)
			if err == nil {
				r = r.WithContext(middleware.WithUser(r.Context(), uint(id), ""))
			}
			next.ServeHTTP(w, r)
		})
	})
	RegisterRoutes(api, NewFriendRelationHandler(friendSvc), NewMessageHandler(messageSvc, limiter))

	return &testServer{router: router, users: users}
}

func (s *testServer) do(t *testing.T, userID uint, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	if userID != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(userID), 10))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, want, rec.Body.String())
	}
}

func TestFriendRequestFlow(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := s.users[0].ID, s.users[1].ID

	rec := s.do(t, a, http.MethodPost, "/friends/requests", SendFriendRequestPayload{ToUserID: b})
	expectStatus(t, rec, http.StatusCreated)
	relation := decode[FriendRelationResponse](t, rec)
	if relation.Status != models.FriendRelationPending || relation.ToUser.Nickname != "dubu" {
		t.Fatalf("unexpected relation: %+v", relation)
	}

	// 反向重复请求
	rec = s.do(t, b, http.MethodPost, "/friends/requests", SendFriendRequestPayload{ToUserID: a})
	expectStatus(t, rec, http.StatusConflict)
	if got := decode[ErrorResponse](t, rec); got.Kind != string(services.KindDuplicate) {
		t.Fatalf("kind = %q", got.Kind)
	}

	rec = s.do(t, b, http.MethodGet, "/friends/requests/received", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]FriendRelationResponse](t, rec); len(got) != 1 || got[0].ID != relation.ID {
		t.Fatalf("received = %+v", got)
	}

	respondPath := fmt.Sprintf("/friends/requests/%d/respond", relation.ID)
	rec = s.do(t, a, http.MethodPut, respondPath, RespondFriendRequestPayload{Status: models.FriendRelationAccepted})
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(t, b, http.MethodPut, respondPath, RespondFriendRequestPayload{Status: "maybe"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, b, http.MethodPut, respondPath, RespondFriendRequestPayload{Status: models.FriendRelationAccepted})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, b, http.MethodPut, respondPath, RespondFriendRequestPayload{Status: models.FriendRelationRejected})
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(t, a, http.MethodGet, "/friends?search=DU", nil)
	expectStatus(t, rec, http.StatusOK)
	friends := decode[[]FriendResponse](t, rec)
	if len(friends) != 1 || friends[0].Friend.ID != b {
		t.Fatalf("friends = %+v", friends)
	}

	rec = s.do(t, s.users[2].ID, http.MethodGet, fmt.Sprintf("/friends/%d", relation.ID), nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, a, http.MethodDelete, fmt.Sprintf("/friends/%d", relation.ID), nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[FriendRelationResponse](t, rec); got.Status != models.FriendRelationRejected {
		t.Fatalf("status after unfriend = %q", got.Status)
	}

	rec = s.do(t, a, http.MethodGet, "/friends", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]FriendResponse](t, rec); len(got) != 0 {
		t.Fatalf("expected empty friend list, got %+v", got)
	}
}

func TestFriendRequestValidation(t *testing.T) {
	s := newTestServer(t, nil)
	a := s.users[0].ID

	expectStatus(t, s.do(t, 0, http.MethodGet, "/friends", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, a, http.MethodPost, "/friends/requests", map[string]int{"bogus": 1}), http.StatusBadRequest)
	expectStatus(t, s.do(t, a, http.MethodPost, "/friends/requests", SendFriendRequestPayload{}), http.StatusBadRequest)
	expectStatus(t, s.do(t, a, http.MethodPost, "/friends/requests", SendFriendRequestPayload{ToUserID: 999}), http.StatusNotFound)
	expectStatus(t, s.do(t, a, http.MethodGet, "/friends/424242", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, a, http.MethodGet, "/friends?limit=-1", nil), http.StatusBadRequest)
}

func TestMessageFlow(t *testing.T) {
	s := newTestServer(t, nil)
	a, b, c := s.users[0].ID, s.users[1].ID, s.users[2].ID

	long := "가나다라마바사아자차카타파하가나다라마바사아자차카타파하가나다라마바사"
	rec := s.do(t, a, http.MethodPost, "/messages", SendMessagePayload{ReceiverID: b, Content: long})
	expectStatus(t, rec, http.StatusCreated)
	sent := decode[MessageResponse](t, rec)
	if sent.IsRead || sent.Content != long {
		t.Fatalf("unexpected message: %+v", sent)
	}

	rec = s.do(t, b, http.MethodGet, "/messages?box=received", nil)
	expectStatus(t, rec, http.StatusOK)
	items := decode[[]MessageListItem](t, rec)
	if len(items) != 1 || len([]rune(items[0].Preview)) != 33 {
		t.Fatalf("received list = %+v", items)
	}

	msgPath := fmt.Sprintf("/messages/%d", sent.ID)
	expectStatus(t, s.do(t, c, http.MethodGet, msgPath, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, c, http.MethodDelete, msgPath, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, a, http.MethodPut, msgPath+"/read", nil), http.StatusForbidden)

	rec = s.do(t, b, http.MethodPut, msgPath+"/read", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[MessageResponse](t, rec); !got.IsRead || got.ReadAt == nil {
		t.Fatalf("after mark read: %+v", got)
	}

	expectStatus(t, s.do(t, b, http.MethodDelete, msgPath, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, b, http.MethodGet, msgPath, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, a, http.MethodGet, msgPath, nil), http.StatusOK)

	expectStatus(t, s.do(t, a, http.MethodGet, "/messages?box=trash", nil), http.StatusBadRequest)
}

func TestMessageValidation(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := s.users[0].ID, s.users[1].ID

	expectStatus(t, s.do(t, a, http.MethodPost, "/messages", SendMessagePayload{ReceiverID: a, Content: "hi"}), http.StatusBadRequest)
	expectStatus(t, s.do(t, a, http.MethodPost, "/messages", SendMessagePayload{ReceiverID: b, Content: "   "}), http.StatusBadRequest)
	expectStatus(t, s.do(t, a, http.MethodPost, "/messages", SendMessagePayload{ReceiverID: 999, Content: "hi"}), http.StatusNotFound)
	expectStatus(t, s.do(t, a, http.MethodGet, "/messages/0", nil), http.StatusBadRequest)
}

func TestBulkDelete(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := s.users[0].ID, s.users[1].ID

	var ids []uint
	for i := 0; i < 3; i++ {
		rec := s.do(t, a, http.MethodPost, "/messages", SendMessagePayload{ReceiverID: b, Content: fmt.Sprintf("산책 %d", i)})
		expectStatus(t, rec, http.StatusCreated)
		ids = append(ids, decode[MessageResponse](t, rec).ID)
	}

	expectStatus(t, s.do(t, a, http.MethodPost, "/messages/bulk-delete", BulkDeletePayload{}), http.StatusBadRequest)
	expectStatus(t, s.do(t, a, http.MethodPost, "/messages/bulk-delete", BulkDeletePayload{MessageIDs: []uint{ids[0], ids[0]}}), http.StatusBadRequest)

	rec := s.do(t, a, http.MethodPost, "/messages/bulk-delete", BulkDeletePayload{MessageIDs: ids[:2]})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, a, http.MethodGet, "/messages?box=sent", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]MessageListItem](t, rec); len(got) != 1 || got[0].ID != ids[2] {
		t.Fatalf("sent after bulk delete = %+v", got)
	}

	// 已删除的私信使整个批次失败且不产生部分删除
	expectStatus(t, s.do(t, a, http.MethodPost, "/messages/bulk-delete", BulkDeletePayload{MessageIDs: []uint{ids[1], ids[2]}}), http.StatusConflict)
	rec = s.do(t, a, http.MethodGet, "/messages?box=sent", nil)
	if got := decode[[]MessageListItem](t, rec); len(got) != 1 {
		t.Fatalf("bulk delete must be atomic, sent = %+v", got)
	}
}

func TestSendIsRateLimited(t *testing.T) {
	s := newTestServer(t, denyAll{})
	rec := s.do(t, s.users[0].ID, http.MethodPost, "/messages", SendMessagePayload{ReceiverID: s.users[1].ID, Content: "hi"})
	expectStatus(t, rec, http.StatusTooManyRequests)
}

func TestServiceErrorResponses(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req = req.WithContext(logging.WithRequestID(req.Context(), "req-500"))

	rec := httptest.NewRecorder()
	writeServiceError(rec, req, errors.New("connection reset"), "获取私信失败")
	expectStatus(t, rec, http.StatusInternalServerError)
	body := decode[ErrorResponse](t, rec)
	if body.RequestID != "req-500" || body.Error != "获取私信失败" || body.Kind != "" {
		t.Fatalf("unexpected 500 body: %+v", body)
	}

	rec = httptest.NewRecorder()
	writeServiceError(rec, req, services.ErrNotFriends, "unused")
	expectStatus(t, rec, http.StatusConflict)
	body = decode[ErrorResponse](t, rec)
	if body.Kind != string(services.KindInvalidState) || body.RequestID != "" {
		t.Fatalf("unexpected business error body: %+v", body)
	}
}
