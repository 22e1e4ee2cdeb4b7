package apiserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"petlink-go/internal/logging"
	"petlink-go/internal/middleware"
	"petlink-go/internal/services"
	"petlink-go/internal/storage"
)

const maxRequestBodyBytes = 64 << 10

// ErrorResponse 统一的错误响应体。
// 500 响应带上 requestId，便于对照服务端日志。
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

// statusForKind maps a business error kind onto an HTTP status.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindDuplicate, services.KindInvalidState:
		return http.StatusConflict
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError 将业务错误转换为对应状态码；其它错误记录日志并返回 500。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		writeJSONResponse(w, statusForKind(svcErr.Kind), ErrorResponse{Error: svcErr.Error(), Kind: string(svcErr.Kind)})
		return
	}
	ctx := r.Context()
	requestID := logging.RequestIDFromContext(ctx)
	logging.FromContext(ctx).Error(fallback, "error", err, "request_id", requestID)
	writeJSONResponse(w, http.StatusInternalServerError, ErrorResponse{Error: fallback, RequestID: requestID})
}

// currentUserID 读取认证中间件写入的用户 ID，缺失时直接写 401。
func currentUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
	}
	return userID, ok
}

// pathID parses a positive integer route variable, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil || id == 0 {
		writeJSONError(w, "无效的 "+name+" 格式", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return false
	}
	return true
}

// listOptions reads search, sort, limit and offset from the query string.
func listOptions(w http.ResponseWriter, r *http.Request) (storage.ListOptions, bool) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		Search: q.Get("search"),
		Sort:   storage.ParseSortOrder(q.Get("sort")),
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "无效的分页参数 "+name, http.StatusBadRequest)
			return storage.ListOptions{}, false
		}
		*dst = n
	}
	return opts, true
}
