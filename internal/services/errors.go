package services

import "errors"

// ErrorKind 业务错误的分类，处理器据此映射 HTTP 状态码。
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindDuplicate     ErrorKind = "duplicate"
	KindAuthorization ErrorKind = "authorization"
	KindInvalidState  ErrorKind = "invalid_state"
	KindNotFound      ErrorKind = "not_found"
)

// Error is a typed business rule violation.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is lets errors.Is match any error of the same kind against the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of a service error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ""
}

// Kind sentinels: errors.Is(err, ErrNotFound) is true for every not-found error.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrDuplicate     = &Error{Kind: KindDuplicate}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

var (
	ErrFriendRequestSelf      = newError(KindDuplicate, "不能向自己发送好友请求")
	ErrFriendRelationExists   = newError(KindDuplicate, "你们之间已存在待处理的请求或已经是好友")
	ErrUserNotFound           = newError(KindNotFound, "用户不存在")
	ErrFriendRelationNotFound = newError(KindNotFound, "好友关系不存在")
	ErrInvalidDecision        = newError(KindValidation, "处理结果只能是 accepted 或 rejected")
	ErrNotAddressee           = newError(KindAuthorization, "只有被请求者可以处理该好友请求")
	ErrNotRelationParticipant = newError(KindAuthorization, "您不是该好友关系的参与者")
	ErrRequestNotPending      = newError(KindInvalidState, "该好友请求已被处理")
	ErrNotFriends             = newError(KindInvalidState, "只有已接受的好友关系才能解除")

	ErrMessageToSelf         = newError(KindValidation, "不能给自己发送私信")
	ErrMessageEmpty          = newError(KindValidation, "私信内容不能为空")
	ErrMessageTooLong        = newError(KindValidation, "私信内容不能超过 500 个字符")
	ErrMessageNotFound       = newError(KindNotFound, "私信不存在")
	ErrNotMessageReceiver    = newError(KindAuthorization, "只有接收者可以将私信标记为已读")
	ErrNotMessageParticipant = newError(KindAuthorization, "您不是该私信的发送者或接收者")
	ErrNoMessageIDs          = newError(KindValidation, "请选择要删除的私信")
	ErrDuplicateMessageIDs   = newError(KindValidation, "私信 ID 重复")
	ErrMessageAlreadyDeleted = newError(KindInvalidState, "部分私信已被删除")
)
