package apiserver

import (
	"time"

	"petlink-go/internal/models"
)

// SendFriendRequestPayload POST /friends/requests 请求体。
type SendFriendRequestPayload struct {
	ToUserID uint `json:"toUserId"`
}

// RespondFriendRequestPayload carries the addressee's decision.
type RespondFriendRequestPayload struct {
	Status models.FriendRelationStatus `json:"status"`
}

// FriendRelationResponse 好友请求/关系的响应。
type FriendRelationResponse struct {
	ID        uint                        `json:"id"`
	FromUser  *models.UserBasicInfo       `json:"fromUser"`
	ToUser    *models.UserBasicInfo       `json:"toUser"`
	Status    models.FriendRelationStatus `json:"status"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

func newFriendRelationResponse(r *models.FriendRelation) FriendRelationResponse {
	return FriendRelationResponse{
		ID:        r.ID,
		FromUser:  basicInfoOrID(r.FromUser, r.FromUserID),
		ToUser:    basicInfoOrID(r.ToUser, r.ToUserID),
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newFriendRelationResponses(relations []models.FriendRelation) []FriendRelationResponse {
	out := make([]FriendRelationResponse, 0, len(relations))
	for i := range relations {
		out = append(out, newFriendRelationResponse(&relations[i]))
	}
	return out
}

// SendMessagePayload POST /messages 请求体。
type SendMessagePayload struct {
	ReceiverID uint   `json:"receiverId"`
	Content    string `json:"content"`
}

// BulkDeletePayload lists the messages to delete in one request.
type BulkDeletePayload struct {
	MessageIDs []uint `json:"messageIds"`
}

// MessageListItem 列表中的私信，只包含内容预览。
type MessageListItem struct {
	ID        uint                  `json:"id"`
	Sender    *models.UserBasicInfo `json:"sender"`
	Receiver  *models.UserBasicInfo `json:"receiver"`
	Preview   string                `json:"preview"`
	IsRead    bool                  `json:"isRead"`
	CreatedAt time.Time             `json:"createdAt"`
}

// MessageResponse is the full view of a single message.
type MessageResponse struct {
	ID        uint                  `json:"id"`
	Sender    *models.UserBasicInfo `json:"sender"`
	Receiver  *models.UserBasicInfo `json:"receiver"`
	Content   string                `json:"content"`
	IsRead    bool                  `json:"isRead"`
	ReadAt    *time.Time            `json:"readAt,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

func basicInfoOrID(u *models.User, id uint) *models.UserBasicInfo {
	if info := u.BasicInfo(); info != nil {
		return info
	}
	return &models.UserBasicInfo{ID: id}
}

func newMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Sender:    basicInfoOrID(m.Sender, m.SenderID),
		Receiver:  basicInfoOrID(m.Receiver, m.ReceiverID),
		Content:   m.Content,
		IsRead:    m.IsRead,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}

func newMessageListItems(messages []models.Message) []MessageListItem {
	out := make([]MessageListItem, 0, len(messages))
	for i := range messages {
		m := &messages[i]
		out = append(out, MessageListItem{
			ID:        m.ID,
			Sender:    basicInfoOrID(m.Sender, m.SenderID),
			Receiver:  basicInfoOrID(m.Receiver, m.ReceiverID),
			Preview:   m.Preview(),
			IsRead:    m.IsRead,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

// FriendResponse 好友列表中的一项。
type FriendResponse struct {
	RelationID uint                  `json:"relationId"`
	Friend     *models.UserBasicInfo `json:"friend"`
	Since      time.Time             `json:"since"`
}

func newFriendResponse(f *models.Friend) FriendResponse {
	return FriendResponse{RelationID: f.RelationID, Friend: f.Friend, Since: f.Since}
}

func newFriendResponses(friends []models.Friend) []FriendResponse {
	out := make([]FriendResponse, 0, len(friends))
	for i := range friends {
		out = append(out, newFriendResponse(&friends[i]))
	}
	return out
}
