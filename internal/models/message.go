package models

import (
	"time"
	"unicode/utf8"
)

const (
	// MaxMessageContentLength 私信内容的最大字符数。
	MaxMessageContentLength = 500
	previewLength           = 30
)

// MessageParty identifies which side of a message a user is on.
type MessageParty int

const (
	PartyNone MessageParty = iota
	PartySender
	PartyReceiver
)

// Message 是用户之间的私信（쪽지）。
// 双方各自软删除；两方都删除后 IsDeleted 为 true 并记录 DeletedAt。
type Message struct {
	BaseModel
	SenderID          uint       `gorm:"not null;index" json:"senderId"`
	ReceiverID        uint       `gorm:"not null;index" json:"receiverId"`
	Content           string     `gorm:"type:varchar(500);not null" json:"content"`
	IsRead            bool       `gorm:"not null;default:false" json:"isRead"`
	ReadAt            *time.Time `json:"readAt,omitempty"`
	DeletedBySender   bool       `gorm:"not null;default:false" json:"deletedBySender"`
	DeletedByReceiver bool       `gorm:"not null;default:false" json:"deletedByReceiver"`
	IsDeleted         bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// ContentLength counts characters, not bytes.
func ContentLength(content string) int {
	return utf8.RuneCountInString(content)
}

// PartyOf 返回用户在这条私信中的身份。
func (m *Message) PartyOf(userID uint) MessageParty {
	switch {
	case userID == 0:
		return PartyNone
	case m.SenderID == userID:
		return PartySender
	case m.ReceiverID == userID:
		return PartyReceiver
	default:
		return PartyNone
	}
}

// IsParticipant reports whether userID is the sender or the receiver.
func (m *Message) IsParticipant(userID uint) bool {
	return m.PartyOf(userID) != PartyNone
}

// DeletedBy reports whether the given party has removed the message from its view.
func (m *Message) DeletedBy(party MessageParty) bool {
	switch party {
	case PartySender:
		return m.DeletedBySender
	case PartyReceiver:
		return m.DeletedByReceiver
	default:
		return false
	}
}

// VisibleTo 可见性是不对称的：一方删除后对该方不可见，对另一方仍可见。
func (m *Message) VisibleTo(userID uint) bool {
	party := m.PartyOf(userID)
	if party == PartyNone || m.IsDeleted {
		return false
	}
	return !m.DeletedBy(party)
}

// CounterpartID returns the id of the other participant.
func (m *Message) CounterpartID(userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Preview 返回内容的前 30 个字符，超出部分以 "..." 表示。
func (m *Message) Preview() string {
	if utf8.RuneCountInString(m.Content) <= previewLength {
		return m.Content
	}
	runes := []rune(m.Content)
	return string(runes[:previewLength]) + "..."
}
