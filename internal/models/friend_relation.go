package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// FriendRelationStatus 定义好友关系的状态
type FriendRelationStatus string

const (
	FriendRelationPending  FriendRelationStatus = "pending"
	FriendRelationAccepted FriendRelationStatus = "accepted"
	FriendRelationRejected FriendRelationStatus = "rejected"
)

// IsDecision reports whether s is a valid answer to a pending request.
func (s FriendRelationStatus) IsDecision() bool {
	return s == FriendRelationAccepted || s == FriendRelationRejected
}

// FriendRelation 是从请求者 (FromUserID) 指向被请求者 (ToUserID) 的有向好友关系。
//
// PairKey 是两个用户 ID 的规范顺序组合，部分唯一索引保证同一对用户之间
// 最多只有一条 pending/accepted 记录，无论方向。rejected 记录只作为历史保留。
type FriendRelation struct {
	BaseModel
	FromUserID uint                 `gorm:"not null;index" json:"fromUserId"`
	ToUserID   uint                 `gorm:"not null;index" json:"toUserId"`
	Status     FriendRelationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PairKey    string               `gorm:"type:varchar(41);not null;uniqueIndex:idx_friend_relations_live_pair,where:status <> 'rejected'" json:"-"`

	FromUser *User `gorm:"foreignKey:FromUserID" json:"fromUser,omitempty"`
	ToUser   *User `gorm:"foreignKey:ToUserID" json:"toUser,omitempty"`
}

// TableName 指定 FriendRelation 模型的表名。
func (FriendRelation) TableName() string {
	return "friend_relations"
}

// PairKeyFor returns the canonical key of an unordered user pair.
func PairKeyFor(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// BeforeCreate fills PairKey from the participants.
func (r *FriendRelation) BeforeCreate(tx *gorm.DB) error {
	r.PairKey = PairKeyFor(r.FromUserID, r.ToUserID)
	return nil
}

// IsParticipant 判断用户是否为该关系的任一方。
func (r *FriendRelation) IsParticipant(userID uint) bool {
	return userID != 0 && (r.FromUserID == userID || r.ToUserID == userID)
}

// OtherPartyID returns the id of the participant that is not userID.
func (r *FriendRelation) OtherPartyID(userID uint) uint {
	if r.FromUserID == userID {
		return r.ToUserID
	}
	return r.FromUserID
}

// OtherParty returns the preloaded user on the other side, if loaded.
func (r *FriendRelation) OtherParty(userID uint) *User {
	if r.FromUserID == userID {
		return r.ToUser
	}
	return r.FromUser
}

// Friend 是好友列表中的一行：关系 ID 加上对方的基本信息。
type Friend struct {
	RelationID uint           `json:"relationId"`
	Friend     *UserBasicInfo `json:"friend"`
	Since      time.Time      `json:"since"`
}
