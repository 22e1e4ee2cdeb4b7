package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"petlink-go/internal/models"
)

// Mailbox 选择列表的视角：全部、收件箱或发件箱。
type Mailbox string

const (
	MailboxAll      Mailbox = "all"
	MailboxReceived Mailbox = "received"
	MailboxSent     Mailbox = "sent"
)

// ParseMailbox maps a query value onto a Mailbox; unknown values return false.
func ParseMailbox(s string) (Mailbox, bool) {
	switch Mailbox(s) {
	case "", MailboxAll:
		return MailboxAll, true
	case MailboxReceived:
		return MailboxReceived, true
	case MailboxSent:
		return MailboxSent, true
	default:
		return "", false
	}
}

// MessageRepository defines the data operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Message, error)
	MarkRead(ctx context.Context, id, receiverID uint, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id uint, party models.MessageParty, at time.Time) error
	List(ctx context.Context, userID uint, box Mailbox, opts ListOptions) ([]models.Message, error)
}

type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based MessageRepository.
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// GetByID 预加载发送者和接收者。未找到时返回 nil, nil。
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return &message, nil
}

func (r *gormMessageRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Message, error) {
	var messages []models.Message
	if len(ids) == 0 {
		return messages, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("get messages %v: %w", ids, err)
	}
	return messages, nil
}

// MarkRead 条件更新：只在未读时写入 read_at，所以 read_at 保持第一次的值。
func (r *gormMessageRepository) MarkRead(ctx context.Context, id, receiverID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND receiver_id = ? AND is_read = ?", id, receiverID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("mark message %d read: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SoftDelete sets the party's flag and recomputes is_deleted in the same statement.
// SET expressions see the row's previous values, so is_deleted is the other party's flag,
// and deleted_at is written only on the transition to fully deleted.
func (r *gormMessageRepository) SoftDelete(ctx context.Context, id uint, party models.MessageParty, at time.Time) error {
	var flagColumn, otherColumn string
	switch party {
	case models.PartySender:
		flagColumn, otherColumn = "deleted_by_sender", "deleted_by_receiver"
	case models.PartyReceiver:
		flagColumn, otherColumn = "deleted_by_receiver", "deleted_by_sender"
	default:
		return fmt.Errorf("soft delete message %d: unknown party %d", id, party)
	}

	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			flagColumn:   true,
			"is_deleted": gorm.Expr(otherColumn),
			"deleted_at": gorm.Expr("CASE WHEN "+otherColumn+" AND deleted_at IS NULL THEN ? ELSE deleted_at END", at),
		}).Error
	if err != nil {
		return fmt.Errorf("soft delete message %d: %w", id, err)
	}
	return nil
}

// List 返回对 userID 可见的私信。
func (r *gormMessageRepository) List(ctx context.Context, userID uint, box Mailbox, opts ListOptions) ([]models.Message, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&models.Message{}).
		Preload("Sender").
		Preload("Receiver").
		Where("is_deleted = ?", false)

	pattern := opts.searchPattern()
	switch box {
	case MailboxReceived:
		q = q.Where("receiver_id = ? AND deleted_by_receiver = ?", userID, false)
		if pattern != "" {
			q = q.Where("(LOWER(content) LIKE ? OR sender_id IN (?))", pattern, nicknameMatches(r.db.WithContext(ctx), pattern))
		}
	case MailboxSent:
		q = q.Where("sender_id = ? AND deleted_by_sender = ?", userID, false)
		if pattern != "" {
			q = q.Where("(LOWER(content) LIKE ? OR receiver_id IN (?))", pattern, nicknameMatches(r.db.WithContext(ctx), pattern))
		}
	default:
		q = q.Where("((sender_id = ? AND deleted_by_sender = ?) OR (receiver_id = ? AND deleted_by_receiver = ?))",
			userID, false, userID, false)
		if pattern != "" {
			q = q.Where("(LOWER(content) LIKE ? OR (sender_id = ? AND receiver_id IN (?)) OR (receiver_id = ? AND sender_id IN (?)))",
				pattern,
				userID, nicknameMatches(r.db.WithContext(ctx), pattern),
				userID, nicknameMatches(r.db.WithContext(ctx), pattern))
		}
	}

	var messages []models.Message
	if err := opts.apply(q, "created_at").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list %s messages of user %d: %w", box, userID, err)
	}
	return messages, nil
}
