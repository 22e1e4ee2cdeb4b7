package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"petlink-go/internal/events"
	"petlink-go/internal/logging"
	"petlink-go/internal/models"
	"petlink-go/internal/storage"
)

// MessageService defines the direct message operations.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID uint, content string) (*models.Message, error)
	Get(ctx context.Context, messageID, userID uint) (*models.Message, error)
	List(ctx context.Context, userID uint, box storage.Mailbox, opts storage.ListOptions) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID, readerID uint) (*models.Message, error)
	SoftDelete(ctx context.Context, messageID, actorID uint) (*models.Message, error)
	BulkSoftDelete(ctx context.Context, actorID uint, messageIDs []uint) error
}

// messagePayload 是 message.sent 事件携带的摘要。
type messagePayload struct {
	Preview string `json:"preview"`
}

type messageService struct {
	db          *gorm.DB // 批量删除需要事务
	userRepo    storage.UserRepository
	messageRepo storage.MessageRepository
	publisher   events.Publisher
	now         func() time.Time
}

// NewMessageService creates a new MessageService instance.
func NewMessageService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	messageRepo storage.MessageRepository,
	publisher events.Publisher,
) MessageService {
	return &messageService{
		db:          db,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Send 发送一条私信。
func (s *messageService) Send(ctx context.Context, senderID, receiverID uint, content string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, ErrMessageToSelf
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrMessageEmpty
	}
	if models.ContentLength(content) > models.MaxMessageContentLength {
		return nil, ErrMessageTooLong
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("检查接收用户时出错: %w", err)
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("保存私信失败: %w", err)
	}
	message.Receiver = receiver

	logging.FromContext(ctx).Info("message sent",
		"message_id", message.ID, "sender_id", senderID, "receiver_id", receiverID)
	publish(ctx, s.publisher, events.MessageSent, senderID, receiverID, message.ID, messagePayload{Preview: message.Preview()})
	return message, nil
}

// Get returns the message when it is visible to userID.
func (s *messageService) Get(ctx context.Context, messageID, userID uint) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("获取私信失败: %w", err)
	}
	if message == nil || !message.VisibleTo(userID) {
		return nil, ErrMessageNotFound
	}
	return message, nil
}

func (s *messageService) List(ctx context.Context, userID uint, box storage.Mailbox, opts storage.ListOptions) ([]models.Message, error) {
	messages, err := s.messageRepo.List(ctx, userID, box, opts)
	if err != nil {
		return nil, fmt.Errorf("获取私信列表失败: %w", err)
	}
	return messages, nil
}

// MarkRead 只有接收者可以标记已读；已读时不做任何修改。
func (s *messageService) MarkRead(ctx context.Context, messageID, readerID uint) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("获取私信失败: %w", err)
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	if message.PartyOf(readerID) != models.PartyReceiver {
		return nil, ErrNotMessageReceiver
	}
	if !message.VisibleTo(readerID) {
		return nil, ErrMessageNotFound
	}
	if message.IsRead {
		return message, nil
	}

	changed, err := s.messageRepo.MarkRead(ctx, message.ID, readerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("标记私信已读失败: %w", err)
	}

	result, err := s.reload(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		publish(ctx, s.publisher, events.MessageRead, readerID, message.SenderID, message.ID, nil)
	}
	return result, nil
}

// SoftDelete 删除自己这一侧的私信；双方都删除后整条私信视为已删除。
func (s *messageService) SoftDelete(ctx context.Context, messageID, actorID uint) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("获取私信失败: %w", err)
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	party := message.PartyOf(actorID)
	if party == models.PartyNone {
		return nil, ErrNotMessageParticipant
	}

	if err := s.messageRepo.SoftDelete(ctx, message.ID, party, s.now()); err != nil {
		return nil, fmt.Errorf("删除私信失败: %w", err)
	}
	logging.FromContext(ctx).Info("message soft deleted", "message_id", message.ID, "actor_id", actorID)
	return s.reload(ctx, message.ID)
}

// BulkSoftDelete 在一个事务中删除多条私信，任意一条不满足条件则全部不删除。
func (s *messageService) BulkSoftDelete(ctx context.Context, actorID uint, messageIDs []uint) error {
	if len(messageIDs) == 0 {
		return ErrNoMessageIDs
	}
	seen := make(map[uint]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		if _, dup := seen[id]; dup {
			return ErrDuplicateMessageIDs
		}
		seen[id] = struct{}{}
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := storage.NewGormMessageRepository(tx)

		messages, err := repo.GetByIDs(ctx, messageIDs)
		if err != nil {
			return err
		}
		if len(messages) != len(messageIDs) {
			return ErrMessageNotFound
		}
		for i := range messages {
			party := messages[i].PartyOf(actorID)
			if party == models.PartyNone {
				return ErrNotMessageParticipant
			}
			if messages[i].DeletedBy(party) {
				return ErrMessageAlreadyDeleted
			}
		}
		for i := range messages {
			if err := repo.SoftDelete(ctx, messages[i].ID, messages[i].PartyOf(actorID), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if KindOf(err) != "" {
			return err
		}
		return fmt.Errorf("批量删除私信失败: %w", err)
	}

	logging.FromContext(ctx).Info("messages soft deleted", "count", len(messageIDs), "actor_id", actorID)
	return nil
}

func (s *messageService) reload(ctx context.Context, messageID uint) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("重新加载私信失败: %w", err)
	}
	if message == nil {
		return nil, fmt.Errorf("私信 %d 在更新后消失", messageID)
	}
	return message, nil
}
