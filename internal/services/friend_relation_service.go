package services

import (
	"context"
	"errors"
	"fmt"

	"petlink-go/internal/events"
	"petlink-go/internal/logging"
	"petlink-go/internal/models"
	"petlink-go/internal/storage"
)

// FriendRelationService defines the friend relation operations.
type FriendRelationService interface {
	Request(ctx context.Context, fromUserID, toUserID uint) (*models.FriendRelation, error)
	Respond(ctx context.Context, relationID, responderID uint, decision models.FriendRelationStatus) (*models.FriendRelation, error)
	Unfriend(ctx context.Context, relationID, actorID uint) (*models.FriendRelation, error)
	ListFriends(ctx context.Context, userID uint, opts storage.ListOptions) ([]models.Friend, error)
	GetFriend(ctx context.Context, relationID, userID uint) (*models.Friend, error)
	ListPendingReceived(ctx context.Context, userID uint) ([]models.FriendRelation, error)
	ListPendingSent(ctx context.Context, userID uint) ([]models.FriendRelation, error)
}

type friendRelationService struct {
	userRepo     storage.UserRepository
	relationRepo storage.FriendRelationRepository
	publisher    events.Publisher
}

// NewFriendRelationService creates a new FriendRelationService instance.
func NewFriendRelationService(
	userRepo storage.UserRepository,
	relationRepo storage.FriendRelationRepository,
	publisher events.Publisher,
) FriendRelationService {
	return &friendRelationService{
		userRepo:     userRepo,
		relationRepo: relationRepo,
		publisher:    publisher,
	}
}

// Request 创建一条 pending 好友请求。
func (s *friendRelationService) Request(ctx context.Context, fromUserID, toUserID uint) (*models.FriendRelation, error) {
	if fromUserID == toUserID {
		return nil, ErrFriendRequestSelf
	}

	recipient, err := s.userRepo.GetByID(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("检查接收用户时出错: %w", err)
	}
	if recipient == nil {
		return nil, ErrUserNotFound
	}

	// 两个方向都检查：对方发来的 pending 请求也算重复
	existing, err := s.relationRepo.FindLiveBetween(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("检查现有好友关系时出错: %w", err)
	}
	if existing != nil {
		return nil, ErrFriendRelationExists
	}

	relation := &models.FriendRelation{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     models.FriendRelationPending,
	}
	if err := s.relationRepo.Create(ctx, relation); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// 并发请求被唯一索引拦截
			return nil, ErrFriendRelationExists
		}
		return nil, fmt.Errorf("创建好友请求失败: %w", err)
	}
	relation.ToUser = recipient

	logging.FromContext(ctx).Info("friend request created",
		"relation_id", relation.ID, "from_user_id", fromUserID, "to_user_id", toUserID)
	publish(ctx, s.publisher, events.FriendRequested, fromUserID, toUserID, relation.ID, nil)
	return relation, nil
}

// Respond 被请求者接受或拒绝一条 pending 请求。
func (s *friendRelationService) Respond(ctx context.Context, relationID, responderID uint, decision models.FriendRelationStatus) (*models.FriendRelation, error) {
	relation, err := s.relationRepo.GetByID(ctx, relationID)
	if err != nil {
		return nil, fmt.Errorf("获取好友请求失败: %w", err)
	}
	if relation == nil {
		return nil, ErrFriendRelationNotFound
	}
	if !decision.IsDecision() {
		return nil, ErrInvalidDecision
	}
	if relation.ToUserID != responderID {
		return nil, ErrNotAddressee
	}
	if relation.Status != models.FriendRelationPending {
		return nil, ErrRequestNotPending
	}

	updated, err := s.relationRepo.UpdateStatusIf(ctx, relation.ID, models.FriendRelationPending, decision)
	if err != nil {
		return nil, fmt.Errorf("更新好友请求状态失败: %w", err)
	}
	if !updated {
		// 另一个请求抢先处理了它
		return nil, ErrRequestNotPending
	}

	result, err := s.reload(ctx, relation.ID)
	if err != nil {
		return nil, err
	}

	eventType := events.FriendAccepted
	if decision == models.FriendRelationRejected {
		eventType = events.FriendRejected
	}
	logging.FromContext(ctx).Info("friend request answered",
		"relation_id", relation.ID, "responder_id", responderID, "decision", decision)
	publish(ctx, s.publisher, eventType, responderID, relation.FromUserID, relation.ID, nil)
	return result, nil
}

// Unfriend 任一方都可以把已接受的关系变为 rejected。
func (s *friendRelationService) Unfriend(ctx context.Context, relationID, actorID uint) (*models.FriendRelation, error) {
	relation, err := s.relationRepo.GetByID(ctx, relationID)
	if err != nil {
		return nil, fmt.Errorf("获取好友关系失败: %w", err)
	}
	if relation == nil {
		return nil, ErrFriendRelationNotFound
	}
	if !relation.IsParticipant(actorID) {
		return nil, ErrNotRelationParticipant
	}
	if relation.Status != models.FriendRelationAccepted {
		return nil, ErrNotFriends
	}

	updated, err := s.relationRepo.UpdateStatusIf(ctx, relation.ID, models.FriendRelationAccepted, models.FriendRelationRejected)
	if err != nil {
		return nil, fmt.Errorf("解除好友关系失败: %w", err)
	}
	if !updated {
		return nil, ErrNotFriends
	}

	result, err := s.reload(ctx, relation.ID)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("friend relation removed", "relation_id", relation.ID, "actor_id", actorID)
	publish(ctx, s.publisher, events.FriendRemoved, actorID, relation.OtherPartyID(actorID), relation.ID, nil)
	return result, nil
}

// ListFriends 返回好友列表，每一行解析为对方用户。
func (s *friendRelationService) ListFriends(ctx context.Context, userID uint, opts storage.ListOptions) ([]models.Friend, error) {
	relations, err := s.relationRepo.ListAccepted(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	friends := make([]models.Friend, 0, len(relations))
	for i := range relations {
		friends = append(friends, toFriend(&relations[i], userID))
	}
	return friends, nil
}

func (s *friendRelationService) GetFriend(ctx context.Context, relationID, userID uint) (*models.Friend, error) {
	relation, err := s.relationRepo.GetByID(ctx, relationID)
	if err != nil {
		return nil, fmt.Errorf("获取好友关系失败: %w", err)
	}
	if relation == nil || !relation.IsParticipant(userID) || relation.Status != models.FriendRelationAccepted {
		return nil, ErrFriendRelationNotFound
	}
	friend := toFriend(relation, userID)
	return &friend, nil
}

func (s *friendRelationService) ListPendingReceived(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	relations, err := s.relationRepo.ListPendingReceived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取收到的好友请求失败: %w", err)
	}
	return relations, nil
}

func (s *friendRelationService) ListPendingSent(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	relations, err := s.relationRepo.ListPendingSent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取发出的好友请求失败: %w", err)
	}
	return relations, nil
}

func (s *friendRelationService) reload(ctx context.Context, relationID uint) (*models.FriendRelation, error) {
	relation, err := s.relationRepo.GetByID(ctx, relationID)
	if err != nil {
		return nil, fmt.Errorf("重新加载好友关系失败: %w", err)
	}
	if relation == nil {
		return nil, fmt.Errorf("好友关系 %d 在更新后消失", relationID)
	}
	return relation, nil
}

func toFriend(relation *models.FriendRelation, userID uint) models.Friend {
	info := relation.OtherParty(userID).BasicInfo()
	if info == nil {
		info = &models.UserBasicInfo{ID: relation.OtherPartyID(userID)}
	}
	return models.Friend{
		RelationID: relation.ID,
		Friend:     info,
		Since:      relation.UpdatedAt,
	}
}
