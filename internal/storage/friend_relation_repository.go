package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"petlink-go/internal/models"
)

// FriendRelationRepository defines the data operations for friend relations.
type FriendRelationRepository interface {
	Create(ctx context.Context, relation *models.FriendRelation) error
	GetByID(ctx context.Context, id uint) (*models.FriendRelation, error)
	FindLiveBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRelation, error)
	UpdateStatusIf(ctx context.Context, id uint, from, to models.FriendRelationStatus) (bool, error)
	ListAccepted(ctx context.Context, userID uint, opts ListOptions) ([]models.FriendRelation, error)
	ListPendingReceived(ctx context.Context, userID uint) ([]models.FriendRelation, error)
	ListPendingSent(ctx context.Context, userID uint) ([]models.FriendRelation, error)
}

type gormFriendRelationRepository struct {
	db *gorm.DB
}

// NewGormFriendRelationRepository creates a new GORM-based FriendRelationRepository.
func NewGormFriendRelationRepository(db *gorm.DB) FriendRelationRepository {
	return &gormFriendRelationRepository{db: db}
}

// Create 插入一条新关系。唯一索引冲突返回 ErrDuplicate。
func (r *gormFriendRelationRepository) Create(ctx context.Context, relation *models.FriendRelation) error {
	if err := r.db.WithContext(ctx).Create(relation).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create friend relation: %w", err)
	}
	return nil
}

// GetByID 预加载双方用户。未找到时返回 nil, nil。
func (r *gormFriendRelationRepository) GetByID(ctx context.Context, id uint) (*models.FriendRelation, error) {
	var relation models.FriendRelation
	err := r.db.WithContext(ctx).
		Preload("FromUser").
		Preload("ToUser").
		First(&relation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get friend relation %d: %w", id, err)
	}
	return &relation, nil
}

// FindLiveBetween finds a pending or accepted relation between two users in either direction.
func (r *gormFriendRelationRepository) FindLiveBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRelation, error) {
	var relation models.FriendRelation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", models.PairKeyFor(userID1, userID2)).
		Where("status IN ?", []models.FriendRelationStatus{models.FriendRelationPending, models.FriendRelationAccepted}).
		First(&relation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find relation between %d and %d: %w", userID1, userID2, err)
	}
	return &relation, nil
}

// UpdateStatusIf 仅当当前状态为 from 时更新为 to，返回是否有行被更新。
// 并发的两次状态变更只有一次会成功。
func (r *gormFriendRelationRepository) UpdateStatusIf(ctx context.Context, id uint, from, to models.FriendRelationStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FriendRelation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("update friend relation %d status: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListAccepted returns accepted relations of userID; Search matches the other party's nickname.
func (r *gormFriendRelationRepository) ListAccepted(ctx context.Context, userID uint, opts ListOptions) ([]models.FriendRelation, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&models.FriendRelation{}).
		Preload("FromUser").
		Preload("ToUser").
		Where("(from_user_id = ? OR to_user_id = ?)", userID, userID).
		Where("status = ?", models.FriendRelationAccepted)

	if pattern := opts.searchPattern(); pattern != "" {
		q = q.Where("((from_user_id = ? AND to_user_id IN (?)) OR (to_user_id = ? AND from_user_id IN (?)))",
			userID, nicknameMatches(r.db.WithContext(ctx), pattern),
			userID, nicknameMatches(r.db.WithContext(ctx), pattern))
	}

	var relations []models.FriendRelation
	if err := opts.apply(q, "updated_at").Find(&relations).Error; err != nil {
		return nil, fmt.Errorf("list friends of user %d: %w", userID, err)
	}
	return relations, nil
}

func (r *gormFriendRelationRepository) ListPendingReceived(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	return r.listPending(ctx, "to_user_id = ?", userID)
}

func (r *gormFriendRelationRepository) ListPendingSent(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	return r.listPending(ctx, "from_user_id = ?", userID)
}

func (r *gormFriendRelationRepository) listPending(ctx context.Context, cond string, userID uint) ([]models.FriendRelation, error) {
	var relations []models.FriendRelation
	err := r.db.WithContext(ctx).
		Preload("FromUser").
		Preload("ToUser").
		Where(cond, userID).
		Where("status = ?", models.FriendRelationPending).
		Order("created_at DESC").Order("id DESC").
		Find(&relations).Error
	if err != nil {
		return nil, fmt.Errorf("list pending relations of user %d: %w", userID, err)
	}
	return relations, nil
}
