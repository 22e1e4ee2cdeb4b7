package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"petlink-go/internal/models"
)

// UserRepository defines the interface for user data operations.
// Users are owned by the account service; this module only creates them in tooling and tests.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 未找到时返回 nil, nil。
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// nicknameMatches 返回昵称匹配 pattern 的用户 ID 子查询。
func nicknameMatches(db *gorm.DB, pattern string) *gorm.DB {
	return db.Model(&models.User{}).Select("id").Where("LOWER(nickname) LIKE ?", pattern)
}
