package models

import "time"

// BaseModel defines the common fields for all models.
// Soft deletion is modelled per entity, so there is no gorm.DeletedAt here.
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

