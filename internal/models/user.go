package models

// User 代表社区中的用户（宠物主人）。账号由外部认证服务创建，本服务只读取。
type User struct {
	BaseModel
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string `gorm:"type:varchar(100)" json:"email,omitempty"`
	Nickname     string `gorm:"type:varchar(30);index" json:"nickname"`
	ProfileImage string `gorm:"type:varchar(255)" json:"profileImage,omitempty"`
	District     string `gorm:"type:varchar(50)" json:"district,omitempty"`
	Neighborhood string `gorm:"type:varchar(50)" json:"neighborhood,omitempty"`
}

// UserBasicInfo holds minimal public information about a user.
type UserBasicInfo struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// BasicInfo 返回用户的公开基本信息。
func (u *User) BasicInfo() *UserBasicInfo {
	if u == nil {
		return nil
	}
	return &UserBasicInfo{
		ID:           u.ID,
		Username:     u.Username,
		Nickname:     u.Nickname,
		ProfileImage: u.ProfileImage,
	}
}
