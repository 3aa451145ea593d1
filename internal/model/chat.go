package model

import "time"

// ChatGroup 是某个 drive 下按专业划分的交流群，(drive_id, department) 唯一。
type ChatGroup struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	DriveID    string       `gorm:"size:36;not null;uniqueIndex:idx_chat_group_drive_department" json:"drive_id"`
	Department string       `gorm:"not null;uniqueIndex:idx_chat_group_drive_department" json:"department"`
	Name       string       `json:"name"`
	CreatedBy  string       `gorm:"size:36" json:"created_by"`
	Members    []ChatMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ChatMember 群成员，(group_id, user_id) 唯一，重复加入不产生新行。
type ChatMember struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	GroupID     string    `gorm:"size:36;not null;uniqueIndex:idx_chat_member_group_user" json:"group_id"`
	UserID      string    `gorm:"size:36;not null;uniqueIndex:idx_chat_member_group_user" json:"user_id"`
	JoinedAt    time.Time `json:"joined_at"`
	LastReadAt  time.Time `json:"last_read_at"`
	UnreadCount int       `gorm:"not null;default:0" json:"unread_count"`
}
