package model

import (
	"time"
)

// Comment 评论，ParentID 为空表示一级评论
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname  string    `gorm:"size:100;not null" json:"nickname"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	ParentID  *int64    `gorm:"index" json:"parentId"`
	Edited    bool      `gorm:"not null;default:false" json:"edited"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Comment) TableName() string {
	return "comments"
}
