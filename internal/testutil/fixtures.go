package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/natn4y/comment-system-backend/internal/model"
)

// TestComment 创建测试评论
func TestComment(t *testing.T, db *gorm.DB, opts ...func(*model.Comment)) *model.Comment {
	t.Helper()

	comment := &model.Comment{
		Nickname: fmt.Sprintf("user_%d", time.Now().UnixNano()%10000),
		Text:     "Test comment",
	}

	for _, opt := range opts {
		opt(comment)
	}

	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}

	return comment
}

// TestReply 创建测试回复
func TestReply(t *testing.T, db *gorm.DB, parentID int64, opts ...func(*model.Comment)) *model.Comment {
	t.Helper()
	return TestComment(t, db, append([]func(*model.Comment){WithParent(parentID)}, opts...)...)
}

// TestChain 创建一条深度为 depth 的评论链，返回从根到叶的 ID
func TestChain(t *testing.T, db *gorm.DB, depth int) []int64 {
	t.Helper()

	ids := make([]int64, 0, depth)
	var parentID *int64
	for i := 0; i < depth; i++ {
		comment := &model.Comment{
			Nickname: "chain",
			Text:     fmt.Sprintf("level %d", i),
			ParentID: parentID,
		}
		if err := db.Create(comment).Error; err != nil {
			t.Fatalf("Failed to create chain comment %d: %v", i, err)
		}
		ids = append(ids, comment.ID)
		id := comment.ID
		parentID = &id
	}
	return ids
}

// WithNickname 设置昵称
func WithNickname(nickname string) func(*model.Comment) {
	return func(c *model.Comment) {
		c.Nickname = nickname
	}
}

// WithText 设置正文
func WithText(text string) func(*model.Comment) {
	return func(c *model.Comment) {
		c.Text = text
	}
}

// WithParent 设置父评论
func WithParent(parentID int64) func(*model.Comment) {
	return func(c *model.Comment) {
		c.ParentID = &parentID
	}
}

// WithLikes 设置点赞数
func WithLikes(likes int) func(*model.Comment) {
	return func(c *model.Comment) {
		c.Likes = likes
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(createdAt time.Time) func(*model.Comment) {
	return func(c *model.Comment) {
		c.CreatedAt = createdAt
	}
}
