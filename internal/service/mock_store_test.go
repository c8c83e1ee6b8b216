package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/natn4y/comment-system-backend/internal/model"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
)

// mockStore 用于模拟存储层故障
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, id int64) (*model.Comment, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*model.Comment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListByParent(ctx context.Context, parentID int64) ([]*model.Comment, error) {
	args := m.Called(ctx, parentID)
	if c := args.Get(0); c != nil {
		return c.([]*model.Comment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListPage(ctx context.Context, offset, limit int) ([]*model.Comment, int64, error) {
	args := m.Called(ctx, offset, limit)
	if c := args.Get(0); c != nil {
		return c.([]*model.Comment), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) Insert(ctx context.Context, comment *model.Comment) (int64, error) {
	args := m.Called(ctx, comment)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id int64, fields map[string]interface{}) (int64, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ToggleLike(ctx context.Context, id int64) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListOrphans(ctx context.Context, limit int) ([]int64, error) {
	args := m.Called(ctx, limit)
	if ids := args.Get(0); ids != nil {
		return ids.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingBroadcaster 记录所有发布的事件
type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []*ws.Message
	err      error
}

func (b *recordingBroadcaster) Publish(_ context.Context, msg *ws.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return b.err
}

func (b *recordingBroadcaster) Messages() []*ws.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*ws.Message, len(b.messages))
	copy(out, b.messages)
	return out
}
