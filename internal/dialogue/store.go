package dialogue

import (
	"context"
	"sync"
	"time"

	"tendero/internal/pkg/cache"
)

// Store 购买会话状态存取接口
// Get 未命中返回 (nil, nil)；状态按对话 ID 寻址
type Store interface {
	Get(ctx context.Context, conversationID string) (*State, error)
	Put(ctx context.Context, state *State) error
	Delete(ctx context.Context, conversationID string) error
}

// RedisStore 基于 Redis 的状态存储，TTL 由 Redis 过期保证
type RedisStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewRedisStore 创建 Redis 状态存储
func NewRedisStore(c *cache.RedisCache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

// Get 读取状态
func (s *RedisStore) Get(ctx context.Context, conversationID string) (*State, error) {
	var state State
	err := s.cache.Get(ctx, cache.DialogueCacheKey(conversationID), &state)
	if err != nil {
		if cache.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// Put 写入状态并刷新 TTL
func (s *RedisStore) Put(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now()
	return s.cache.Set(ctx, cache.DialogueCacheKey(state.ConversationID), state, s.ttl)
}

// Delete 删除状态
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return s.cache.Delete(ctx, cache.DialogueCacheKey(conversationID))
}

// MemoryStore 进程内状态存储
// Redis 未配置时的回退实现，也用于单元测试；读取时做惰性过期
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
	ttl    time.Duration
}

// NewMemoryStore 创建进程内状态存储
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*State),
		ttl:    ttl,
	}
}

// Get 读取状态，过期条目视为未命中并清除
func (s *MemoryStore) Get(_ context.Context, conversationID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && time.Since(state.UpdatedAt) > s.ttl {
		delete(s.states, conversationID)
		return nil, nil
	}

	clone := *state
	return &clone, nil
}

// Put 写入状态
func (s *MemoryStore) Put(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = time.Now()
	clone := *state
	s.states[state.ConversationID] = &clone
	return nil
}

// Delete 删除状态
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conversationID)
	return nil
}
