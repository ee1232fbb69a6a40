package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkpointKeyPrefix = "timedtest:drafts:"

// RedisDraftCheckpoint keeps the drafts of abandoned attempts in a redis
// hash per attempt, field = question ID.
type RedisDraftCheckpoint struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftCheckpoint(client *redis.Client, ttl time.Duration) *RedisDraftCheckpoint {
	return &RedisDraftCheckpoint{client: client, ttl: ttl}
}

func checkpointKey(attemptID uint) string {
	return checkpointKeyPrefix + strconv.FormatUint(uint64(attemptID), 10)
}

// Save replaces the checkpoint of an attempt.
func (c *RedisDraftCheckpoint) Save(ctx context.Context, attemptID uint, drafts map[uint]string) error {
	key := checkpointKey(attemptID)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(drafts) == 0 {
			return nil
		}
		fields := make(map[string]any, len(drafts))
		for qid, payload := range drafts {
			fields[strconv.FormatUint(uint64(qid), 10)] = payload
		}
		p.HSet(ctx, key, fields)
		if c.ttl > 0 {
			p.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save draft checkpoint: %w", err)
	}
	return nil
}

// Load returns an empty map when no checkpoint exists.
func (c *RedisDraftCheckpoint) Load(ctx context.Context, attemptID uint) (map[uint]string, error) {
	raw, err := c.client.HGetAll(ctx, checkpointKey(attemptID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load draft checkpoint: %w", err)
	}
	drafts := make(map[uint]string, len(raw))
	for field, payload := range raw {
		qid, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		drafts[uint(qid)] = payload
	}
	return drafts, nil
}

func (c *RedisDraftCheckpoint) Delete(ctx context.Context, attemptID uint) error {
	return c.client.Del(ctx, checkpointKey(attemptID)).Err()
}

// MemoryDraftCheckpoint is used when no redis is configured. Checkpoints
// do not survive a restart.
type MemoryDraftCheckpoint struct {
	mu     sync.Mutex
	drafts map[uint]map[uint]string
}

func NewMemoryDraftCheckpoint() *MemoryDraftCheckpoint {
	return &MemoryDraftCheckpoint{drafts: map[uint]map[uint]string{}}
}

func (m *MemoryDraftCheckpoint) Save(_ context.Context, attemptID uint, drafts map[uint]string) error {
	cp := make(map[uint]string, len(drafts))
	for k, v := range drafts {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[attemptID] = cp
	return nil
}

func (m *MemoryDraftCheckpoint) Load(_ context.Context, attemptID uint) (map[uint]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint]string, len(m.drafts[attemptID]))
	for k, v := range m.drafts[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryDraftCheckpoint) Delete(_ context.Context, attemptID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, attemptID)
	return nil
}
