package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// TypingStore implements store.TypingStore on Redis.
//
// Key layout:
//
//	typing:room:{room_id}   ZSET<user_id> scored by expiry (unix ms)
//
// The key itself carries a TTL slightly past the newest expiry so idle rooms
// disappear; individual members are trimmed lazily on read.
type TypingStore struct {
	client *goredis.Client
}

// NewTypingStore connects to Redis and verifies the connection.
func NewTypingStore(ctx context.Context, cfg Config) (*TypingStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewTypingStoreFromClient(client), nil
}

// NewTypingStoreFromClient wraps an existing client.
func NewTypingStoreFromClient(client *goredis.Client) *TypingStore {
	return &TypingStore{client: client}
}

func roomTypingKey(roomID string) string {
	return fmt.Sprintf("typing:room:%s", roomID)
}

// UpsertTyping records the marker with its expiry as the member score.
func (s *TypingStore) UpsertTyping(ctx context.Context, marker *store.TypingMarker) error {
	key := roomTypingKey(marker.RoomID)
	// An already expired marker would expire the whole key.
	if !marker.IsTyping || !marker.ExpiresAt.After(time.Now()) {
		return s.DeleteTyping(ctx, marker.RoomID, marker.UserID)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(marker.ExpiresAt.UnixMilli()),
		Member: marker.UserID,
	})
	pipe.ExpireAt(ctx, key, marker.ExpiresAt.Add(time.Second))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert typing: %w", err)
	}
	return nil
}

// DeleteTyping removes the marker.
func (s *TypingStore) DeleteTyping(ctx context.Context, roomID, userID string) error {
	if err := s.client.ZRem(ctx, roomTypingKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("delete typing: %w", err)
	}
	return nil
}

// GetTyping returns the marker for (roomID, userID).
func (s *TypingStore) GetTyping(ctx context.Context, roomID, userID string) (*store.TypingMarker, error) {
	score, err := s.client.ZScore(ctx, roomTypingKey(roomID), userID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("typing marker: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("get typing: %w", err)
	}
	return markerFromScore(roomID, userID, score), nil
}

// ListTyping trims expired members and returns the rest.
func (s *TypingStore) ListTyping(ctx context.Context, roomID string) ([]*store.TypingMarker, error) {
	key := roomTypingKey(roomID)
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", now)
	rangeCmd := pipe.ZRangeWithScores(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("list typing: %w", err)
	}

	members := rangeCmd.Val()
	markers := make([]*store.TypingMarker, 0, len(members))
	for _, z := range members {
		userID, ok := z.Member.(string)
		if !ok {
			continue
		}
		markers = append(markers, markerFromScore(roomID, userID, z.Score))
	}
	return markers, nil
}

// Close closes the Redis client.
func (s *TypingStore) Close() error {
	return s.client.Close()
}

func markerFromScore(roomID, userID string, score float64) *store.TypingMarker {
	return &store.TypingMarker{
		RoomID:    roomID,
		UserID:    userID,
		IsTyping:  true,
		ExpiresAt: time.UnixMilli(int64(score)).UTC(),
	}
}
