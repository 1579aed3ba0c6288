package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ interfaces.TokenRepository = (*redisTokenRepository)(nil)

type redisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a new Redis-backed TokenRepository.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) interfaces.TokenRepository {
	return &redisTokenRepository{
		client: client,
		logger: logger.Named("RedisTokenRepo"),
	}
}

func accessKey(accessUUID string) string   { return "story:access:" + accessUUID }
func refreshKey(refreshUUID string) string { return "story:refresh:" + refreshUUID }
func userSetKey(userID uuid.UUID) string   { return "story:user_tokens:" + userID.String() }

// SetToken сохраняет пару UUID -> UserID с TTL токенов и добавляет их в набор пользователя.
func (r *redisTokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	now := time.Now()
	accessTTL := time.Unix(td.AtExpires, 0).Sub(now)
	refreshTTL := time.Unix(td.RtExpires, 0).Sub(now)
	userIDStr := userID.String()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, accessKey(td.AccessUUID), userIDStr, accessTTL)
	pipe.Set(ctx, refreshKey(td.RefreshUUID), userIDStr, refreshTTL)
	pipe.SAdd(ctx, userSetKey(userID), accessKey(td.AccessUUID), refreshKey(td.RefreshUUID))
	pipe.Expire(ctx, userSetKey(userID), refreshTTL)

	r.logger.Debug("Setting tokens in Redis",
		zap.String("userID", userIDStr),
		zap.String("accessUUID", td.AccessUUID),
		zap.String("refreshUUID", td.RefreshUUID),
		zap.Duration("accessTTL", accessTTL),
		zap.Duration("refreshTTL", refreshTTL),
	)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set token details in redis", zap.Error(err), zap.String("userID", userIDStr))
		return fmt.Errorf("failed to set token details in redis: %w", err)
	}
	return nil
}

// DeleteTokens удаляет переданные UUID (пустые пропускаются) и возвращает число удаленных ключей.
func (r *redisTokenRepository) DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) (int64, error) {
	var keys []string
	logFields := []zap.Field{zap.String("userID", userID.String())}
	if accessUUID != "" {
		keys = append(keys, accessKey(accessUUID))
		logFields = append(logFields, zap.String("accessUUID", accessUUID))
	}
	if refreshUUID != "" {
		keys = append(keys, refreshKey(refreshUUID))
		logFields = append(logFields, zap.String("refreshUUID", refreshUUID))
	}
	if len(keys) == 0 {
		r.logger.Warn("DeleteTokens called with no UUIDs")
		return 0, nil
	}

	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	pipe := r.client.TxPipeline()
	delCmd := pipe.Del(ctx, keys...)
	pipe.SRem(ctx, userSetKey(userID), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete tokens", append(logFields, zap.Error(err))...)
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}

	deleted, _ := delCmd.Result()
	r.logger.Info("Tokens deleted from Redis", append(logFields, zap.Int64("deletedCount", deleted))...)
	return deleted, nil
}

func (r *redisTokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	return r.lookup(ctx, accessKey(accessUUID))
}

func (r *redisTokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	return r.lookup(ctx, refreshKey(refreshUUID))
}

func (r *redisTokenRepository) lookup(ctx context.Context, key string) (uuid.UUID, error) {
	userIDStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Token not found in Redis", zap.String("key", key))
			return uuid.Nil, models.ErrTokenNotFound
		}
		r.logger.Error("Failed to get token from redis", zap.Error(err), zap.String("key", key))
		return uuid.Nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		// данные в Redis повреждены
		r.logger.Error("Failed to parse userID from redis", zap.Error(err), zap.String("key", key), zap.String("value", userIDStr))
		return uuid.Nil, fmt.Errorf("corrupted userID data in redis for %s: %w", key, err)
	}
	return userID, nil
}
