package database

import (
	"context"
	"fmt"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// pgLikeRepository реализует интерфейс LikeRepository для PostgreSQL.
type pgLikeRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

var _ interfaces.LikeRepository = (*pgLikeRepository)(nil)

// NewPgLikeRepository создает новый экземпляр репозитория лайков.
func NewPgLikeRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.LikeRepository {
	return &pgLikeRepository{
		db:     db,
		logger: logger.Named("PgLikeRepo"),
	}
}

// AddLike добавляет запись о лайке и увеличивает счетчик истории.
func (r *pgLikeRepository) AddLike(ctx context.Context, userID, storyID uuid.UUID) error {
	logFields := []zap.Field{
		zap.String("userID", userID.String()),
		zap.String("storyID", storyID.String()),
	}
	r.logger.Debug("Adding like record", logFields...)

	err := WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO story_likes (user_id, story_id) VALUES ($1, $2)`, userID, storyID)
		if err != nil {
			switch code, _ := pgErrorCode(err); code {
			case pgUniqueViolation: // лайк уже существует
				return models.ErrLikeAlreadyExists
			case pgForeignKeyViolation: // история не найдена
				return models.ErrStoryNotFound
			}
			return fmt.Errorf("failed to add like: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE stories SET likes_count = likes_count + 1 WHERE id = $1`, storyID); err != nil {
			return fmt.Errorf("failed to increment likes: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("Like not added", append(logFields, zap.Error(err))...)
		return err
	}

	r.logger.Info("Like record added successfully", logFields...)
	return nil
}

// RemoveLike удаляет запись о лайке и уменьшает счетчик истории.
func (r *pgLikeRepository) RemoveLike(ctx context.Context, userID, storyID uuid.UUID) error {
	logFields := []zap.Field{
		zap.String("userID", userID.String()),
		zap.String("storyID", storyID.String()),
	}

	err := WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM story_likes WHERE user_id = $1 AND story_id = $2`, userID, storyID)
		if err != nil {
			return fmt.Errorf("failed to remove like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrLikeNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE stories SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1`, storyID); err != nil {
			return fmt.Errorf("failed to decrement likes: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("Like not removed", append(logFields, zap.Error(err))...)
		return err
	}

	r.logger.Info("Like record removed successfully", logFields...)
	return nil
}

// CheckLike проверяет, лайкнул ли пользователь историю.
func (r *pgLikeRepository) CheckLike(ctx context.Context, userID, storyID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM story_likes WHERE user_id = $1 AND story_id = $2)`,
		userID, storyID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check like existence", zap.String("userID", userID.String()), zap.String("storyID", storyID.String()), zap.Error(err))
		return false, fmt.Errorf("failed to check like existence: %w", err)
	}
	return exists, nil
}

// ListLikedStoryIDs возвращает ID лайкнутых историй, от последних лайков к первым.
func (r *pgLikeRepository) ListLikedStoryIDs(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]uuid.UUID, string, error) {
	cursorTime, cursorID, err := utils.DecodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid cursor: %v", models.ErrInvalidInput, err)
	}

	query := `SELECT story_id, created_at FROM story_likes WHERE user_id = $1`
	args := []any{userID}
	if cursorID != uuid.Nil {
		query += ` AND (created_at, story_id) < ($2, $3)`
		args = append(args, cursorTime, cursorID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, story_id DESC LIMIT %d`, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list liked stories", zap.String("userID", userID.String()), zap.Error(err))
		return nil, "", fmt.Errorf("failed to list liked stories: %w", err)
	}
	defer rows.Close()

	type likeRow struct {
		storyID   uuid.UUID
		createdAt time.Time
	}
	var likes []likeRow
	for rows.Next() {
		var row likeRow
		if err := rows.Scan(&row.storyID, &row.createdAt); err != nil {
			return nil, "", fmt.Errorf("failed to scan like: %w", err)
		}
		likes = append(likes, row)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate likes: %w", err)
	}

	var next string
	if len(likes) > limit {
		last := likes[limit-1]
		next = utils.EncodeCursor(last.createdAt, last.storyID)
		likes = likes[:limit]
	}
	ids := make([]uuid.UUID, len(likes))
	for i, l := range likes {
		ids[i] = l.storyID
	}
	return ids, next, nil
}
