package database

import (
	"context"
	"errors"
	"fmt"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/utils"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// pgReviewRepository реализует ReviewRepository для PostgreSQL.
type pgReviewRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

var _ interfaces.ReviewRepository = (*pgReviewRepository)(nil)

// NewPgReviewRepository создает репозиторий отзывов.
func NewPgReviewRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ReviewRepository {
	return &pgReviewRepository{
		db:     db,
		logger: logger.Named("PgReviewRepo"),
	}
}

// Create сохраняет отзыв и обновляет агрегаты рейтинга истории в одной транзакции.
func (r *pgReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	logFields := []zap.Field{
		zap.String("reviewID", review.ID.String()),
		zap.String("storyID", review.StoryID.String()),
		zap.String("userID", review.UserID.String()),
	}

	err := WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO reviews (id, story_id, user_id, rating, text)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			review.ID, review.StoryID, review.UserID, review.Rating, review.Text,
		).Scan(&review.CreatedAt)
		if err != nil {
			switch code, _ := pgErrorCode(err); code {
			case pgUniqueViolation:
				return models.ErrAlreadyReviewed
			case pgForeignKeyViolation:
				return models.ErrStoryNotFound
			}
			return fmt.Errorf("failed to insert review: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE stories SET reviews_count = reviews_count + 1, rating_sum = rating_sum + $2
			WHERE id = $1`, review.StoryID, review.Rating)
		if err != nil {
			return fmt.Errorf("failed to update story rating: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyReviewed) || errors.Is(err, models.ErrStoryNotFound) {
			r.logger.Warn("Review rejected", append(logFields, zap.Error(err))...)
		} else {
			r.logger.Error("Failed to create review", append(logFields, zap.Error(err))...)
		}
		return err
	}

	r.logger.Info("Review created", logFields...)
	return nil
}

// ListByStory возвращает отзывы истории от новых к старым.
func (r *pgReviewRepository) ListByStory(ctx context.Context, storyID uuid.UUID, cursor string, limit int) ([]models.Review, string, error) {
	cursorTime, cursorID, err := utils.DecodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid cursor: %v", models.ErrInvalidInput, err)
	}

	query := `
		SELECT rv.id, rv.story_id, rv.user_id, COALESCE(NULLIF(u.display_name, ''), u.username) AS author_name,
		       rv.rating, rv.text, rv.created_at
		FROM reviews rv JOIN users u ON u.id = rv.user_id
		WHERE rv.story_id = $1`
	args := []any{storyID}
	if cursorID != uuid.Nil {
		query += ` AND (rv.created_at, rv.id) < ($2, $3)`
		args = append(args, cursorTime, cursorID)
	}
	query += fmt.Sprintf(` ORDER BY rv.created_at DESC, rv.id DESC LIMIT %d`, limit+1)

	reviews := []models.Review{}
	if err := pgxscan.Select(ctx, r.db, &reviews, query, args...); err != nil {
		r.logger.Error("Failed to list reviews", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, "", fmt.Errorf("failed to list reviews: %w", err)
	}

	var next string
	if len(reviews) > limit {
		last := reviews[limit-1]
		next = utils.EncodeCursor(last.CreatedAt, last.ID)
		reviews = reviews[:limit]
	}
	return reviews, next, nil
}

func (r *pgReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := pgxscan.Get(ctx, r.db, &review, `
		SELECT rv.id, rv.story_id, rv.user_id, COALESCE(NULLIF(u.display_name, ''), u.username) AS author_name,
		       rv.rating, rv.text, rv.created_at
		FROM reviews rv JOIN users u ON u.id = rv.user_id
		WHERE rv.id = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &review, nil
}

// Delete удаляет отзыв и вычитает его из агрегатов истории.
func (r *pgReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			storyID uuid.UUID
			rating  int
		)
		err := tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING story_id, rating`, id).Scan(&storyID, &rating)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrReviewNotFound
			}
			return fmt.Errorf("failed to delete review: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE stories SET reviews_count = GREATEST(reviews_count - 1, 0), rating_sum = GREATEST(rating_sum - $2, 0)
			WHERE id = $1`, storyID, rating)
		if err != nil {
			return fmt.Errorf("failed to update story rating: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, models.ErrReviewNotFound) {
			r.logger.Error("Failed to delete review", zap.String("reviewID", id.String()), zap.Error(err))
		}
		return err
	}
	r.logger.Info("Review deleted", zap.String("reviewID", id.String()))
	return nil
}
