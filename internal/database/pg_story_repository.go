package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/storygraph"
	"story-server/internal/utils"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// pgStoryRepository реализует StoryRepository для PostgreSQL.
type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// Compile-time check
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

// NewPgStoryRepository создает новый экземпляр репозитория историй.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

const summaryColumns = `
	s.id, s.author_id, COALESCE(NULLIF(u.display_name, ''), u.username) AS author_name,
	s.title, s.description, s.cover_url,
	COALESCE((SELECT array_agg(t.name ORDER BY t.name) FROM story_tags st JOIN tags t ON t.id = st.tag_id WHERE st.story_id = s.id), '{}') AS tags,
	(SELECT COUNT(*) FROM pages p WHERE p.story_id = s.id) AS pages_count,
	s.likes_count, s.reviews_count,
	CASE WHEN s.reviews_count > 0 THEN s.rating_sum::float8 / s.reviews_count ELSE 0 END AS rating_avg,
	s.created_at`

// Create сохраняет историю целиком: строку истории, теги, страницы и выборы.
func (r *pgStoryRepository) Create(ctx context.Context, story *storygraph.Story) error {
	logFields := []zap.Field{
		zap.String("storyID", story.ID.String()),
		zap.String("authorID", story.AuthorID.String()),
		zap.Int("pages", len(story.Pages)),
	}
	r.logger.Debug("Creating story", logFields...)

	err := WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var startPage *uuid.UUID
		if story.StartPageID != uuid.Nil {
			startPage = &story.StartPageID
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO stories (id, author_id, title, description, cover_url, start_page_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			story.ID, story.AuthorID, story.Title, story.Description, story.CoverURL, startPage, story.CreatedAt, story.UpdatedAt)
		if err != nil {
			if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
				return fmt.Errorf("author %s: %w", story.AuthorID, models.ErrUserNotFound)
			}
			return fmt.Errorf("failed to insert story: %w", err)
		}

		if len(story.Tags) > 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO tags (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`, pq.Array(story.Tags)); err != nil {
				return fmt.Errorf("failed to upsert tags: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO story_tags (story_id, tag_id) SELECT $1, id FROM tags WHERE name = ANY($2::text[])`, story.ID, pq.Array(story.Tags)); err != nil {
				return fmt.Errorf("failed to link tags: %w", err)
			}
		}

		// Страницы вставляются раньше выборов: target_page_id ссылается на pages.
		batch := &pgx.Batch{}
		for i, page := range story.Pages {
			batch.Queue(`INSERT INTO pages (id, story_id, position, text, image_url, is_ending) VALUES ($1, $2, $3, $4, $5, $6)`,
				page.ID, story.ID, i, page.Text, page.ImageURL, page.IsEnding)
		}
		for _, page := range story.Pages {
			for j, choice := range page.Choices {
				var target *uuid.UUID
				if id, ok := choice.Target.PageID(); ok {
					target = &id
				}
				batch.Queue(`INSERT INTO choices (id, page_id, position, text, target_page_id) VALUES ($1, $2, $3, $4, $5)`,
					choice.ID, page.ID, j, choice.Text, target)
			}
		}
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert story graph (statement %d): %w", i, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return err
	}

	r.logger.Info("Story created", logFields...)
	return nil
}

type pageRow struct {
	ID       uuid.UUID `db:"id"`
	Text     string    `db:"text"`
	ImageURL string    `db:"image_url"`
	IsEnding bool      `db:"is_ending"`
}

type choiceRow struct {
	ID           uuid.UUID  `db:"id"`
	PageID       uuid.UUID  `db:"page_id"`
	Text         string     `db:"text"`
	TargetPageID *uuid.UUID `db:"target_page_id"`
}

type storyRow struct {
	models.StorySummary
	StartPageID *uuid.UUID `db:"start_page_id"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// GetByID возвращает историю с полным графом страниц.
func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryDetail, error) {
	log := r.logger.With(zap.String("storyID", id.String()))

	var row storyRow
	query := `SELECT ` + summaryColumns + `, s.start_page_id, s.updated_at
		FROM stories s JOIN users u ON u.id = s.author_id
		WHERE s.id = $1`
	if err := pgxscan.Get(ctx, r.db, &row, query, id); err != nil {
		if pgxscan.NotFound(err) {
			log.Debug("Story not found")
			return nil, models.ErrStoryNotFound
		}
		log.Error("Failed to get story", zap.Error(err))
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}

	var pages []pageRow
	if err := pgxscan.Select(ctx, r.db, &pages,
		`SELECT id, text, image_url, is_ending FROM pages WHERE story_id = $1 ORDER BY position`, id); err != nil {
		log.Error("Failed to get story pages", zap.Error(err))
		return nil, fmt.Errorf("failed to get pages of story %s: %w", id, err)
	}

	var choices []choiceRow
	if err := pgxscan.Select(ctx, r.db, &choices, `
		SELECT c.id, c.page_id, c.text, c.target_page_id
		FROM choices c JOIN pages p ON p.id = c.page_id
		WHERE p.story_id = $1
		ORDER BY p.position, c.position`, id); err != nil {
		log.Error("Failed to get story choices", zap.Error(err))
		return nil, fmt.Errorf("failed to get choices of story %s: %w", id, err)
	}

	story := storygraph.Story{
		ID:          row.ID,
		AuthorID:    row.AuthorID,
		Title:       row.Title,
		Description: row.Description,
		Tags:        row.Tags,
		CoverURL:    row.CoverURL,
		Pages:       make([]storygraph.Page, len(pages)),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.StartPageID != nil {
		story.StartPageID = *row.StartPageID
	}
	pageIndex := make(map[uuid.UUID]int, len(pages))
	for i, p := range pages {
		pageIndex[p.ID] = i
		story.Pages[i] = storygraph.Page{
			ID:       p.ID,
			StoryID:  row.ID,
			Text:     p.Text,
			ImageURL: p.ImageURL,
			IsEnding: p.IsEnding,
			Choices:  []storygraph.Choice{},
		}
	}
	for _, c := range choices {
		i, ok := pageIndex[c.PageID]
		if !ok {
			continue
		}
		target := storygraph.NoLink()
		if c.TargetPageID != nil {
			target = storygraph.LinkTo(*c.TargetPageID)
		}
		story.Pages[i].Choices = append(story.Pages[i].Choices, storygraph.Choice{
			ID:     c.ID,
			PageID: c.PageID,
			Text:   c.Text,
			Target: target,
		})
	}

	return &models.StoryDetail{
		Story:        story,
		AuthorName:   row.AuthorName,
		LikesCount:   row.LikesCount,
		ReviewsCount: row.ReviewsCount,
		RatingAvg:    row.RatingAvg,
	}, nil
}

// List возвращает страницу каталога, отсортированную от новых к старым.
func (r *pgStoryRepository) List(ctx context.Context, filter models.StoryFilter, cursor string, limit int) ([]models.StorySummary, string, error) {
	logFields := []zap.Field{
		zap.String("tag", filter.Tag),
		zap.String("query", filter.Query),
		zap.String("cursor", cursor),
		zap.Int("limit", limit),
	}
	r.logger.Debug("Listing stories", logFields...)

	cursorTime, cursorID, err := utils.DecodeCursor(cursor)
	if err != nil {
		r.logger.Warn("Invalid cursor", append(logFields, zap.Error(err))...)
		return nil, "", fmt.Errorf("%w: invalid cursor: %v", models.ErrInvalidInput, err)
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM story_tags st JOIN tags t ON t.id = st.tag_id WHERE st.story_id = s.id AND t.name = `+arg(strings.ToLower(filter.Tag))+`)`)
	}
	if filter.AuthorID != uuid.Nil {
		conds = append(conds, `s.author_id = `+arg(filter.AuthorID))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg(q)
		conds = append(conds, `(s.title ILIKE '%' || `+p+` || '%' OR s.description ILIKE '%' || `+p+` || '%')`)
	}
	if cursorID != uuid.Nil {
		conds = append(conds, `(s.created_at, s.id) < (`+arg(cursorTime)+`, `+arg(cursorID)+`)`)
	}

	query := `SELECT ` + summaryColumns + ` FROM stories s JOIN users u ON u.id = s.author_id`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC LIMIT ` + arg(limit+1)

	var stories []models.StorySummary
	if err := pgxscan.Select(ctx, r.db, &stories, query, args...); err != nil {
		r.logger.Error("Failed to list stories", append(logFields, zap.Error(err))...)
		return nil, "", fmt.Errorf("failed to list stories: %w", err)
	}

	var nextCursor string
	if len(stories) > limit {
		last := stories[limit-1]
		nextCursor = utils.EncodeCursor(last.CreatedAt, last.ID)
		stories = stories[:limit]
	}
	return stories, nextCursor, nil
}

// ListByIDs возвращает сводки историй в порядке ids; отсутствующие пропускаются.
func (r *pgStoryRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.StorySummary, error) {
	if len(ids) == 0 {
		return []models.StorySummary{}, nil
	}
	var rows []models.StorySummary
	query := `SELECT ` + summaryColumns + ` FROM stories s JOIN users u ON u.id = s.author_id WHERE s.id = ANY($1)`
	if err := pgxscan.Select(ctx, r.db, &rows, query, ids); err != nil {
		r.logger.Error("Failed to list stories by ids", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories by ids: %w", err)
	}
	byID := make(map[uuid.UUID]models.StorySummary, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}
	out := make([]models.StorySummary, 0, len(rows))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Delete удаляет историю; страницы, выборы, теги, отзывы и лайки удаляются каскадно.
func (r *pgStoryRepository) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	logFields := []zap.Field{zap.String("storyID", id.String()), zap.String("authorID", authorID.String())}
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		r.logger.Error("Failed to delete story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Story not found for deletion", logFields...)
		return models.ErrStoryNotFound
	}
	r.logger.Info("Story deleted", logFields...)
	return nil
}

// GetAuthorID возвращает ID автора истории.
func (r *pgStoryRepository) GetAuthorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var authorID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT author_id FROM stories WHERE id = $1`, id).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, models.ErrStoryNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get story author: %w", err)
	}
	return authorID, nil
}

// ListTags возвращает теги, у которых есть хотя бы одна история.
func (r *pgStoryRepository) ListTags(ctx context.Context) ([]models.TagCount, error) {
	tags := []models.TagCount{}
	err := pgxscan.Select(ctx, r.db, &tags, `
		SELECT t.name, COUNT(st.story_id) AS stories
		FROM tags t JOIN story_tags st ON st.tag_id = t.id
		GROUP BY t.name
		ORDER BY stories DESC, t.name`)
	if err != nil {
		r.logger.Error("Failed to list tags", zap.Error(err))
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}
