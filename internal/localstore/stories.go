package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
)

// PutStory заменяет кэшированную историю целиком (last write wins).
func (s *Store) PutStory(ctx context.Context, detail *models.StoryDetail) error {
	st := &detail.Story
	if st.ID == uuid.Nil {
		return fmt.Errorf("%w: story id is required", ErrStorage)
	}
	tags := storygraph.NormalizeTags(st.Tags)

	return s.write(ctx, "put story", func(tx *sql.Tx) error {
		// каскад удаляет страницы, выборы и теги старой версии
		if _, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, st.ID.String()); err != nil {
			return fmt.Errorf("delete old story: %w", err)
		}

		var startPage sql.NullString
		if st.StartPageID != uuid.Nil {
			startPage = sql.NullString{String: st.StartPageID.String(), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stories (id, author_id, author_name, title, description, cover_url, start_page_id,
				likes_count, reviews_count, rating_avg, is_liked, created_at, updated_at, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.ID.String(), st.AuthorID.String(), detail.AuthorName, st.Title, st.Description, st.CoverURL, startPage,
			detail.LikesCount, detail.ReviewsCount, detail.RatingAvg, boolInt(detail.IsLiked),
			toMillis(st.CreatedAt), toMillis(st.UpdatedAt), toMillis(time.Now()))
		if err != nil {
			return fmt.Errorf("insert story: %w", err)
		}

		if err := ensureTags(ctx, tx, tags); err != nil {
			return err
		}
		for i, tag := range tags {
			if _, err := tx.ExecContext(ctx, `INSERT INTO story_tags (story_id, tag, position) VALUES (?, ?, ?)`,
				st.ID.String(), tag, i); err != nil {
				return fmt.Errorf("insert story tag: %w", err)
			}
		}

		for pi, page := range st.Pages {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO story_pages (id, story_id, position, text, image_url, is_ending)
				VALUES (?, ?, ?, ?, ?, ?)`,
				page.ID.String(), st.ID.String(), pi, page.Text, page.ImageURL, boolInt(page.IsEnding)); err != nil {
				return fmt.Errorf("insert story page %d: %w", pi+1, err)
			}
			for ci, choice := range page.Choices {
				var target sql.NullString
				if id, ok := choice.Target.PageID(); ok {
					target = sql.NullString{String: id.String(), Valid: true}
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO story_choices (id, page_id, position, text, target_page_id)
					VALUES (?, ?, ?, ?, ?)`,
					choice.ID.String(), page.ID.String(), ci, choice.Text, target); err != nil {
					return fmt.Errorf("insert story choice %d/%d: %w", pi+1, ci+1, err)
				}
			}
		}
		return nil
	}, s.publishStories)
}

// GetStory читает кэшированную историю.
func (s *Store) GetStory(ctx context.Context, id uuid.UUID) (*models.StoryDetail, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("get story: begin", err)
	}
	defer tx.Rollback()

	detail := models.StoryDetail{Story: storygraph.Story{ID: id}}
	st := &detail.Story
	var (
		authorID             string
		startPage            sql.NullString
		createdAt, updatedAt int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT author_id, author_name, title, description, cover_url, start_page_id,
			likes_count, reviews_count, rating_avg, is_liked, created_at, updated_at
		FROM stories WHERE id = ?`, id.String()).
		Scan(&authorID, &detail.AuthorName, &st.Title, &st.Description, &st.CoverURL, &startPage,
			&detail.LikesCount, &detail.ReviewsCount, &detail.RatingAvg, &detail.IsLiked, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get story", err)
	}
	if st.AuthorID, err = uuid.Parse(authorID); err != nil {
		return nil, storageErr("parse author id", err)
	}
	if startPage.Valid {
		if st.StartPageID, err = uuid.Parse(startPage.String); err != nil {
			return nil, storageErr("parse start page id", err)
		}
	}
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)

	if st.Tags, err = queryStrings(ctx, tx, `SELECT tag FROM story_tags WHERE story_id = ? ORDER BY position`, id.String()); err != nil {
		return nil, storageErr("get story tags", err)
	}
	if st.Tags == nil {
		st.Tags = []string{}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT p.id, p.text, p.image_url, p.is_ending, c.id, c.text, c.target_page_id
		FROM story_pages p
		LEFT JOIN story_choices c ON c.page_id = p.id
		WHERE p.story_id = ?
		ORDER BY p.position, c.position`, id.String())
	if err != nil {
		return nil, storageErr("get story pages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pageID, text, imageURL     string
			isEnding                   bool
			choiceID, choiceText, link sql.NullString
		)
		if err := rows.Scan(&pageID, &text, &imageURL, &isEnding, &choiceID, &choiceText, &link); err != nil {
			return nil, storageErr("scan story page", err)
		}
		pid, err := uuid.Parse(pageID)
		if err != nil {
			return nil, storageErr("parse story page id", err)
		}
		if n := len(st.Pages); n == 0 || st.Pages[n-1].ID != pid {
			st.Pages = append(st.Pages, storygraph.Page{
				ID: pid, StoryID: id, Text: text, ImageURL: imageURL, IsEnding: isEnding, Choices: []storygraph.Choice{},
			})
		}
		if !choiceID.Valid {
			continue
		}
		cid, err := uuid.Parse(choiceID.String)
		if err != nil {
			return nil, storageErr("parse story choice id", err)
		}
		choice := storygraph.Choice{ID: cid, PageID: pid, Text: choiceText.String, Target: storygraph.NoLink()}
		if link.Valid {
			target, err := uuid.Parse(link.String)
			if err != nil {
				return nil, storageErr("parse choice target", err)
			}
			choice.Target = storygraph.LinkTo(target)
		}
		page := &st.Pages[len(st.Pages)-1]
		page.Choices = append(page.Choices, choice)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate story pages", err)
	}
	return &detail, nil
}

// ListStories возвращает кэшированные истории, последние закэшированные первыми.
// Пустой tag не фильтрует.
func (s *Store) ListStories(ctx context.Context, tag string) ([]models.StorySummary, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.id, st.author_id, st.author_name, st.title, st.description, st.cover_url,
			st.likes_count, st.reviews_count, st.rating_avg, st.created_at,
			(SELECT COUNT(*) FROM story_pages p WHERE p.story_id = st.id),
			COALESCE((SELECT group_concat(tag, char(31)) FROM (SELECT tag FROM story_tags t WHERE t.story_id = st.id ORDER BY position)), '')
		FROM stories st
		WHERE ? = '' OR EXISTS (SELECT 1 FROM story_tags t WHERE t.story_id = st.id AND t.tag = ?)
		ORDER BY st.cached_at DESC, st.id`, tag, tag)
	if err != nil {
		return nil, storageErr("list stories", err)
	}
	defer rows.Close()

	stories := []models.StorySummary{}
	for rows.Next() {
		var (
			sum             models.StorySummary
			rawID, authorID string
			createdAt       int64
			tags            string
		)
		if err := rows.Scan(&rawID, &authorID, &sum.AuthorName, &sum.Title, &sum.Description, &sum.CoverURL,
			&sum.LikesCount, &sum.ReviewsCount, &sum.RatingAvg, &createdAt, &sum.PagesCount, &tags); err != nil {
			return nil, storageErr("scan story summary", err)
		}
		if sum.ID, err = uuid.Parse(rawID); err != nil {
			return nil, storageErr("parse story id", err)
		}
		if sum.AuthorID, err = uuid.Parse(authorID); err != nil {
			return nil, storageErr("parse author id", err)
		}
		sum.CreatedAt = fromMillis(createdAt)
		sum.Tags = splitTags(tags)
		stories = append(stories, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate stories", err)
	}
	return stories, nil
}

// DeleteStory удаляет историю из кэша. Отсутствие истории не ошибка.
func (s *Store) DeleteStory(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, "delete story", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id.String())
		return err
	}, s.publishStories)
}

// WatchStories отдает текущий список кэшированных историй и новый снимок после
// каждой записи.
func (s *Store) WatchStories(ctx context.Context) (<-chan []models.StorySummary, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed() {
		return nil, ErrClosed
	}
	initial, err := s.ListStories(ctx, "")
	if err != nil {
		return nil, err
	}
	return s.stories.subscribe(ctx, s.done, initial), nil
}

func (s *Store) publishStories(ctx context.Context) {
	if !s.stories.hasSubscribers() {
		return
	}
	snapshot, err := s.ListStories(ctx, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build stories snapshot")
		return
	}
	s.stories.publish(snapshot)
}

func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const tagSeparator = "\x1f"

func splitTags(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, tagSeparator)
}
