package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"story-server/internal/storygraph"

	"github.com/google/uuid"
)

// DraftSummary - строка списка черновиков.
type DraftSummary struct {
	ID         uuid.UUID
	Title      string
	Tags       []string
	PagesCount int
	SavedAt    time.Time
}

// SaveDraft заменяет черновик целиком в одной транзакции и проставляет SavedAt.
// Читатели видят либо старое, либо новое состояние страниц.
func (s *Store) SaveDraft(ctx context.Context, d *storygraph.Draft) error {
	// id страниц и выборов назначаются на копии и попадают в d только после commit
	draftID := d.ID
	if draftID == uuid.Nil {
		draftID = uuid.New()
	}
	pages := clonePages(d.Pages)
	savedAt := time.Now().UTC().Truncate(time.Millisecond)
	tags := storygraph.NormalizeTags(d.Tags)

	err := s.write(ctx, "save draft", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (id, title, description, cover_image_path, saved_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				cover_image_path = excluded.cover_image_path,
				saved_at = excluded.saved_at`,
			draftID.String(), d.Title, d.Description, d.CoverImagePath, toMillis(savedAt))
		if err != nil {
			return fmt.Errorf("upsert draft: %w", err)
		}

		// choices удаляются каскадом вместе со страницами
		if _, err := tx.ExecContext(ctx, `DELETE FROM draft_pages WHERE draft_id = ?`, draftID.String()); err != nil {
			return fmt.Errorf("delete draft pages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM draft_tags WHERE draft_id = ?`, draftID.String()); err != nil {
			return fmt.Errorf("delete draft tags: %w", err)
		}

		if err := ensureTags(ctx, tx, tags); err != nil {
			return err
		}
		for i, tag := range tags {
			if _, err := tx.ExecContext(ctx, `INSERT INTO draft_tags (draft_id, tag, position) VALUES (?, ?, ?)`,
				draftID.String(), tag, i); err != nil {
				return fmt.Errorf("insert draft tag: %w", err)
			}
		}

		for pi := range pages {
			page := &pages[pi]
			if page.ID == uuid.Nil {
				page.ID = uuid.New()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO draft_pages (id, draft_id, position, text, image_path, is_ending)
				VALUES (?, ?, ?, ?, ?, ?)`,
				page.ID.String(), draftID.String(), pi, page.Text, page.ImagePath, boolInt(page.IsEnding)); err != nil {
				return fmt.Errorf("insert draft page %d: %w", pi+1, err)
			}
			for ci := range page.Choices {
				choice := &page.Choices[ci]
				if choice.ID == uuid.Nil {
					choice.ID = uuid.New()
				}
				var target sql.NullInt64
				if idx, ok := choice.Target.Index(); ok {
					target = sql.NullInt64{Int64: int64(idx), Valid: true}
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO draft_choices (id, page_id, position, text, target_index)
					VALUES (?, ?, ?, ?, ?)`,
					choice.ID.String(), page.ID.String(), ci, choice.Text, target); err != nil {
					return fmt.Errorf("insert draft choice %d/%d: %w", pi+1, ci+1, err)
				}
			}
		}
		return nil
	}, s.publishDrafts)
	if err != nil {
		return err
	}

	d.ID = draftID
	d.Pages = pages
	d.Tags = tags
	d.SavedAt = savedAt
	s.logger.Debug().Str("draftID", d.ID.String()).Int("pages", len(d.Pages)).Msg("Draft saved")
	return nil
}

// GetDraft читает черновик со страницами и выборами в порядке позиций.
func (s *Store) GetDraft(ctx context.Context, id uuid.UUID) (*storygraph.Draft, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("get draft: begin", err)
	}
	defer tx.Rollback()

	d := storygraph.Draft{ID: id}
	var savedAt int64
	err = tx.QueryRowContext(ctx, `SELECT title, description, cover_image_path, saved_at FROM drafts WHERE id = ?`, id.String()).
		Scan(&d.Title, &d.Description, &d.CoverImagePath, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get draft", err)
	}
	d.SavedAt = fromMillis(savedAt)

	if d.Tags, err = queryStrings(ctx, tx, `SELECT tag FROM draft_tags WHERE draft_id = ? ORDER BY position`, id.String()); err != nil {
		return nil, storageErr("get draft tags", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT p.id, p.text, p.image_path, p.is_ending, c.id, c.text, c.target_index
		FROM draft_pages p
		LEFT JOIN draft_choices c ON c.page_id = p.id
		WHERE p.draft_id = ?
		ORDER BY p.position, c.position`, id.String())
	if err != nil {
		return nil, storageErr("get draft pages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pageID, choiceID, choiceText sql.NullString
			text, imagePath              string
			isEnding                     bool
			target                       sql.NullInt64
		)
		if err := rows.Scan(&pageID, &text, &imagePath, &isEnding, &choiceID, &choiceText, &target); err != nil {
			return nil, storageErr("scan draft page", err)
		}
		pid, err := uuid.Parse(pageID.String)
		if err != nil {
			return nil, storageErr("parse draft page id", err)
		}
		if n := len(d.Pages); n == 0 || d.Pages[n-1].ID != pid {
			d.Pages = append(d.Pages, storygraph.DraftPage{ID: pid, Text: text, ImagePath: imagePath, IsEnding: isEnding})
		}
		if !choiceID.Valid {
			continue
		}
		cid, err := uuid.Parse(choiceID.String)
		if err != nil {
			return nil, storageErr("parse draft choice id", err)
		}
		choice := storygraph.DraftChoice{ID: cid, Text: choiceText.String, Target: storygraph.NoTarget()}
		if target.Valid {
			choice.Target = storygraph.TargetPage(int(target.Int64))
		}
		page := &d.Pages[len(d.Pages)-1]
		page.Choices = append(page.Choices, choice)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate draft pages", err)
	}
	return &d, nil
}

// ListDrafts возвращает черновики, последние сохраненные первыми.
func (s *Store) ListDrafts(ctx context.Context) ([]DraftSummary, error) {
	if s.closed() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.saved_at,
			(SELECT COUNT(*) FROM draft_pages p WHERE p.draft_id = d.id),
			COALESCE((SELECT group_concat(tag, char(31)) FROM (SELECT tag FROM draft_tags t WHERE t.draft_id = d.id ORDER BY position)), '')
		FROM drafts d
		ORDER BY d.saved_at DESC, d.id`)
	if err != nil {
		return nil, storageErr("list drafts", err)
	}
	defer rows.Close()

	drafts := []DraftSummary{}
	for rows.Next() {
		var (
			ds      DraftSummary
			rawID   string
			savedAt int64
			tags    string
		)
		if err := rows.Scan(&rawID, &ds.Title, &savedAt, &ds.PagesCount, &tags); err != nil {
			return nil, storageErr("scan draft summary", err)
		}
		if ds.ID, err = uuid.Parse(rawID); err != nil {
			return nil, storageErr("parse draft id", err)
		}
		ds.SavedAt = fromMillis(savedAt)
		ds.Tags = splitTags(tags)
		drafts = append(drafts, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate drafts", err)
	}
	return drafts, nil
}

// DeleteDraft удаляет черновик вместе со страницами, выборами и тегами.
func (s *Store) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, "delete draft", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id.String())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("draft %s: %w", id, ErrNotFound)
		}
		return nil
	}, s.publishDrafts)
}

// WatchDrafts отдает текущий список черновиков и новый снимок после каждой записи.
// Канал закрывается при отмене ctx или Close.
func (s *Store) WatchDrafts(ctx context.Context) (<-chan []DraftSummary, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed() {
		return nil, ErrClosed
	}
	initial, err := s.ListDrafts(ctx)
	if err != nil {
		return nil, err
	}
	return s.drafts.subscribe(ctx, s.done, initial), nil
}

func (s *Store) publishDrafts(ctx context.Context) {
	if !s.drafts.hasSubscribers() {
		return
	}
	snapshot, err := s.ListDrafts(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build drafts snapshot")
		return
	}
	s.drafts.publish(snapshot)
}

func clonePages(src []storygraph.DraftPage) []storygraph.DraftPage {
	if src == nil {
		return nil
	}
	pages := make([]storygraph.DraftPage, len(src))
	for i, p := range src {
		if p.Choices != nil {
			p.Choices = append(make([]storygraph.DraftChoice, 0, len(p.Choices)), p.Choices...)
		}
		pages[i] = p
	}
	return pages
}
