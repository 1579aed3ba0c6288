// Package studio - сценарии storyctl поверх локального кэша и удаленного API:
// работа с черновиками, публикация и чтение историй.
package studio

import (
	"context"
	"errors"
	"fmt"

	"story-server/internal/client"
	"story-server/internal/localstore"
	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Remote - часть REST клиента, нужная студии.
type Remote interface {
	Publish(ctx context.Context, sub storygraph.Submission) (uuid.UUID, error)
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.StoryDetail, error)
	ListStories(ctx context.Context, q client.StoryQuery) (models.PaginatedResponse[models.StorySummary], error)
}

// Cache - локальное хранилище черновиков и опубликованных историй.
type Cache interface {
	SaveDraft(ctx context.Context, d *storygraph.Draft) error
	GetDraft(ctx context.Context, id uuid.UUID) (*storygraph.Draft, error)
	ListDrafts(ctx context.Context) ([]localstore.DraftSummary, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	PutStory(ctx context.Context, detail *models.StoryDetail) error
	GetStory(ctx context.Context, id uuid.UUID) (*models.StoryDetail, error)
	ListStories(ctx context.Context, tag string) ([]models.StorySummary, error)
	DeleteStory(ctx context.Context, id uuid.UUID) error
}

var (
	_ Remote = (*client.Client)(nil)
	_ Cache  = (*localstore.Store)(nil)
)

const defaultSyncParallelism = 4

// Report - результат проверки черновика. Problems блокируют публикацию,
// Warnings носят рекомендательный характер.
type Report struct {
	Problems []string
	Warnings []string
}

// OK сообщает, что черновик можно публиковать.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

// Studio - набор сценариев клиента.
type Studio struct {
	remote Remote
	cache  Cache
	logger zerolog.Logger
}

func New(remote Remote, cache Cache, logger zerolog.Logger) *Studio {
	return &Studio{
		remote: remote,
		cache:  cache,
		logger: logger.With().Str("component", "Studio").Logger(),
	}
}

// NewDraft создает и сохраняет пустой черновик с одной страницей.
func (s *Studio) NewDraft(ctx context.Context, title string) (*storygraph.Draft, error) {
	d := storygraph.NewDraft(title)
	d.Pages = []storygraph.DraftPage{storygraph.NewPage("")}
	if err := s.cache.SaveDraft(ctx, &d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("draftID", d.ID.String()).Msg("Draft created")
	return &d, nil
}

func (s *Studio) SaveDraft(ctx context.Context, d *storygraph.Draft) error {
	return s.cache.SaveDraft(ctx, d)
}

func (s *Studio) Draft(ctx context.Context, id uuid.UUID) (*storygraph.Draft, error) {
	return s.cache.GetDraft(ctx, id)
}

func (s *Studio) Drafts(ctx context.Context) ([]localstore.DraftSummary, error) {
	return s.cache.ListDrafts(ctx)
}

func (s *Studio) DiscardDraft(ctx context.Context, id uuid.UUID) error {
	return s.cache.DeleteDraft(ctx, id)
}

// Validate проверяет сохраненный черновик.
func (s *Studio) Validate(ctx context.Context, draftID uuid.UUID) (Report, error) {
	d, err := s.cache.GetDraft(ctx, draftID)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Problems: storygraph.Validate(*d),
		Warnings: storygraph.ReachabilityWarnings(*d),
	}, nil
}

// Publish отправляет черновик на сервер. Невалидный черновик не отправляется:
// возвращается *storygraph.ValidationError. После публикации черновик удаляется,
// а опубликованная история кэшируется. Ошибки этих шагов только логируются.
func (s *Studio) Publish(ctx context.Context, draftID uuid.UUID) (uuid.UUID, error) {
	log := s.logger.With().Str("draftID", draftID.String()).Logger()

	d, err := s.cache.GetDraft(ctx, draftID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := storygraph.Check(*d); err != nil {
		log.Info().Err(err).Msg("Draft rejected by validator")
		return uuid.Nil, err
	}

	storyID, err := s.remote.Publish(ctx, storygraph.ToSubmission(*d))
	if err != nil {
		log.Warn().Err(err).Msg("Publish failed")
		return uuid.Nil, fmt.Errorf("publish draft %s: %w", draftID, err)
	}
	log = log.With().Str("storyID", storyID.String()).Logger()
	log.Info().Msg("Draft published")

	if err := s.cache.DeleteDraft(ctx, draftID); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		log.Error().Err(err).Msg("Failed to delete published draft")
	}

	detail, err := s.remote.GetStory(ctx, storyID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch published story")
		return storyID, nil
	}
	if err := s.cache.PutStory(ctx, detail); err != nil {
		log.Error().Err(err).Msg("Failed to cache published story")
	}
	return storyID, nil
}

// OpenStory загружает историю с сервера и кэширует ее. При сетевой ошибке
// возвращается кэшированная копия, offline = true.
func (s *Studio) OpenStory(ctx context.Context, storyID uuid.UUID) (detail *models.StoryDetail, offline bool, err error) {
	detail, err = s.remote.GetStory(ctx, storyID)
	if err == nil {
		if cacheErr := s.cache.PutStory(ctx, detail); cacheErr != nil {
			s.logger.Error().Err(cacheErr).Str("storyID", storyID.String()).Msg("Failed to cache story")
		}
		return detail, false, nil
	}
	if !client.IsKind(err, client.KindNetwork) {
		return nil, false, err
	}

	cached, cacheErr := s.cache.GetStory(ctx, storyID)
	if cacheErr != nil {
		if !errors.Is(cacheErr, localstore.ErrNotFound) {
			s.logger.Error().Err(cacheErr).Str("storyID", storyID.String()).Msg("Failed to read cached story")
		}
		return nil, false, err
	}
	s.logger.Warn().Err(err).Str("storyID", storyID.String()).Msg("Serving cached story")
	return cached, true, nil
}

// Read начинает чтение истории с ее стартовой страницы.
func (s *Studio) Read(detail *models.StoryDetail) (*storygraph.Reader, error) {
	if detail == nil {
		return nil, storygraph.ErrEmptyStory
	}
	return storygraph.NewReader(&detail.Story)
}

// CachedStories - истории из локального кэша.
func (s *Studio) CachedStories(ctx context.Context, tag string) ([]models.StorySummary, error) {
	return s.cache.ListStories(ctx, tag)
}

func (s *Studio) ForgetStory(ctx context.Context, storyID uuid.UUID) error {
	return s.cache.DeleteStory(ctx, storyID)
}

// SyncCatalog загружает страницу каталога и кэширует каждую историю,
// не более parallelism запросов одновременно. Возвращает число закэшированных
// историй и курсор следующей страницы.
func (s *Studio) SyncCatalog(ctx context.Context, q client.StoryQuery, parallelism int) (int, string, error) {
	page, err := s.remote.ListStories(ctx, q)
	if err != nil {
		return 0, "", err
	}
	if parallelism <= 0 {
		parallelism = defaultSyncParallelism
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, sum := range page.Data {
		g.Go(func() error {
			detail, err := s.remote.GetStory(gctx, sum.ID)
			if err != nil {
				return fmt.Errorf("fetch story %s: %w", sum.ID, err)
			}
			return s.cache.PutStory(gctx, detail)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, "", err
	}
	s.logger.Debug().Int("stories", len(page.Data)).Msg("Catalog page cached")
	return len(page.Data), page.NextCursor, nil
}
