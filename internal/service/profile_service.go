package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type profileServiceImpl struct {
	userRepo interfaces.UserRepository
	logger   *zap.Logger
}

// NewProfileService создает сервис профилей.
func NewProfileService(userRepo interfaces.UserRepository, logger *zap.Logger) ProfileService {
	return &profileServiceImpl{
		userRepo: userRepo,
		logger:   logger.Named("ProfileService"),
	}
}

func (s *profileServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

func (s *profileServiceImpl) GetPublicProfile(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	return &profile, nil
}

// UpdateProfile нормализует и проверяет поля, затем сохраняет непустые.
func (s *profileServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	log := s.logger.With(zap.String("userID", userID.String()))

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if utf8.RuneCountInString(name) > models.MaxDisplayName {
			return nil, fmt.Errorf("%w: display name must be at most %d characters", models.ErrInvalidInput, models.MaxDisplayName)
		}
		update.DisplayName = &name
	}
	if update.Signature != nil {
		sig := strings.TrimSpace(*update.Signature)
		if utf8.RuneCountInString(sig) > models.MaxSignatureLen {
			return nil, fmt.Errorf("%w: signature must be at most %d characters", models.ErrInvalidInput, models.MaxSignatureLen)
		}
		update.Signature = &sig
	}
	if update.AvatarURL != nil {
		avatar := strings.TrimSpace(*update.AvatarURL)
		// пустая строка убирает аватар
		if avatar != "" && !isHTTPURL(avatar) {
			return nil, fmt.Errorf("%w: avatar must be an absolute http(s) URL", models.ErrInvalidInput)
		}
		update.AvatarURL = &avatar
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, update)
	if err != nil {
		log.Warn("Profile update failed", zap.Error(err))
		return nil, err
	}
	log.Info("Profile updated")
	return user, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
