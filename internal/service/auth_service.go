package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"story-server/internal/authutils"
	"story-server/internal/config"
	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var _ AuthService = (*authServiceImpl)(nil)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type authServiceImpl struct {
	userRepo  interfaces.UserRepository
	tokenRepo interfaces.TokenRepository
	verifier  *authutils.JWTVerifier
	cfg       *config.Config
	logger    *zap.Logger
}

// NewAuthService creates a new instance of authServiceImpl.
func NewAuthService(
	userRepo interfaces.UserRepository,
	tokenRepo interfaces.TokenRepository,
	verifier *authutils.JWTVerifier,
	cfg *config.Config,
	logger *zap.Logger,
) AuthService {
	return &authServiceImpl{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		verifier:  verifier,
		cfg:       cfg,
		logger:    logger.Named("AuthService"),
	}
}

// ValidateUsername проверяет длину (3-30) и допустимые символы имени пользователя.
func ValidateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < 3 || n > 30 {
		return fmt.Errorf("%w: username must be between 3 and 30 characters", models.ErrInvalidInput)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("%w: username may contain only letters, digits, '_' and '-'", models.ErrInvalidInput)
	}
	return nil
}

// ValidatePassword требует 8-100 символов, хотя бы одну букву и одну цифру.
func ValidatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < 8 || n > 100 {
		return fmt.Errorf("%w: password must be between 8 and 100 characters", models.ErrInvalidInput)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain at least one letter and one digit", models.ErrInvalidInput)
	}
	return nil
}

// Register creates a new user.
func (s *authServiceImpl) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	logFields := []zap.Field{zap.String("username", username), zap.String("email", email)}
	s.logger.Info("Registering new user", logFields...)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		s.logger.Warn("Registration attempt with invalid email format", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: invalid email format", models.ErrInvalidInput)
	}

	hashedPassword, err := hashPassword(password, s.cfg.PasswordPepper)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{models.RoleUser},
	}
	// Уникальность проверяет база: репозиторий вернет ErrUserAlreadyExists/ErrEmailAlreadyExists.
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, models.ErrUserAlreadyExists) && !errors.Is(err, models.ErrEmailAlreadyExists) {
			s.logger.Error("Failed to create user via repository", append(logFields, zap.Error(err))...)
		}
		return nil, err
	}

	s.logger.Info("User registered successfully", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	return user, nil
}

// Login authenticates a user and returns token details.
func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	s.logger.Info("Login attempt", zap.String("username", username))
	user, err := s.userRepo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("Login failed: user not found", zap.String("username", username))
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("Login failed: error getting user from repository", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !checkPasswordHash(password, user.PasswordHash, s.cfg.PasswordPepper) {
		s.logger.Warn("Login failed: invalid password", zap.String("userID", user.ID.String()))
		return nil, models.ErrInvalidCredentials
	}
	if user.IsBanned {
		s.logger.Warn("Login failed: user is banned", zap.String("userID", user.ID.String()))
		return nil, models.ErrUserBanned
	}

	td, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in successfully", zap.String("userID", user.ID.String()))
	return td, nil
}

// Logout removes the access and refresh tokens from the store.
func (s *authServiceImpl) Logout(ctx context.Context, userID uuid.UUID, accessUUID, refreshToken string) error {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("accessUUID", accessUUID))

	var refreshUUID string
	if refreshToken != "" {
		claims, err := s.verifier.VerifyToken(ctx, refreshToken)
		switch {
		case err != nil:
			log.Debug("Ignoring unusable refresh token on logout", zap.Error(err))
		case claims.UserID != userID:
			log.Warn("Refresh token on logout belongs to another user")
		default:
			refreshUUID = claims.ID
		}
	}

	deletedCount, err := s.tokenRepo.DeleteTokens(ctx, userID, accessUUID, refreshUUID)
	if err != nil {
		// токены могли уже истечь, клиенту ошибку не отдаем
		log.Error("Failed to delete tokens during logout", zap.Error(err))
		return nil
	}
	log.Info("User logged out", zap.Int64("deletedCount", deletedCount))
	return nil
}

// Refresh issues new access and refresh tokens based on a valid refresh token.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	s.logger.Info("Token refresh attempt")
	claims, err := s.verifier.VerifyToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	refreshUUID := claims.ID
	log := s.logger.With(zap.String("userID", claims.UserID.String()), zap.String("refreshUUID", refreshUUID))

	userID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, refreshUUID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			log.Warn("Refresh attempt with revoked token")
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("error checking refresh token existence: %w", err)
	}
	if userID != claims.UserID {
		log.Error("Refresh token user ID mismatch", zap.String("storedUserID", userID.String()))
		return nil, models.ErrTokenInvalid
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsBanned {
		log.Warn("Refresh denied: user is banned")
		return nil, models.ErrUserBanned
	}

	if _, err := s.tokenRepo.DeleteTokens(ctx, userID, "", refreshUUID); err != nil {
		log.Error("Non-critical: failed to delete old refresh token", zap.Error(err))
	}
	td, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	log.Info("Token refreshed successfully")
	return td, nil
}

// VerifyAccessToken проверяет подпись и наличие access UUID в хранилище.
func (s *authServiceImpl) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	claims, err := s.verifier.VerifyToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := s.tokenRepo.GetUserIDByAccessUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			s.logger.Debug("Access token not found in store (revoked/logged out)", zap.String("accessUUID", claims.ID))
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("error checking access token existence: %w", err)
	}
	if userID != claims.UserID {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

func (s *authServiceImpl) issueTokens(ctx context.Context, user *models.User) (*models.TokenDetails, error) {
	accessUUID := uuid.NewString()
	refreshUUID := uuid.NewString()
	accessClaims := authutils.NewClaims(user.ID, user.Roles, accessUUID, s.cfg.AccessTokenTTL)
	refreshClaims := authutils.NewClaims(user.ID, user.Roles, refreshUUID, s.cfg.RefreshTokenTTL)

	accessToken, err := s.verifier.Sign(accessClaims)
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.String("userID", user.ID.String()), zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.verifier.Sign(refreshClaims)
	if err != nil {
		s.logger.Error("Failed to sign refresh token", zap.String("userID", user.ID.String()), zap.Error(err))
		return nil, err
	}

	td := &models.TokenDetails{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessUUID:   accessUUID,
		RefreshUUID:  refreshUUID,
		AtExpires:    accessClaims.ExpiresAt.Unix(),
		RtExpires:    refreshClaims.ExpiresAt.Unix(),
	}
	if err := s.tokenRepo.SetToken(ctx, user.ID, td); err != nil {
		s.logger.Error("Failed to save token details", zap.String("userID", user.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to save token details: %w", err)
	}
	return td, nil
}

// applyPepper применяет перец к паролю через HMAC-SHA256.
func applyPepper(password, pepper string) []byte {
	h := hmac.New(sha256.New, []byte(pepper))
	h.Write([]byte(password))
	return h.Sum(nil)
}

// hashPassword generates a bcrypt hash of the password after applying the pepper.
func hashPassword(password, pepper string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(applyPepper(password, pepper), bcrypt.DefaultCost)
	return string(bytes), err
}

// checkPasswordHash compares a plain text password (after applying pepper) with a stored hash.
func checkPasswordHash(password, hash, pepper string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), applyPepper(password, pepper)) == nil
}
