package database

import (
	"context"
	"fmt"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type pgUserRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

var _ interfaces.UserRepository = (*pgUserRepository)(nil)

// NewPgUserRepository создает репозиторий пользователей.
func NewPgUserRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.UserRepository {
	return &pgUserRepository{
		db:     db,
		logger: logger.Named("PgUserRepo"),
	}
}

const userColumns = `id, username, email, password_hash, display_name, signature, avatar_url, roles, is_banned, created_at, updated_at`

func (r *pgUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if len(user.Roles) == 0 {
		user.Roles = []string{models.RoleUser}
	}
	logFields := []zap.Field{zap.String("userID", user.ID.String()), zap.String("username", user.Username)}

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, display_name, roles)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.DisplayName, user.Roles,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if code, constraint := pgErrorCode(err); code == pgUniqueViolation {
			r.logger.Warn("User uniqueness violation", append(logFields, zap.String("constraint", constraint))...)
			if constraint == "users_email_key" {
				return models.ErrEmailAlreadyExists
			}
			return models.ErrUserAlreadyExists
		}
		r.logger.Error("Failed to create user", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("User created", logFields...)
	return nil
}

func (r *pgUserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := pgxscan.Get(ctx, r.db, &user, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user", zap.String("where", where), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *pgUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *pgUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *pgUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

// UpdateProfile обновляет только переданные (не nil) поля профиля.
func (r *pgUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	err := pgxscan.Get(ctx, r.db, &user, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			signature    = COALESCE($3, signature),
			avatar_url   = COALESCE($4, avatar_url),
			updated_at   = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, update.DisplayName, update.Signature, update.AvatarURL)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to update profile", zap.String("userID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	r.logger.Info("Profile updated", zap.String("userID", id.String()))
	return &user, nil
}
