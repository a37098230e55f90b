package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"betledger/internal/auth"
	"betledger/internal/models"
	"betledger/internal/repository"
)

// AuthService owns registration, login and password management. The rest of
// the core never sees credentials; it only receives the resolved username.
type AuthService struct {
	Repo   repository.Repository
	JWT    auth.JWT
	Logger *zap.Logger

	ResetTokenTTL time.Duration
	BcryptCost    int
}

func (s *AuthService) bcryptCost() int {
	if s.BcryptCost < bcrypt.MinCost || s.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

func (s *AuthService) resetTokenTTL() time.Duration {
	if s.ResetTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return s.ResetTokenTTL
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if len(username) < 3 || len(username) > 20 {
		return nil, validationErrorf("username must be between 3 and 20 characters")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationErrorf("invalid email address")
	}
	if len(password) < 6 {
		return nil, validationErrorf("password must be at least 6 characters long")
	}

	if existing, err := s.Repo.GetUserByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, validationErrorf("username is already taken")
	}
	if existing, err := s.Repo.GetUserByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, validationErrorf("email is already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost())
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user registered", zap.Uint64("user_id", user.ID), zap.String("username", username))
	}
	return user, nil
}

// Login checks the credentials and mints a bearer token carrying the
// username as the authenticated identity.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, *models.User, error) {
	user, err := s.Repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", time.Time{}, nil, err
	}
	if user == nil {
		return "", time.Time{}, nil, authorizationErrorf("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, nil, authorizationErrorf("invalid username or password")
	}

	token, expiresAt, err := s.JWT.Sign(auth.Claims{Username: user.Username, UserID: user.ID})
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

func (s *AuthService) Profile(ctx context.Context, username string) (*models.User, error) {
	return resolveUser(ctx, s.Repo, username)
}

func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, err := resolveUser(ctx, s.Repo, username)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return validationErrorf("incorrect old password")
	}
	if len(newPassword) < 6 {
		return validationErrorf("password must be at least 6 characters long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost())
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return s.Repo.SaveUser(ctx, user)
}

// RequestPasswordReset issues a one-shot reset token for the account behind
// the email. Delivery (mail, etc.) is outside this service; the token is
// returned to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*models.PasswordResetToken, error) {
	user, err := s.Repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFoundErrorf("no account for that email")
	}
	token := &models.PasswordResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(s.resetTokenTTL()),
	}
	if err := s.Repo.CreateResetToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 6 {
		return validationErrorf("password must be at least 6 characters long")
	}
	item, err := s.Repo.GetResetToken(ctx, token)
	if err != nil {
		return err
	}
	if item == nil {
		return notFoundErrorf("reset token not found")
	}
	if item.Used {
		return invalidStateErrorf("reset token already used")
	}
	if time.Now().UTC().After(item.ExpiresAt) {
		return invalidStateErrorf("reset token expired")
	}
	user, err := s.Repo.GetUserByID(ctx, item.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return notFoundErrorf("user not found")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost())
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	if err := s.Repo.SaveUser(ctx, user); err != nil {
		return err
	}
	if err := s.Repo.MarkResetTokenUsed(ctx, item.ID); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("password reset", zap.Uint64("user_id", user.ID))
	}
	return nil
}

// PurgeStaleResetTokens drops expired and consumed tokens; wired to the cron
// runner.
func (s *AuthService) PurgeStaleResetTokens(ctx context.Context) (int64, error) {
	return s.Repo.DeleteStaleResetTokens(ctx, time.Now().UTC())
}
