package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"imageupdater/internal/apperr"
	"imageupdater/internal/models"
)

var (
	ErrBadPassword   = errors.New("invalid password")
	ErrNoSession     = errors.New("session not found or expired")
	ErrNotConfigured = errors.New("no gate password configured")
)

// Service issues and checks gate sessions. The password is held as a bcrypt
// hash; tokens are stored as their sha256.
type Service struct {
	db           *gorm.DB
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewService accepts either a bcrypt hash or a plain password, which is
// hashed once at startup.
func NewService(db *gorm.DB, passwordHash, password string, ttl time.Duration) (*Service, error) {
	s := &Service{db: db, ttl: ttl, now: time.Now}
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid APP_PASSWORD_HASH: %w", err)
		}
		s.passwordHash = []byte(passwordHash)
	case password != "":
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		s.passwordHash = h
	default:
		return nil, ErrNotConfigured
	}
	if s.ttl <= 0 {
		s.ttl = 12 * time.Hour
	}
	return s, nil
}

// Login checks password and returns the raw token, which is never stored.
func (s *Service) Login(ctx context.Context, password, userName string) (string, *models.Session, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", nil, unauthorized(ErrBadPassword)
	}

	token, err := randomToken(32)
	if err != nil {
		return "", nil, apperr.Wrap(err)
	}
	now := s.now().UTC()
	sess := &models.Session{
		TokenHash: hashToken(token),
		UserName:  userName,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return "", nil, apperr.Wrap(fmt.Errorf("failed to create session: %w", err))
	}
	return token, sess, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, unauthorized(ErrNoSession)
	}
	var sess models.Session
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", hashToken(token), s.now().UTC()).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthorized(ErrNoSession)
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &sess, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).Delete(&models.Session{}).Error
	if err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

// PurgeExpired removes sessions past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func unauthorized(err error) *apperr.AppError {
	return &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: err.Error(), Err: err}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
