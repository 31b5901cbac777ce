package identity

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"stockroom/internal/models"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Credential{}).Where("email = ?", c.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserExists
		}
		return tx.Create(c).Error
	})
}

func (s *GormStore) CredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var c models.Credential
	if err := s.db.WithContext(ctx).First(&c, "email = ?", email).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *GormStore) CredentialByID(ctx context.Context, id string) (*models.Credential, error) {
	var c models.Credential
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *GormStore) CreateSession(ctx context.Context, sess *models.Session) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

func (s *GormStore) SessionByJTI(ctx context.Context, jti string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.WithContext(ctx).First(&sess, "jti = ?", jti).Error; err != nil {
		return nil, mapErr(err)
	}
	return &sess, nil
}

func (s *GormStore) RevokeSession(ctx context.Context, jti string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
