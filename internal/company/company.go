package company

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"stockroom/internal/models"
)

var (
	ErrNotFound     = errors.New("company not found")
	ErrNameRequired = errors.New("name required")
	ErrInvalidEmail = errors.New("admin_email is not a valid address")
)

// Settings is a partial update; nil fields are left untouched.
type Settings struct {
	Name                 *string `json:"name,omitempty"`
	AdminEmail           *string `json:"admin_email,omitempty"`
	EnableLowStockAlerts *bool   `json:"enable_low_stock_alerts,omitempty"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, name, adminEmail string) (*models.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	adminEmail, err := normalizeEmail(adminEmail)
	if err != nil {
		return nil, err
	}
	c := &models.Company{Name: name, AdminEmail: adminEmail}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Company, error) {
	var c models.Company
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) UpdateSettings(ctx context.Context, id string, in Settings) (*models.Company, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = name
	}
	if in.AdminEmail != nil {
		email, err := normalizeEmail(*in.AdminEmail)
		if err != nil {
			return nil, err
		}
		updates["admin_email"] = email
	}
	if in.EnableLowStockAlerts != nil {
		updates["enable_low_stock_alerts"] = *in.EnableLowStockAlerts
	}
	if len(updates) == 0 {
		return c, nil
	}
	if err := s.db.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update company %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// normalizeEmail accepts an empty address, which disables alert delivery.
func normalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
