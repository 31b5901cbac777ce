package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockroom/internal/models"
)

var (
	ErrNotFound    = errors.New("profile not found")
	ErrInvalidRole = errors.New("role must be admin or tech")
)

// Fields are the caller supplied profile attributes at sign-up.
type Fields struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Role      string  `json:"role,omitempty"`
	CompanyID *string `json:"company_id,omitempty"`
}

type Store interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
	ListByCompany(ctx context.Context, companyID string) ([]models.Profile, error)
	Update(ctx context.Context, id string, role *string, companyID *string) (*models.Profile, error)
}

func ValidRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleTech
}

// New builds a profile row for principal id, defaulting the role to tech.
func New(id, email string, f Fields) (*models.Profile, error) {
	role := strings.TrimSpace(f.Role)
	if role == "" {
		role = models.RoleTech
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}
	return &models.Profile{
		ID:        id,
		Email:     email,
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Role:      role,
		CompanyID: f.CompanyID,
	}, nil
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile %s: %w", id, err)
	}
	return &p, nil
}

// Upsert is keyed by principal id, so repeating it is harmless.
func (s *GormStore) Upsert(ctx context.Context, p *models.Profile) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "role", "company_id", "updated_at"}),
	}).Create(p).Error
}

func (s *GormStore) ListByCompany(ctx context.Context, companyID string) ([]models.Profile, error) {
	var ps []models.Profile
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("created_at desc").Find(&ps).Error
	return ps, err
}

func (s *GormStore) Update(ctx context.Context, id string, role *string, companyID *string) (*models.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if role != nil {
		if !ValidRole(*role) {
			return nil, ErrInvalidRole
		}
		updates["role"] = *role
	}
	if companyID != nil {
		if *companyID == "" {
			updates["company_id"] = nil
		} else {
			updates["company_id"] = *companyID
		}
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
