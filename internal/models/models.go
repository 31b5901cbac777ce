package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleTech  = "tech"
)

// Credential is the auth backend's view of a principal.
type Credential struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Credential) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    string     `gorm:"size:36;index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Profile ID equals the principal id of the matching Credential.
type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;index" json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `gorm:"size:16;not null;default:tech" json:"role"`
	CompanyID *string   `gorm:"size:36;index" json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company doubles as the company settings record. A nil EnableLowStockAlerts means enabled.
type Company struct {
	ID                   string    `gorm:"primaryKey;size:36" json:"id"`
	Name                 string    `gorm:"not null" json:"name"`
	AdminEmail           string    `json:"admin_email"`
	EnableLowStockAlerts *bool     `json:"enable_low_stock_alerts,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (c *Company) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c Company) AlertsEnabled() bool {
	return c.EnableLowStockAlerts == nil || *c.EnableLowStockAlerts
}

type InventoryItem struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CompanyID    *string   `gorm:"size:36;index" json:"company_id,omitempty"`
	TechnicianID *string   `gorm:"size:36;index" json:"technician_id,omitempty"`
	Name         string    `gorm:"not null" json:"name"`
	Quantity     int       `gorm:"not null;default:0" json:"quantity"`
	MinQuantity  int       `gorm:"not null;default:0" json:"min_quantity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

type StockMovement struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID         string            `gorm:"size:36;index;not null" json:"item_id"`
	CompanyID      *string           `gorm:"size:36;index" json:"company_id,omitempty"`
	ActorID        *string           `gorm:"size:36;index" json:"actor_id,omitempty"`
	QuantityBefore int               `json:"quantity_before"`
	QuantityAfter  int               `json:"quantity_after"`
	Reason         string            `gorm:"not null" json:"reason"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
}

const (
	AlertPathCompany    = "company"
	AlertPathTechnician = "technician"

	AlertStatusPending    = "pending"
	AlertStatusProcessing = "processing"
	AlertStatusDone       = "done"
	AlertStatusFailed     = "failed"
)

// AlertIntent is an outbox row written after an inventory mutation commits.
type AlertIntent struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Path         string     `gorm:"size:16;not null" json:"path"`
	ItemID       string     `gorm:"size:36;not null" json:"item_id"`
	Quantity     int        `json:"quantity"`
	TechnicianID *string    `gorm:"size:36" json:"technician_id,omitempty"`
	Status       string     `gorm:"size:16;index;not null;default:pending" json:"status"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Credential{}, &Session{}, &Profile{}, &Company{},
		&InventoryItem{}, &StockMovement{}, &AlertIntent{},
	}
}
