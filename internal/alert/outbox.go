package alert

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stockroom/internal/models"
)

// Outbox stores alert intents. One intent is written per inventory mutation call; there
// is no deduplication across calls.
type Outbox struct {
	db *gorm.DB
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// IntentFor picks the path from the item's ownership: technician stock alerts through the
// technician path, everything else through the company path.
func IntentFor(item *models.InventoryItem, quantity int) *models.AlertIntent {
	in := &models.AlertIntent{
		Path:     models.AlertPathCompany,
		ItemID:   item.ID,
		Quantity: quantity,
		Status:   models.AlertStatusPending,
	}
	if item.TechnicianID != nil && *item.TechnicianID != "" {
		tech := *item.TechnicianID
		in.Path = models.AlertPathTechnician
		in.TechnicianID = &tech
	}
	return in
}

func (o *Outbox) Enqueue(ctx context.Context, in *models.AlertIntent) error {
	if in.Status == "" {
		in.Status = models.AlertStatusPending
	}
	if err := o.db.WithContext(ctx).Create(in).Error; err != nil {
		return fmt.Errorf("enqueue alert intent: %w", err)
	}
	return nil
}

func (o *Outbox) Pending(ctx context.Context, limit int) ([]models.AlertIntent, error) {
	var rows []models.AlertIntent
	err := o.db.WithContext(ctx).
		Where("status = ?", models.AlertStatusPending).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Claim moves a pending intent to processing. It reports false when another worker won.
func (o *Outbox) Claim(ctx context.Context, id int64) (bool, error) {
	res := o.db.WithContext(ctx).Model(&models.AlertIntent{}).
		Where("id = ? AND status = ?", id, models.AlertStatusPending).
		Updates(map[string]any{
			"status":   models.AlertStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (o *Outbox) Finish(ctx context.Context, id int64, status, lastError string, at time.Time) error {
	updates := map[string]any{"status": status, "last_error": lastError}
	if status != models.AlertStatusPending {
		updates["processed_at"] = at
	}
	return o.db.WithContext(ctx).Model(&models.AlertIntent{}).Where("id = ?", id).Updates(updates).Error
}

func (o *Outbox) Get(ctx context.Context, id int64) (*models.AlertIntent, error) {
	var in models.AlertIntent
	if err := o.db.WithContext(ctx).First(&in, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &in, nil
}

// List returns recent intents for items of one company, newest first.
func (o *Outbox) List(ctx context.Context, companyID, status string, limit int) ([]models.AlertIntent, error) {
	q := o.db.WithContext(ctx).
		Joins("JOIN inventory_items ON inventory_items.id = alert_intents.item_id").
		Where("inventory_items.company_id = ?", companyID).
		Order("alert_intents.id desc").
		Limit(limit)
	if status != "" {
		q = q.Where("alert_intents.status = ?", status)
	}
	var rows []models.AlertIntent
	err := q.Find(&rows).Error
	return rows, err
}
