package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockroom/internal/alert"
	"stockroom/internal/models"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInvalidQuantity   = errors.New("quantity must not be negative")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNameRequired      = errors.New("name required")
)

// Actor is the caller of an inventory operation.
type Actor struct {
	ID        string
	CompanyID string
	IsAdmin   bool
}

// Enqueuer receives one alert intent per committed quantity change.
type Enqueuer interface {
	Enqueue(ctx context.Context, in *models.AlertIntent) error
}

type Service struct {
	db     *gorm.DB
	outbox Enqueuer
	lg     *zap.SugaredLogger
}

func NewService(db *gorm.DB, outbox Enqueuer, lg *zap.SugaredLogger) *Service {
	return &Service{db: db, outbox: outbox, lg: lg}
}

type CreateInput struct {
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	MinQuantity  int     `json:"min_quantity"`
	TechnicianID *string `json:"technician_id,omitempty"`
}

// Create adds an item to the actor's company. Technicians may only create items they own.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*models.InventoryItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if in.Quantity < 0 || in.MinQuantity < 0 {
		return nil, ErrInvalidQuantity
	}
	item := &models.InventoryItem{Name: name, Quantity: in.Quantity, MinQuantity: in.MinQuantity}
	if actor.CompanyID != "" {
		cid := actor.CompanyID
		item.CompanyID = &cid
	}
	switch {
	case !actor.IsAdmin:
		tid := actor.ID
		item.TechnicianID = &tid
	case in.TechnicianID != nil && *in.TechnicianID != "":
		tid := *in.TechnicianID
		item.TechnicianID = &tid
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (*models.InventoryItem, error) {
	item, err := s.load(s.db.WithContext(ctx), id, false)
	if err != nil {
		return nil, err
	}
	if !visible(actor, item) {
		return nil, ErrNotFound
	}
	return item, nil
}

type ListFilter struct {
	TechnicianID string
	LowOnly      bool
}

func (s *Service) List(ctx context.Context, actor Actor, f ListFilter) ([]models.InventoryItem, error) {
	q := s.db.WithContext(ctx).Order("name asc")
	if actor.CompanyID != "" {
		q = q.Where("company_id = ?", actor.CompanyID)
	} else {
		q = q.Where("company_id IS NULL")
	}
	switch {
	case !actor.IsAdmin:
		q = q.Where("technician_id = ? OR technician_id IS NULL", actor.ID)
	case f.TechnicianID != "":
		q = q.Where("technician_id = ?", f.TechnicianID)
	}
	if f.LowOnly {
		q = q.Where("quantity <= min_quantity")
	}
	var items []models.InventoryItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	MinQuantity *int    `json:"min_quantity,omitempty"`
}

// Update changes descriptive fields. Threshold edits do not evaluate alerts; only
// quantity changes do.
func (s *Service) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (*models.InventoryItem, error) {
	item, err := s.Get(ctx, actor, id)
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
	if in.MinQuantity != nil {
		if *in.MinQuantity < 0 {
			return nil, ErrInvalidQuantity
		}
		updates["min_quantity"] = *in.MinQuantity
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, actor, id)
}

type QuantityChange struct {
	Reason string         `json:"reason"`
	Notes  string         `json:"notes,omitempty"`
	Meta   map[string]any `json:"metadata,omitempty"`
}

// SetQuantity records an absolute count.
func (s *Service) SetQuantity(ctx context.Context, actor Actor, id string, quantity int, ch QuantityChange) (*models.InventoryItem, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, actor, id, ch, func(int) (int, error) { return quantity, nil })
}

// Adjust applies a delta: negative to consume, positive to restock.
func (s *Service) Adjust(ctx context.Context, actor Actor, id string, delta int, ch QuantityChange) (*models.InventoryItem, error) {
	return s.mutate(ctx, actor, id, ch, func(cur int) (int, error) {
		next := cur + delta
		if next < 0 {
			return 0, ErrInsufficientStock
		}
		return next, nil
	})
}

// mutate writes the new quantity and a stock movement in one transaction, then enqueues
// one alert intent. Enqueue failures are logged and never fail the write.
func (s *Service) mutate(ctx context.Context, actor Actor, id string, ch QuantityChange, next func(int) (int, error)) (*models.InventoryItem, error) {
	var item *models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.load(tx, id, true)
		if err != nil {
			return err
		}
		if !visible(actor, cur) {
			return ErrNotFound
		}
		before := cur.Quantity
		after, err := next(before)
		if err != nil {
			return err
		}
		if err := tx.Model(cur).Update("quantity", after).Error; err != nil {
			return err
		}
		cur.Quantity = after

		reason := strings.TrimSpace(ch.Reason)
		if reason == "" {
			reason = "adjustment"
		}
		meta := datatypes.JSONMap{}
		for k, v := range ch.Meta {
			meta[k] = v
		}
		if ch.Notes != "" {
			meta["notes"] = ch.Notes
		}
		mv := models.StockMovement{
			ItemID:         cur.ID,
			CompanyID:      cur.CompanyID,
			QuantityBefore: before,
			QuantityAfter:  after,
			Reason:         reason,
			Metadata:       meta,
		}
		if actor.ID != "" {
			aid := actor.ID
			mv.ActorID = &aid
		}
		if err := tx.Create(&mv).Error; err != nil {
			return err
		}
		item = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.outbox != nil {
		if err := s.outbox.Enqueue(ctx, alert.IntentFor(item, item.Quantity)); err != nil {
			s.lg.Errorw("alert intent not enqueued", "item_id", item.ID, "quantity", item.Quantity, "error", err)
		}
	}
	return item, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.InventoryItem{}, "id = ?", id).Error
}

type MovementFilter struct {
	ItemID string
	All    bool
	Limit  int
}

// Movements returns the actor's own movements; admins may ask for the whole company.
func (s *Service) Movements(ctx context.Context, actor Actor, f MovementFilter) ([]models.StockMovement, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	q := s.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit)
	if f.All && actor.IsAdmin && actor.CompanyID != "" {
		q = q.Where("company_id = ?", actor.CompanyID)
	} else {
		q = q.Where("actor_id = ?", actor.ID)
	}
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	var rows []models.StockMovement
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) load(tx *gorm.DB, id string, forUpdate bool) (*models.InventoryItem, error) {
	if forUpdate && tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.InventoryItem
	if err := tx.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func sameCompany(actor Actor, item *models.InventoryItem) bool {
	if item.CompanyID == nil {
		return actor.CompanyID == ""
	}
	return *item.CompanyID == actor.CompanyID
}

// visible: admins see everything in their company, technicians their own and company stock.
// The same rule governs writes.
func visible(actor Actor, item *models.InventoryItem) bool {
	if !sameCompany(actor, item) {
		return false
	}
	return actor.IsAdmin || item.TechnicianID == nil || *item.TechnicianID == actor.ID
}
