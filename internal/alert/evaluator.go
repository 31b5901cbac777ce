// Package alert decides whether an inventory mutation warrants a low-stock email and
// delivers it through the outbox worker.
package alert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockroom/internal/metrics"
	"stockroom/internal/models"
	"stockroom/internal/notify"
)

var ErrNotFound = errors.New("not found")

const (
	ReasonItemNotFound       = "item_not_found"
	ReasonNoCompany          = "no_company"
	ReasonOutOfStock         = "out_of_stock"
	ReasonAboveThreshold     = "above_threshold"
	ReasonTechnicianNotFound = "technician_not_found"
	ReasonNoSettings         = "no_company_settings"
	ReasonNoAdminEmail       = "no_admin_email"
	ReasonAlertsDisabled     = "alerts_disabled"
	ReasonLookupFailed       = "lookup_failed"
	ReasonDeliveryFailed     = "delivery_failed"
)

// Outcome is the result of one evaluation. Err is kept for logging only.
type Outcome struct {
	Status string
	Reason string
	Err    error
}

func (o Outcome) Sent() bool { return o.Status == metrics.OutcomeSent }
func (o Outcome) Failed() bool { return o.Status == metrics.OutcomeFailed }

func sent() Outcome { return Outcome{Status: metrics.OutcomeSent} }
func skipped(reason string) Outcome { return Outcome{Status: metrics.OutcomeSkipped, Reason: reason} }
func failed(reason string, err error) Outcome {
	return Outcome{Status: metrics.OutcomeFailed, Reason: reason, Err: err}
}

// CompanyAlertDue: an item at zero is out of stock, not low, and does not alert the company.
func CompanyAlertDue(quantity, minQuantity int) bool {
	return quantity > 0 && quantity <= minQuantity
}

// TechnicianAlertDue includes zero.
func TechnicianAlertDue(quantity, minQuantity int) bool {
	return quantity <= minQuantity
}

type Lookup interface {
	Item(ctx context.Context, id string) (*models.InventoryItem, error)
	Company(ctx context.Context, id string) (*models.Company, error)
	Profile(ctx context.Context, id string) (*models.Profile, error)
}

type GormLookup struct {
	db *gorm.DB
}

func NewGormLookup(db *gorm.DB) *GormLookup {
	return &GormLookup{db: db}
}

func (l *GormLookup) Item(ctx context.Context, id string) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := l.db.WithContext(ctx).Select("id", "name", "min_quantity", "company_id", "technician_id").
		First(&it, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func (l *GormLookup) Company(ctx context.Context, id string) (*models.Company, error) {
	var c models.Company
	if err := l.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (l *GormLookup) Profile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := l.db.WithContext(ctx).Select("id", "email", "company_id").First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type Evaluator struct {
	lookup  Lookup
	sender  notify.Sender
	metrics *metrics.Metrics
	lg      *zap.SugaredLogger
}

func NewEvaluator(lookup Lookup, sender notify.Sender, m *metrics.Metrics, lg *zap.SugaredLogger) *Evaluator {
	return &Evaluator{lookup: lookup, sender: sender, metrics: m, lg: lg}
}

// CheckCompany alerts the company admin when a company item becomes low but not empty.
func (e *Evaluator) CheckCompany(ctx context.Context, itemID string, quantity int) Outcome {
	out := e.checkCompany(ctx, itemID, quantity)
	e.record(models.AlertPathCompany, itemID, quantity, out)
	return out
}

func (e *Evaluator) checkCompany(ctx context.Context, itemID string, quantity int) Outcome {
	item, err := e.lookup.Item(ctx, itemID)
	if err != nil {
		return lookupOutcome(ReasonItemNotFound, err)
	}
	if item.CompanyID == nil || *item.CompanyID == "" {
		return skipped(ReasonNoCompany)
	}
	if !CompanyAlertDue(quantity, item.MinQuantity) {
		if quantity <= 0 {
			return skipped(ReasonOutOfStock)
		}
		return skipped(ReasonAboveThreshold)
	}
	c, reason, err := e.alertingCompany(ctx, *item.CompanyID)
	if c == nil {
		return lookupOutcome(reason, err)
	}
	return e.deliver(ctx, notify.Request{
		Type:        notify.TypeLowStock,
		To:          c.AdminEmail,
		CompanyName: c.Name,
		CompanyID:   c.ID,
		ItemName:    item.Name,
		Quantity:    quantity,
		MinQuantity: item.MinQuantity,
	})
}

// CheckTechnician alerts the company admin when a technician's own stock is at or below
// its minimum, including zero.
func (e *Evaluator) CheckTechnician(ctx context.Context, itemID string, quantity int, technicianID string) Outcome {
	out := e.checkTechnician(ctx, itemID, quantity, technicianID)
	e.record(models.AlertPathTechnician, itemID, quantity, out)
	return out
}

func (e *Evaluator) checkTechnician(ctx context.Context, itemID string, quantity int, technicianID string) Outcome {
	item, err := e.lookup.Item(ctx, itemID)
	if err != nil {
		return lookupOutcome(ReasonItemNotFound, err)
	}
	tech, err := e.lookup.Profile(ctx, technicianID)
	if err != nil {
		return lookupOutcome(ReasonTechnicianNotFound, err)
	}
	if !TechnicianAlertDue(quantity, item.MinQuantity) {
		return skipped(ReasonAboveThreshold)
	}
	companyID := item.CompanyID
	if companyID == nil || *companyID == "" {
		companyID = tech.CompanyID
	}
	if companyID == nil || *companyID == "" {
		return skipped(ReasonNoCompany)
	}
	c, reason, err := e.alertingCompany(ctx, *companyID)
	if c == nil {
		return lookupOutcome(reason, err)
	}
	return e.deliver(ctx, notify.Request{
		Type:        notify.TypeTechLowStock,
		To:          c.AdminEmail,
		CompanyName: c.Name,
		CompanyID:   c.ID,
		ItemName:    item.Name,
		Quantity:    quantity,
		MinQuantity: item.MinQuantity,
		TechEmail:   tech.Email,
	})
}

// alertingCompany returns the company only when it exists, has an admin email and has
// not explicitly disabled alerts.
func (e *Evaluator) alertingCompany(ctx context.Context, id string) (*models.Company, string, error) {
	c, err := e.lookup.Company(ctx, id)
	if err != nil {
		return nil, ReasonNoSettings, err
	}
	if c.AdminEmail == "" {
		return nil, ReasonNoAdminEmail, nil
	}
	if !c.AlertsEnabled() {
		return nil, ReasonAlertsDisabled, nil
	}
	return c, "", nil
}

func (e *Evaluator) deliver(ctx context.Context, req notify.Request) Outcome {
	if _, err := e.sender.Send(ctx, req); err != nil {
		return failed(ReasonDeliveryFailed, err)
	}
	return sent()
}

// lookupOutcome treats a missing row as a skip and anything else as a lookup failure.
func lookupOutcome(reason string, err error) Outcome {
	if err == nil || errors.Is(err, ErrNotFound) {
		return skipped(reason)
	}
	return Outcome{Status: metrics.OutcomeSkipped, Reason: ReasonLookupFailed, Err: fmt.Errorf("%s: %w", reason, err)}
}

func (e *Evaluator) record(path, itemID string, quantity int, out Outcome) {
	e.metrics.AlertEvaluated(path, out.Status)
	switch out.Status {
	case metrics.OutcomeSent:
		e.lg.Infow("low stock alert sent", "path", path, "item_id", itemID, "quantity", quantity)
	case metrics.OutcomeFailed:
		e.lg.Errorw("low stock alert failed", "path", path, "item_id", itemID, "quantity", quantity, "reason", out.Reason, "error", out.Err)
	default:
		if out.Err != nil {
			e.lg.Warnw("low stock alert skipped", "path", path, "item_id", itemID, "quantity", quantity, "reason", out.Reason, "error", out.Err)
			return
		}
		e.lg.Debugw("low stock alert skipped", "path", path, "item_id", itemID, "quantity", quantity, "reason", out.Reason)
	}
}
