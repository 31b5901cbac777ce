// Package notify formats categorized notification emails and delivers them through a
// Resend-compatible mail API, either in-process or through the remote mail function.
package notify

import (
	"context"
	"errors"
	"fmt"
)

const (
	TypeStockRequest = "stock_request"
	TypePurchase     = "purchase"
	TypeLowStock     = "low_stock"
	TypeTechLowStock = "tech_low_stock"
	TypeUserActivity = "user_activity"
	TypeTest         = "test"
)

// Request is the mail function payload. Only Type and To are required; the remaining
// fields feed the per-type template.
type Request struct {
	Type          string  `json:"type"`
	To            string  `json:"to"`
	Subject       string  `json:"subject,omitempty"`
	Message       string  `json:"message,omitempty"`
	CompanyName   string  `json:"companyName,omitempty"`
	CompanyID     string  `json:"companyId,omitempty"`
	ItemName      string  `json:"itemName,omitempty"`
	Quantity      int     `json:"quantity,omitempty"`
	MinQuantity   int     `json:"minQuantity,omitempty"`
	TechEmail     string  `json:"techEmail,omitempty"`
	RequesterName string  `json:"requesterName,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Supplier      string  `json:"supplier,omitempty"`
	Total         float64 `json:"total,omitempty"`
	UserName      string  `json:"userName,omitempty"`
	Activity      string  `json:"activity,omitempty"`
}

type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	ID        string `json:"id,omitempty"`
}

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, req Request) (*Result, error)
}

var (
	ErrMissingAPIKey    = errors.New("mail api key is not configured")
	ErrMissingRecipient = errors.New("recipient is required")
)

// DeliveryError carries the mail provider's (or mail function's) non-2xx response.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mail delivery failed: status %d: %s", e.Status, e.Body)
}
