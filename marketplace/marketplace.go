// Package marketplace holds the carbon credit offer inventory: company
// offers with wallet addresses, per-credit prices and available volumes,
// plus the matching and allocation logic the trading tools are built on.
package marketplace

import (
	"context"
	"errors"
	"time"
)

// ErrInsufficientCredit is returned when a purchase asks for more credits
// than a company has available.
var ErrInsufficientCredit = errors.New("marketplace: insufficient available credits")

// ErrCompanyNotFound is returned when no offer matches a company reference.
var ErrCompanyNotFound = errors.New("marketplace: no company found")

// Offer is one company's standing carbon credit offer.
type Offer struct {
	CompanyID        string  `json:"company_id"`
	CompanyName      string  `json:"company_name"`
	WalletAddress    string  `json:"wallet_address"`
	Network          string  `json:"network"`
	OfferPrice       float64 `json:"offer_price"` // USD per credit
	AvailableCredits int     `json:"available_credits"`
}

// Filter narrows a Search. Zero values mean "no constraint".
type Filter struct {
	MaxPrice   float64
	MinCredits int
}

// Purchase records a completed credit acquisition against an offer.
type Purchase struct {
	ID            int64     `json:"id"`
	CompanyID     string    `json:"company_id"`
	Credits       int       `json:"credits"`
	UnitPrice     float64   `json:"unit_price"`
	TotalPrice    float64   `json:"total_price"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the offer inventory. Search returns offers cheapest first.
// Purchase atomically decrements availability and records the acquisition;
// it must never oversell under concurrent callers.
type Store interface {
	// Search returns offers matching the filter, ordered by ascending price.
	Search(ctx context.Context, f Filter) ([]Offer, error)

	// Get returns the offer for one company id.
	Get(ctx context.Context, companyID string) (*Offer, error)

	// Purchase decrements the company's available credits by the requested
	// amount and records the purchase. Returns ErrInsufficientCredit when
	// availability is too low and ErrCompanyNotFound for unknown companies.
	Purchase(ctx context.Context, companyID string, credits int, txID string) (*Purchase, error)

	// Purchases lists recorded purchases, newest first.
	Purchases(ctx context.Context, companyID string) ([]Purchase, error)
}
