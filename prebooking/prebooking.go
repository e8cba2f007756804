// Package prebooking implements discounted advance purchases of carbon
// credits against predicted future demand. Small prebookings pay out
// immediately; larger ones wait in pending_approval until an operator
// approves them, and only then is any money moved.
package prebooking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/marketplace"
)

// Prebooking lifecycle states. confirmed, payment_failed and cancelled are
// terminal; a record never leaves a terminal state.
const (
	StatusPendingApproval = "pending_approval"
	StatusConfirmed       = "confirmed"
	StatusPaymentFailed   = "payment_failed"
	StatusCancelled       = "cancelled"
)

// Defaults for the business rules.
const (
	DefaultDiscountRate     = 0.05
	DefaultAutoApproveLimit = 300.0
	DefaultMinConfidence    = 0.7
	DefaultMaxHorizon       = 168 * time.Hour
)

var (
	// ErrNotFound is returned for unknown prebooking ids.
	ErrNotFound = errors.New("prebooking: not found")
	// ErrNotPending is returned when Approve or Cancel hits a record that
	// is no longer pending.
	ErrNotPending = errors.New("prebooking: not in pending_approval state")
)

// ValidationError reports a rejected prebooking request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("prebooking: invalid %s: %s", e.Field, e.Message)
}

// Record is one prebooking with its full lifecycle state.
type Record struct {
	ID               string        `json:"id"`
	CompanyID        string        `json:"company_id"`
	CompanyName      string        `json:"company_name"`
	WalletAddress    string        `json:"wallet_address"`
	Network          string        `json:"network"`
	PredictedCredits int           `json:"predicted_credits"`
	ActualCredits    int           `json:"actual_credits"`
	UnitPrice        float64       `json:"unit_price"`
	PrepaymentAmount float64       `json:"prepayment_amount"`
	Status           string        `json:"status"`
	Confidence       float64       `json:"confidence"`
	PredictionSource string        `json:"prediction_source"`
	TransactionID    string        `json:"transaction_id,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	Horizon          time.Duration `json:"-"`

	// approving marks a payment in flight so the record cannot be approved
	// or cancelled a second time while funds are moving.
	approving bool
}

// Terminal reports whether the record can still change state.
func (r *Record) Terminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusPaymentFailed || r.Status == StatusCancelled
}

// Payer moves the prepayment to the company wallet and returns the provider
// transaction id.
type Payer interface {
	Pay(ctx context.Context, destination string, amount float64, memo string) (string, error)
}

// PayerFunc adapts a function to the Payer interface.
type PayerFunc func(ctx context.Context, destination string, amount float64, memo string) (string, error)

// Pay implements Payer.
func (f PayerFunc) Pay(ctx context.Context, destination string, amount float64, memo string) (string, error) {
	return f(ctx, destination, amount, memo)
}

// CreateRequest describes a prediction-driven prebooking.
type CreateRequest struct {
	Company          string
	PredictedCredits int
	Confidence       float64
	Horizon          time.Duration
	PredictionSource string
}

// Options configure a Service.
type Options struct {
	// DiscountRate applied to the spot total (0.05 = 5% off).
	DiscountRate float64
	// AutoApproveLimit in USD. Prepayments strictly below it are paid
	// immediately; at or above it they wait for approval.
	AutoApproveLimit float64
	// MinConfidence a prediction must reach to be prebookable.
	MinConfidence float64
	// MaxHorizon a prediction may look ahead.
	MaxHorizon time.Duration
	// Logger receives lifecycle diagnostics.
	Logger logging.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service owns prebooking records and the approval workflow.
type Service struct {
	store marketplace.Store
	payer Payer
	opts  Options

	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewService creates a prebooking service over the offer inventory and payer.
func NewService(store marketplace.Store, payer Payer, optFns ...func(o *Options)) *Service {
	opts := Options{
		DiscountRate:     DefaultDiscountRate,
		AutoApproveLimit: DefaultAutoApproveLimit,
		MinConfidence:    DefaultMinConfidence,
		MaxHorizon:       DefaultMaxHorizon,
		Logger:           logging.NoOpLogger{},
		Now:              time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{store: store, payer: payer, opts: opts, records: map[string]*Record{}}
}

// Create validates the prediction, computes the discounted prepayment and
// either pays immediately (below the auto-approve limit) or parks the record
// in pending_approval. No payment happens for pending records.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	if req.PredictedCredits <= 0 {
		return nil, &ValidationError{Field: "predicted_credits", Message: "must be positive"}
	}
	if req.Confidence < s.opts.MinConfidence {
		return nil, &ValidationError{Field: "confidence",
			Message: fmt.Sprintf("%.2f below minimum %.2f", req.Confidence, s.opts.MinConfidence)}
	}
	if req.Horizon <= 0 || req.Horizon > s.opts.MaxHorizon {
		return nil, &ValidationError{Field: "horizon",
			Message: fmt.Sprintf("must be within (0, %s]", s.opts.MaxHorizon)}
	}

	offer, err := marketplace.ResolveCompany(ctx, s.store, req.Company)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	prepayment := float64(req.PredictedCredits) * offer.OfferPrice * (1 - s.opts.DiscountRate)

	rec := &Record{
		ID:               buildID(now, offer.CompanyName),
		CompanyID:        offer.CompanyID,
		CompanyName:      offer.CompanyName,
		WalletAddress:    offer.WalletAddress,
		Network:          offer.Network,
		PredictedCredits: req.PredictedCredits,
		UnitPrice:        offer.OfferPrice,
		PrepaymentAmount: prepayment,
		Confidence:       req.Confidence,
		PredictionSource: req.PredictionSource,
		CreatedAt:        now,
		ExpiresAt:        now.Add(req.Horizon),
		Horizon:          req.Horizon,
	}

	if prepayment < s.opts.AutoApproveLimit {
		txID, payErr := s.pay(ctx, rec)
		if payErr != nil {
			rec.Status = StatusCancelled
			rec.FailureReason = payErr.Error()
			s.opts.Logger.Warn("prebooking.autopay_failed", "id", rec.ID, "error", payErr.Error())
		} else {
			rec.Status = StatusConfirmed
			rec.TransactionID = txID
			s.opts.Logger.Info("prebooking.confirmed", "id", rec.ID, "amount", prepayment, "tx_id", txID)
		}
	} else {
		rec.Status = StatusPendingApproval
		s.opts.Logger.Info("prebooking.pending_approval", "id", rec.ID, "amount", prepayment)
	}

	s.mu.Lock()
	// Same company twice within one second would collide on the readable id.
	base := rec.ID
	for n := 2; ; n++ {
		if _, exists := s.records[rec.ID]; !exists {
			break
		}
		rec.ID = fmt.Sprintf("%s_%d", base, n)
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()

	return s.snapshot(rec.ID)
}

// Approve pays out a pending prebooking. At most one approval may be in
// flight per record: concurrent calls return ErrNotPending, so the
// prepayment moves exactly once. On payment failure the record moves to
// payment_failed, which is terminal; the approval cannot be retried.
func (s *Service) Approve(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if rec.Status != StatusPendingApproval {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, id, rec.Status)
	}
	if rec.approving {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: approval of %s is already in progress", ErrNotPending, id)
	}
	rec.approving = true
	s.mu.Unlock()

	txID, payErr := s.pay(ctx, rec)

	s.mu.Lock()
	rec.approving = false
	if payErr != nil {
		rec.Status = StatusPaymentFailed
		rec.FailureReason = payErr.Error()
		s.opts.Logger.Warn("prebooking.payment_failed", "id", id, "error", payErr.Error())
	} else {
		rec.Status = StatusConfirmed
		rec.TransactionID = txID
		s.opts.Logger.Info("prebooking.confirmed", "id", id, "tx_id", txID)
	}
	s.mu.Unlock()

	return s.snapshot(id)
}

// Cancel withdraws a pending prebooking. Terminal records cannot be
// cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status != StatusPendingApproval {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, id, rec.Status)
	}
	if rec.approving {
		return nil, fmt.Errorf("%w: approval of %s is in progress", ErrNotPending, id)
	}
	rec.Status = StatusCancelled
	s.opts.Logger.Info("prebooking.cancelled", "id", id)

	copied := *rec
	return &copied, nil
}

// Get returns one prebooking by id.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.snapshot(id)
}

// List returns prebookings in creation order, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, id := range s.order {
		rec := s.records[id]
		if status == "" || rec.Status == status {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *Service) pay(ctx context.Context, rec *Record) (string, error) {
	memo := fmt.Sprintf("carbon-credit-prebooking %s credits=%d", rec.ID, rec.PredictedCredits)
	return s.payer.Pay(ctx, rec.WalletAddress, rec.PrepaymentAmount, memo)
}

func (s *Service) snapshot(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

var idSanitizer = regexp.MustCompile(`[^A-Za-z0-9]+`)

// buildID derives a readable prebooking id like
// pb_20260827_153000_Eco_Corp from the creation time and company name.
func buildID(now time.Time, companyName string) string {
	name := idSanitizer.ReplaceAllString(companyName, "_")
	name = strings.Trim(name, "_")
	return fmt.Sprintf("pb_%s_%s", now.Format("20060102_150405"), name)
}
