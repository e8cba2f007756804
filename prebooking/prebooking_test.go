package prebooking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPayer struct {
	mu       sync.Mutex
	calls    []float64
	failWith error
}

func (p *recordingPayer) Pay(_ context.Context, destination string, amount float64, memo string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.calls = append(p.calls, amount)
	return fmt.Sprintf("hedera_tx_%06d", len(p.calls)), nil
}

func (p *recordingPayer) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func testStore() marketplace.Store {
	return marketplace.NewInMemoryStore(
		marketplace.Offer{CompanyID: "eco_corp", CompanyName: "Eco Corp", WalletAddress: "0.0.111111", Network: "hedera", OfferPrice: 5, AvailableCredits: 1000},
		marketplace.Offer{CompanyID: "green_future", CompanyName: "Green Future Ltd", WalletAddress: "0.0.222222", Network: "hedera", OfferPrice: 14, AvailableCredits: 1000},
	)
}

func TestCreateBelowLimitPaysAndConfirms(t *testing.T) {
	payer := &recordingPayer{}
	svc := NewService(testStore(), payer)

	// 10 credits at $5 with 5% discount = $47.50, below the $300 limit.
	rec, err := svc.Create(context.Background(), CreateRequest{
		Company:          "Eco Corp",
		PredictedCredits: 10,
		Confidence:       0.9,
		Horizon:          24 * time.Hour,
		PredictionSource: "iot_extrapolation",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, rec.Status)
	assert.InDelta(t, 47.50, rec.PrepaymentAmount, 0.001)
	assert.Equal(t, "hedera_tx_000001", rec.TransactionID)
	assert.Equal(t, 1, payer.callCount())
}

func TestCreateAtOrAboveLimitWaitsForApproval(t *testing.T) {
	payer := &recordingPayer{}
	svc := NewService(testStore(), payer)

	// 50 credits at $14 with 5% discount = $665, at or above the limit.
	rec, err := svc.Create(context.Background(), CreateRequest{
		Company:          "Green Future Ltd",
		PredictedCredits: 50,
		Confidence:       0.85,
		Horizon:          72 * time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPendingApproval, rec.Status)
	assert.InDelta(t, 665.0, rec.PrepaymentAmount, 0.001)
	assert.Empty(t, rec.TransactionID)
	assert.Equal(t, 0, payer.callCount(), "no payment may happen before approval")
}

func TestCreateExactlyAtLimitIsPending(t *testing.T) {
	payer := &recordingPayer{}
	store := marketplace.NewInMemoryStore(
		marketplace.Offer{CompanyID: "c", CompanyName: "C", WalletAddress: "0.0.3", Network: "hedera", OfferPrice: 10, AvailableCredits: 1000},
	)
	svc := NewService(store, payer)

	// 31.578... credits is not integral, so use a custom limit instead:
	// 20 credits at $10 with 5% discount = $190; set the limit to exactly 190.
	svc = NewService(store, payer, func(o *Options) { o.AutoApproveLimit = 190 })

	rec, err := svc.Create(context.Background(), CreateRequest{
		Company: "C", PredictedCredits: 20, Confidence: 0.9, Horizon: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPendingApproval, rec.Status, "the limit comparison is strict")
	assert.Equal(t, 0, payer.callCount())
}

func TestCreateRejectsLowConfidence(t *testing.T) {
	svc := NewService(testStore(), &recordingPayer{})

	_, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.5, Horizon: time.Hour,
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confidence", verr.Field)
}

func TestCreateRejectsExcessiveHorizon(t *testing.T) {
	svc := NewService(testStore(), &recordingPayer{})

	_, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.9, Horizon: 200 * time.Hour,
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "horizon", verr.Field)
}

func TestCreateUnknownCompany(t *testing.T) {
	svc := NewService(testStore(), &recordingPayer{})

	_, err := svc.Create(context.Background(), CreateRequest{
		Company: "Acme Rockets", PredictedCredits: 10, Confidence: 0.9, Horizon: time.Hour,
	})
	assert.ErrorIs(t, err, marketplace.ErrCompanyNotFound)
}

func TestCreateAutopayFailureCancels(t *testing.T) {
	payer := &recordingPayer{failWith: errors.New("provider down")}
	svc := NewService(testStore(), payer)

	rec, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.9, Horizon: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Contains(t, rec.FailureReason, "provider down")
}

func TestApproveConfirmsAndPays(t *testing.T) {
	payer := &recordingPayer{}
	svc := NewService(testStore(), payer)

	rec, err := svc.Create(context.Background(), CreateRequest{
		Company: "Green Future Ltd", PredictedCredits: 50, Confidence: 0.85, Horizon: 72 * time.Hour,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, rec.Status)

	approved, err := svc.Approve(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, approved.Status)
	assert.NotEmpty(t, approved.TransactionID)
	assert.Equal(t, 1, payer.callCount())
	assert.InDelta(t, 665.0, payer.calls[0], 0.001)
}

func TestApprovePaymentFailureIsTerminal(t *testing.T) {
	payer := &recordingPayer{}
	svc := NewService(testStore(), payer)

	rec, err := svc.Create(context.Background(), CreateRequest{
		Company: "Green Future Ltd", PredictedCredits: 50, Confidence: 0.85, Horizon: 72 * time.Hour,
	})
	require.NoError(t, err)

	payer.failWith = errors.New("insufficient balance")
	failed, err := svc.Approve(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentFailed, failed.Status)

	// A failed approval cannot be retried.
	payer.failWith = nil
	_, err = svc.Approve(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

type gatedPayer struct {
	recordingPayer
	release chan struct{}
}

func (p *gatedPayer) Pay(ctx context.Context, destination string, amount float64, memo string) (string, error) {
	<-p.release
	return p.recordingPayer.Pay(ctx, destination, amount, memo)
}

func TestApproveConcurrentPaysExactlyOnce(t *testing.T) {
	payer := &gatedPayer{release: make(chan struct{})}
	svc := NewService(testStore(), payer)

	rec, err := svc.Create(context.Background(), CreateRequest{
		Company: "Green Future Ltd", PredictedCredits: 50, Confidence: 0.85, Horizon: 72 * time.Hour,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, rec.Status)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Approve(context.Background(), rec.ID)
			results <- err
		}()
	}

	// The payer holds the first approval; the second must bounce off the
	// pending gate without paying.
	assert.ErrorIs(t, <-results, ErrNotPending)

	// Cancelling while funds are moving is rejected too.
	_, err = svc.Cancel(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	close(payer.release)
	require.NoError(t, <-results)

	confirmed, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, payer.callCount())
}

func TestCancelOnlyPending(t *testing.T) {
	payer := &recordingPayer{}
	svc := NewService(testStore(), payer)

	pending, err := svc.Create(context.Background(), CreateRequest{
		Company: "Green Future Ltd", PredictedCredits: 50, Confidence: 0.85, Horizon: 72 * time.Hour,
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), pending.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	confirmed, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.9, Horizon: time.Hour,
	})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = svc.Cancel(context.Background(), confirmed.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestListFiltersByStatus(t *testing.T) {
	payer := &recordingPayer{}
	svc := NewService(testStore(), payer)

	_, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.9, Horizon: time.Hour,
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateRequest{
		Company: "Green Future Ltd", PredictedCredits: 50, Confidence: 0.85, Horizon: 72 * time.Hour,
	})
	require.NoError(t, err)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.List(context.Background(), StatusPendingApproval)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "green_future", pending[0].CompanyID)
}

func TestRecordIDFormat(t *testing.T) {
	fixed := time.Date(2026, 8, 27, 15, 30, 0, 0, time.UTC)
	svc := NewService(testStore(), &recordingPayer{}, func(o *Options) {
		o.Now = func() time.Time { return fixed }
	})

	rec, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.9, Horizon: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, "pb_20260827_153000_Eco_Corp", rec.ID)

	// Same second, same company: the id must still be unique.
	rec2, err := svc.Create(context.Background(), CreateRequest{
		Company: "Eco Corp", PredictedCredits: 10, Confidence: 0.9, Horizon: time.Hour,
	})
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, rec2.ID)
}
