package marketplace

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a Store backed by process memory, used in tests and
// single-node deployments without a database.
type InMemoryStore struct {
	mu        sync.Mutex
	offers    map[string]*Offer
	purchases []Purchase
	nextID    int64
}

// NewInMemoryStore creates a store pre-loaded with the given offers.
func NewInMemoryStore(offers ...Offer) *InMemoryStore {
	s := &InMemoryStore{offers: map[string]*Offer{}, nextID: 1}
	for i := range offers {
		o := offers[i]
		s.offers[o.CompanyID] = &o
	}
	return s
}

// Search implements Store.
func (s *InMemoryStore) Search(_ context.Context, f Filter) ([]Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Offer
	for _, o := range s.offers {
		if f.MaxPrice > 0 && o.OfferPrice > f.MaxPrice {
			continue
		}
		if f.MinCredits > 0 && o.AvailableCredits < f.MinCredits {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OfferPrice != out[j].OfferPrice {
			return out[i].OfferPrice < out[j].OfferPrice
		}
		return out[i].CompanyID < out[j].CompanyID
	})
	return out, nil
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, companyID string) (*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[companyID]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	copied := *o
	return &copied, nil
}

// Purchase implements Store.
func (s *InMemoryStore) Purchase(_ context.Context, companyID string, credits int, txID string) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[companyID]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	if credits <= 0 || credits > o.AvailableCredits {
		return nil, ErrInsufficientCredit
	}

	o.AvailableCredits -= credits
	p := Purchase{
		ID:            s.nextID,
		CompanyID:     companyID,
		Credits:       credits,
		UnitPrice:     o.OfferPrice,
		TotalPrice:    float64(credits) * o.OfferPrice,
		TransactionID: txID,
		CreatedAt:     time.Now(),
	}
	s.nextID++
	s.purchases = append(s.purchases, p)
	return &p, nil
}

// Purchases implements Store.
func (s *InMemoryStore) Purchases(_ context.Context, companyID string) ([]Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Purchase
	for i := len(s.purchases) - 1; i >= 0; i-- {
		p := s.purchases[i]
		if companyID == "" || p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ Store = (*InMemoryStore)(nil)
