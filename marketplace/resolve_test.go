package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCompanyExactID(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	offer, err := ResolveCompany(context.Background(), store, "eco_corp")
	require.NoError(t, err)
	assert.Equal(t, "eco_corp", offer.CompanyID)
}

func TestResolveCompanyExactName(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	offer, err := ResolveCompany(context.Background(), store, "Green Future Ltd")
	require.NoError(t, err)
	assert.Equal(t, "green_future", offer.CompanyID)
}

func TestResolveCompanyCaseAndSeparatorInsensitive(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	offer, err := ResolveCompany(context.Background(), store, "ECO-CORP")
	require.NoError(t, err)
	assert.Equal(t, "eco_corp", offer.CompanyID)
}

func TestResolveCompanyFuzzyTypo(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	offer, err := ResolveCompany(context.Background(), store, "Eco Cort")
	require.NoError(t, err)
	assert.Equal(t, "eco_corp", offer.CompanyID)
}

func TestResolveCompanySubstringFallback(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	offer, err := ResolveCompany(context.Background(), store, "Zero")
	require.NoError(t, err)
	assert.Equal(t, "carbon_zero", offer.CompanyID)
}

func TestResolveCompanyNotFound(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	_, err := ResolveCompany(context.Background(), store, "Acme Rockets")
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestResolveCompanyEmptyReference(t *testing.T) {
	store := NewInMemoryStore(testOffers()...)

	_, err := ResolveCompany(context.Background(), store, "   ")
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("eco corp", "eco corp"), 0.0001)
	assert.Greater(t, similarity("eco corp", "eco cort"), 0.6)
	assert.Less(t, similarity("eco corp", "zzzzzzzz"), 0.2)
}
