package marketplace

import (
	"context"
	"strings"
)

const similarityThreshold = 0.6

// ResolveCompany matches a free-form company reference against the offer
// inventory. Matching is tried in order: exact id, exact name, fuzzy name
// similarity above 0.6, then substring containment. Among equally plausible
// fuzzy matches the highest similarity wins; ties go to the cheaper offer.
func ResolveCompany(ctx context.Context, store Store, reference string) (*Offer, error) {
	offers, err := store.Search(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	ref := normalize(reference)
	if ref == "" {
		return nil, ErrCompanyNotFound
	}

	for i := range offers {
		if normalize(offers[i].CompanyID) == ref || normalize(offers[i].CompanyName) == ref {
			return &offers[i], nil
		}
	}

	var best *Offer
	bestScore := 0.0
	for i := range offers {
		score := similarity(ref, normalize(offers[i].CompanyName))
		if score < similarityThreshold {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && offers[i].OfferPrice < best.OfferPrice) {
			best = &offers[i]
			bestScore = score
		}
	}
	if best != nil {
		return best, nil
	}

	// Offers come back cheapest first, so the first substring hit is also
	// the cheapest one.
	for i := range offers {
		name := normalize(offers[i].CompanyName)
		if strings.Contains(name, ref) || strings.Contains(ref, name) {
			return &offers[i], nil
		}
	}

	return nil, ErrCompanyNotFound
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// similarity is a normalized Levenshtein ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
