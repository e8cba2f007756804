package marketplace

import "context"

// AllocationLine is one company's share of an allocation plan.
type AllocationLine struct {
	CompanyID   string  `json:"company_id"`
	CompanyName string  `json:"company_name"`
	Credits     int     `json:"credits"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// AllocationPlan is the result of spreading a credit demand across offers.
type AllocationPlan struct {
	Requested    int              `json:"requested"`
	Allocated    int              `json:"allocated"`
	Lines        []AllocationLine `json:"lines"`
	TotalCost    float64          `json:"total_cost"`
	AveragePrice float64          `json:"average_price"`
	// Status is "complete" when the full demand was covered, otherwise
	// "partial".
	Status string `json:"status"`
}

// Allocate plans a purchase of the requested credit volume greedily, taking
// from the cheapest offers first. It only plans; nothing is decremented.
func Allocate(ctx context.Context, store Store, requested int, f Filter) (*AllocationPlan, error) {
	plan := &AllocationPlan{Requested: requested, Status: "partial"}
	if requested <= 0 {
		return plan, nil
	}

	offers, err := store.Search(ctx, f)
	if err != nil {
		return nil, err
	}

	remaining := requested
	for _, o := range offers {
		if remaining == 0 {
			break
		}
		take := o.AvailableCredits
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		plan.Lines = append(plan.Lines, AllocationLine{
			CompanyID:   o.CompanyID,
			CompanyName: o.CompanyName,
			Credits:     take,
			UnitPrice:   o.OfferPrice,
			LineTotal:   float64(take) * o.OfferPrice,
		})
		plan.TotalCost += float64(take) * o.OfferPrice
		plan.Allocated += take
		remaining -= take
	}

	if plan.Allocated > 0 {
		plan.AveragePrice = plan.TotalCost / float64(plan.Allocated)
	}
	if plan.Allocated == requested {
		plan.Status = "complete"
	}
	return plan, nil
}
