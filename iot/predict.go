package iot

import (
	"errors"
	"time"
)

// ErrNotEnoughData is returned when the cache holds too few readings to
// extrapolate from.
var ErrNotEnoughData = errors.New("iot: not enough sensor data to predict")

// minReadingsForPrediction readings are needed before a trend means anything.
const minReadingsForPrediction = 3

// Prediction is an extrapolated credit demand over a future horizon.
type Prediction struct {
	PredictedCredits int           `json:"predicted_credits"`
	Confidence       float64       `json:"confidence"`
	Horizon          time.Duration `json:"-"`
	HorizonHours     int           `json:"horizon_hours"`
	ReadingsUsed     int           `json:"readings_used"`
	EmissionRate     float64       `json:"emission_rate_tons_per_hour"`
	Source           string        `json:"source"`
}

// Predict extrapolates credit demand from the recent emission readings in the
// cache. The emission rate is the observed total CO2 divided by the observed
// time span; demand over the horizon is rate times horizon, one credit per
// ton. Confidence grows with sample size and shrinks with horizon length.
func Predict(cache *Cache, horizon time.Duration) (*Prediction, error) {
	readings := cache.Recent(0)
	if len(readings) < minReadingsForPrediction {
		return nil, ErrNotEnoughData
	}

	// Recent returns newest first.
	newest := readings[0].Timestamp
	oldest := readings[len(readings)-1].Timestamp
	span := newest.Sub(oldest)
	if span <= 0 {
		return nil, ErrNotEnoughData
	}

	var totalTons float64
	for _, r := range readings {
		totalTons += r.CO2Tons
	}
	ratePerHour := totalTons / span.Hours()

	credits := int(ratePerHour * horizon.Hours())
	if credits < 0 {
		credits = 0
	}

	return &Prediction{
		PredictedCredits: credits,
		Confidence:       confidence(len(readings), horizon),
		Horizon:          horizon,
		HorizonHours:     int(horizon.Hours()),
		ReadingsUsed:     len(readings),
		EmissionRate:     ratePerHour,
		Source:           "iot_extrapolation",
	}, nil
}

// confidence scales with how much data backs the trend and how far out it is
// projected. Values stay in [0.5, 0.95].
func confidence(samples int, horizon time.Duration) float64 {
	c := 0.5 + 0.45*float64(samples)/float64(DefaultCacheSize)
	if c > 0.95 {
		c = 0.95
	}
	// Long horizons are less certain: lose up to 0.2 over a full week.
	penalty := 0.2 * horizon.Hours() / (7 * 24)
	if penalty > 0.2 {
		penalty = 0.2
	}
	c -= penalty
	if c < 0.5 {
		c = 0.5
	}
	return c
}
