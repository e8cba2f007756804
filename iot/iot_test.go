package iot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEvictsOldest(t *testing.T) {
	cache := NewCache(3)
	base := time.Now()

	for i := 1; i <= 4; i++ {
		cache.Add(Reading{DeviceID: "d1", CO2Tons: float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	assert.Equal(t, 3, cache.Len())

	recent := cache.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, 4.0, recent[0].CO2Tons)
	assert.Equal(t, 2.0, recent[2].CO2Tons)
}

func TestCacheRecentLimit(t *testing.T) {
	cache := NewCache(10)
	for i := 0; i < 5; i++ {
		cache.Add(Reading{DeviceID: "d1", CO2Tons: float64(i), Timestamp: time.Now()})
	}

	assert.Len(t, cache.Recent(2), 2)
	assert.Len(t, cache.Recent(0), 5)
	assert.Len(t, cache.Recent(100), 5)
}

func TestCacheLatestPerDevice(t *testing.T) {
	cache := NewCache(10)
	cache.Add(Reading{DeviceID: "d1", CO2Tons: 1})
	cache.Add(Reading{DeviceID: "d2", CO2Tons: 2})
	cache.Add(Reading{DeviceID: "d1", CO2Tons: 3})

	latest, ok := cache.Latest("d1")
	require.True(t, ok)
	assert.Equal(t, 3.0, latest.CO2Tons)

	_, ok = cache.Latest("d9")
	assert.False(t, ok)

	assert.Equal(t, []string{"d1", "d2"}, cache.Devices())
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Add(Reading{DeviceID: fmt.Sprintf("d%d", n), CO2Tons: float64(j), Timestamp: time.Now()})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Recent(10)
				cache.Devices()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, cache.Len())
}

func TestPredictExtrapolatesRate(t *testing.T) {
	cache := NewCache(10)
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	// 6 tons over 2 hours = 3 tons/hour.
	cache.Add(Reading{DeviceID: "d1", CO2Tons: 2, Timestamp: base})
	cache.Add(Reading{DeviceID: "d1", CO2Tons: 2, Timestamp: base.Add(time.Hour)})
	cache.Add(Reading{DeviceID: "d1", CO2Tons: 2, Timestamp: base.Add(2 * time.Hour)})

	prediction, err := Predict(cache, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 72, prediction.PredictedCredits)
	assert.Equal(t, 3, prediction.ReadingsUsed)
	assert.InDelta(t, 3.0, prediction.EmissionRate, 0.001)
	assert.Equal(t, "iot_extrapolation", prediction.Source)
	assert.GreaterOrEqual(t, prediction.Confidence, 0.5)
	assert.LessOrEqual(t, prediction.Confidence, 0.95)
}

func TestPredictNotEnoughData(t *testing.T) {
	cache := NewCache(10)
	cache.Add(Reading{DeviceID: "d1", CO2Tons: 1, Timestamp: time.Now()})

	_, err := Predict(cache, time.Hour)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestPredictZeroSpan(t *testing.T) {
	cache := NewCache(10)
	ts := time.Now()
	for i := 0; i < 3; i++ {
		cache.Add(Reading{DeviceID: "d1", CO2Tons: 1, Timestamp: ts})
	}

	_, err := Predict(cache, time.Hour)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestConfidenceShrinksWithHorizon(t *testing.T) {
	short := confidence(50, time.Hour)
	long := confidence(50, 168*time.Hour)
	assert.Greater(t, short, long)
}
