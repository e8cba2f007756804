// Package iot ingests emission sensor readings over MQTT, keeps a bounded
// in-memory window of recent data and derives credit demand predictions that
// feed the prebooking workflow.
package iot

import (
	"sort"
	"sync"
	"time"
)

// DefaultCacheSize is the number of readings the cache retains.
const DefaultCacheSize = 100

// Reading is one emission measurement from a sensor.
type Reading struct {
	DeviceID  string    `json:"device_id"`
	CO2Tons   float64   `json:"co2_tons"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache holds the most recent readings in a fixed-size ring plus the latest
// reading per device. It is safe for concurrent use; the MQTT ingest goroutine
// writes while tool calls read.
type Cache struct {
	mu     sync.RWMutex
	ring   []Reading
	next   int
	filled bool
	latest map[string]Reading
}

// NewCache creates a cache retaining the given number of readings
// (DefaultCacheSize when size <= 0).
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{ring: make([]Reading, size), latest: map[string]Reading{}}
}

// Add stores a reading, evicting the oldest when the window is full.
func (c *Cache) Add(r Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = r
	c.next++
	if c.next == len(c.ring) {
		c.next = 0
		c.filled = true
	}
	c.latest[r.DeviceID] = r
}

// Recent returns up to n readings, newest first. n <= 0 returns the whole
// window.
func (c *Cache) Recent(n int) []Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := c.next
	if c.filled {
		count = len(c.ring)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]Reading, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.next - i + len(c.ring)) % len(c.ring)
		out = append(out, c.ring[idx])
	}
	return out
}

// Latest returns the most recent reading for one device.
func (c *Cache) Latest(deviceID string) (Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.latest[deviceID]
	return r, ok
}

// Devices returns the known device ids, sorted.
func (c *Cache) Devices() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.latest))
	for id := range c.latest {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of retained readings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.filled {
		return len(c.ring)
	}
	return c.next
}
