package iot

import (
	"testing"

	"github.com/hupe1980/carbonmesh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return DefaultTopic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestIngestor(cache *Cache) *Ingestor {
	return &Ingestor{cache: cache, topic: DefaultTopic, qos: 1, logger: logging.NoOpLogger{}}
}

func TestHandleMessageStoresReading(t *testing.T) {
	cache := NewCache(10)
	ing := newTestIngestor(cache)

	ing.handleMessage(nil, &fakeMessage{payload: []byte(`{"device_id":"sensor-1","co2_tons":2.5,"timestamp":1756310400}`)})

	require.Equal(t, 1, cache.Len())
	reading, ok := cache.Latest("sensor-1")
	require.True(t, ok)
	assert.Equal(t, 2.5, reading.CO2Tons)
	assert.Equal(t, int64(1756310400), reading.Timestamp.Unix())
}

func TestHandleMessageDropsMalformedJSON(t *testing.T) {
	cache := NewCache(10)
	ing := newTestIngestor(cache)

	ing.handleMessage(nil, &fakeMessage{payload: []byte(`{not json`)})

	assert.Equal(t, 0, cache.Len())
}

func TestHandleMessageDropsMissingDeviceID(t *testing.T) {
	cache := NewCache(10)
	ing := newTestIngestor(cache)

	ing.handleMessage(nil, &fakeMessage{payload: []byte(`{"co2_tons":1.0}`)})

	assert.Equal(t, 0, cache.Len())
}

func TestHandleMessageDefaultsTimestamp(t *testing.T) {
	cache := NewCache(10)
	ing := newTestIngestor(cache)

	ing.handleMessage(nil, &fakeMessage{payload: []byte(`{"device_id":"sensor-2","co2_tons":1.0}`)})

	reading, ok := cache.Latest("sensor-2")
	require.True(t, ok)
	assert.False(t, reading.Timestamp.IsZero())
}
