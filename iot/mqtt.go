package iot

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hupe1980/carbonmesh/logging"
)

// DefaultTopic is the MQTT topic sensors publish emission readings to.
const DefaultTopic = "carbon_credit/sensor_data"

// sensorPayload is the wire form of a reading. Timestamp is unix seconds;
// when absent the ingest time is used.
type sensorPayload struct {
	DeviceID  string  `json:"device_id"`
	CO2Tons   float64 `json:"co2_tons"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// IngestorOptions configure the MQTT ingestor.
type IngestorOptions struct {
	// Topic to subscribe to.
	Topic string
	// QoS level for the subscription.
	QoS byte
	// ClientID presented to the broker.
	ClientID string
	// ConnectTimeout bounds the initial connect.
	ConnectTimeout time.Duration
	// Logger receives ingest diagnostics.
	Logger logging.Logger
}

// Ingestor subscribes to the sensor topic and feeds readings into a Cache.
// Malformed payloads are logged and dropped; they never stop the stream.
type Ingestor struct {
	client mqtt.Client
	cache  *Cache
	topic  string
	qos    byte
	logger logging.Logger
}

// NewIngestor connects to the broker and starts consuming readings.
func NewIngestor(brokerURL string, cache *Cache, optFns ...func(o *IngestorOptions)) (*Ingestor, error) {
	opts := IngestorOptions{
		Topic:          DefaultTopic,
		QoS:            1,
		ClientID:       "carbonmesh-iot",
		ConnectTimeout: 10 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ing := &Ingestor{cache: cache, topic: opts.Topic, qos: opts.QoS, logger: opts.Logger}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(ing.topic, ing.qos, ing.handleMessage); token.Wait() && token.Error() != nil {
				ing.logger.Error("iot.subscribe_failed", "topic", ing.topic, "error", token.Error().Error())
				return
			}
			ing.logger.Info("iot.subscribed", "topic", ing.topic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			ing.logger.Warn("iot.connection_lost", "error", err.Error())
		})

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", brokerURL, token.Error())
	}
	ing.client = client

	return ing, nil
}

func (ing *Ingestor) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var payload sensorPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		ing.logger.Warn("iot.malformed_payload", "topic", msg.Topic(), "error", err.Error())
		return
	}
	if payload.DeviceID == "" {
		ing.logger.Warn("iot.malformed_payload", "topic", msg.Topic(), "error", "missing device_id")
		return
	}

	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.Unix(payload.Timestamp, 0)
	}

	ing.cache.Add(Reading{DeviceID: payload.DeviceID, CO2Tons: payload.CO2Tons, Timestamp: ts})
	ing.logger.Debug("iot.reading", "device_id", payload.DeviceID, "co2_tons", payload.CO2Tons)
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (ing *Ingestor) Close() {
	if ing.client != nil && ing.client.IsConnected() {
		ing.client.Disconnect(250)
	}
}
