package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// DriverPositionHandler receives raw GPS fixes from the fleet.
type DriverPositionHandler func(driverID string, pos core.GeoPoint)

// DriverFeedConfig configures the MQTT subscription.
type DriverFeedConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic must contain a single-level wildcard for the driver id,
	// e.g. "fleet/drivers/+/location".
	Topic string
}

// DriverFeed subscribes to per-driver GPS topics on an MQTT broker and
// forwards position fixes to the handler.
type DriverFeed struct {
	cfg     DriverFeedConfig
	client  mqtt.Client
	handler DriverPositionHandler
	logger  *slog.Logger
}

// NewDriverFeed creates a driver GPS feed. Start must be called to
// connect and subscribe.
func NewDriverFeed(cfg DriverFeedConfig, handler DriverPositionHandler, logger *slog.Logger) *DriverFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriverFeed{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Start connects to the broker and subscribes to the driver topic.
func (f *DriverFeed) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(f.cfg.Broker)
	opts.SetClientID(f.cfg.ClientID)
	if f.cfg.Username != "" {
		opts.SetUsername(f.cfg.Username)
		opts.SetPassword(f.cfg.Password)
	}
	opts.SetDefaultPublishHandler(f.onMessage)

	f.client = mqtt.NewClient(opts)
	if token := f.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect failed: %w", token.Error())
	}

	if token := f.client.Subscribe(f.cfg.Topic, 0, nil); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe to %s failed: %w", f.cfg.Topic, token.Error())
	}

	f.logger.Info("Subscribed to driver GPS feed", "topic", f.cfg.Topic)
	return nil
}

// Stop disconnects from the broker.
func (f *DriverFeed) Stop() {
	if f.client != nil && f.client.IsConnected() {
		f.client.Disconnect(250)
	}
}

func (f *DriverFeed) onMessage(client mqtt.Client, msg mqtt.Message) {
	driverID, ok := driverIDFromTopic(msg.Topic())
	if !ok {
		f.logger.Debug("Could not extract driver id from topic", "topic", msg.Topic())
		return
	}

	var payload struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		f.logger.Debug("Undecodable GPS payload", "driver", driverID, "error", err)
		return
	}

	if f.handler != nil {
		f.handler(driverID, core.GeoPoint{Lat: payload.Lat, Lng: payload.Lng})
	}
}

// driverIDFromTopic extracts the driver id segment from topics shaped
// like "fleet/drivers/<id>/location".
func driverIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	for i, part := range parts {
		if part == "drivers" && i+1 < len(parts) {
			return parts[i+1], true
		}
	}
	return "", false
}
