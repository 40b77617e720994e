// Package mqtt publishes coordinator updates to an MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config holds MQTT connection configuration.
type Config struct {
	Broker         string        `yaml:"broker"` // e.g. tcp://localhost:1883
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Client wraps a paho client with synchronous publishing.
type Client struct {
	client  mqttLib.Client
	timeout time.Duration
}

// Connect dials the broker. The bridge status topic is set to "offline" as
// the last will and flipped to "online" on every (re)connect.
func Connect(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "fleetwatch-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	statusTopic := StatusTopic(cfg.TopicPrefix)

	opts := mqttLib.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetWill(statusTopic, "offline", cfg.QoS, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqttLib.Client) {
		slog.Info("Connected to MQTT broker", "broker", cfg.Broker)
		c.Publish(statusTopic, cfg.QoS, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqttLib.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	})

	client := mqttLib.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client, timeout: cfg.ConnectTimeout}, nil
}

// Publish sends a message and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(250)
	return nil
}
