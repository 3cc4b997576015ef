package publish

import (
	"context"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MQTTConfig is the broker connection of one sensor.
type MQTTConfig struct {
	Host string
	Port int

	// Username is optional, Password is only used when it is set.
	Username string
	Password string

	// ClientID defaults to "sensorgen-<sensor>-<uuid>".
	ClientID string

	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Broker returns the broker URL.
func (c MQTTConfig) Broker() string {
	return "tcp://" + c.Host + ":" + strconv.Itoa(c.Port)
}

// MQTTPublisher publishes over an MQTT connection. Reconnects are
// disabled: a lost connection makes every following Publish fail with
// ErrNotConnected.
type MQTTPublisher struct {
	logger log.Logger
	cfg    MQTTConfig
	client mqtt.Client
}

// NewMQTTPublisher creates a publisher for the named sensor. It does
// not connect.
func NewMQTTPublisher(logger log.Logger, sensor string, cfg MQTTConfig) *MQTTPublisher {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("sensorgen-%s-%s", sensor, uuid.New().String())
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	logger = log.With(logger, "broker", cfg.Broker(), "client_id", cfg.ClientID)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker())
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		level.Warn(logger).Log("msg", "mqtt connection lost", "err", err)
	})

	return &MQTTPublisher{
		logger: logger,
		cfg:    cfg,
		client: mqtt.NewClient(opts),
	}
}

// Config returns the effective configuration, defaults applied.
func (p *MQTTPublisher) Config() MQTTConfig {
	return p.cfg
}

// Connect implements Publisher.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	level.Debug(p.logger).Log("msg", "connecting to mqtt broker")

	token := p.client.Connect()
	if err := wait(ctx, token, p.cfg.ConnectTimeout); err != nil {
		return errors.Wrapf(err, "connect %s", p.cfg.Broker())
	}

	level.Debug(p.logger).Log("msg", "mqtt connection established")
	return nil
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return errors.Wrapf(ErrNotConnected, "publish %s", topic)
	}

	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if err := wait(context.Background(), token, p.cfg.PublishTimeout); err != nil {
		return errors.Wrapf(err, "publish %s", topic)
	}
	return nil
}

// Close implements Publisher.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		// 250ms grace period for in-flight messages.
		p.client.Disconnect(250)
	}
	return nil
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Publisher = (*MQTTPublisher)(nil)
