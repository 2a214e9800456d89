// Package mqtt carries event batches through an MQTT broker. Each side
// publishes its batches on its own topic and subscribes to the peer's.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Channel implements transport.Channel on top of Eclipse Paho.
type Channel struct {
	cli   pahoClient
	cfg   Config
	inbox *transport.Inbox
	log   logger.Logger
}

var _ transport.Channel = (*Channel)(nil)

// NewChannel connects to the broker and subscribes to the peer topic. The
// subscription is renewed on every reconnect.
func NewChannel(cfg Config, log logger.Logger) (*Channel, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("robodelivery-%s-%s", cfg.Role, uuid.NewString())
	}
	if log == nil {
		log = logger.New("mqtt")
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	ch := &Channel{cfg: cfg, inbox: transport.NewInbox(), log: log}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected as %s", cfg.ClientID)
		if token := c.Subscribe(cfg.InTopic(), cfg.QoS, ch.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.InTopic(), token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		reconnects.Inc()
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, token.Error())
	}
	ch.cli = c
	return ch, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectRetry(true)
	if cfg.BackoffMS > 0 {
		opts.SetConnectRetryInterval(cfg.backoff())
	}
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

func (c *Channel) onMessage(_ paho.Client, msg paho.Message) {
	messagesReceived.Inc()
	batch, diags, err := events.DecodeBatch(msg.Payload())
	if err != nil {
		decodeErrors.Inc()
		messagesDropped.WithLabelValues("decode").Inc()
		c.log.Errorf("dropping batch from %s: %v", msg.Topic(), err)
		return
	}
	for _, d := range diags {
		decodeErrors.Inc()
		c.log.Warnf("skipping event: %v", d)
	}
	c.inbox.Push(batch)
}

// Send publishes b on the outbound topic, retrying failed publishes with an
// exponential backoff.
func (c *Channel) Send(ctx context.Context, b events.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.cli.IsConnected() {
		messagesDropped.WithLabelValues("disconnected").Inc()
		return transport.ErrNotConnected
	}
	payload, err := events.EncodeBatch(b)
	if err != nil {
		return fmt.Errorf("mqtt: encode batch: %w", err)
	}
	topic := c.cfg.OutTopic()
	var publishErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		token := c.cli.Publish(topic, c.cfg.QoS, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			messagesSent.Inc()
			return nil
		}
		c.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.backoff() * time.Duration(1<<attempt)):
		}
	}
	messagesDropped.WithLabelValues("publish").Inc()
	return fmt.Errorf("mqtt: publish %s: %w", topic, publishErr)
}

// Connected reports whether the broker connection is up.
func (c *Channel) Connected() bool { return c.cli != nil && c.cli.IsConnected() }

// Poll returns every event received since the previous call.
func (c *Channel) Poll() events.Batch { return c.inbox.Drain() }

// Close disconnects from the broker.
func (c *Channel) Close() error {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
	return nil
}
