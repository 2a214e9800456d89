package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"
)

// Roles of the two processes sharing a broker.
const (
	RoleWorld      = "world"
	RoleDispatcher = "dispatcher"
)

// Config defines the connection parameters of one side of the MQTT link.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// TopicPrefix namespaces the two batch topics: <prefix>/world carries
	// what the world sends and <prefix>/dispatcher what the dispatcher sends.
	TopicPrefix string `json:"topic_prefix"`
	// Role is world or dispatcher. The CLI fills it from the subcommand.
	Role       string      `json:"role"`
	QoS        byte        `json:"qos"`
	UseTLS     bool        `json:"use_tls"`
	ClientCert string      `json:"client_cert"`
	ClientKey  string      `json:"client_key"`
	CABundle   string      `json:"ca_bundle"`
	AuthMethod string      `json:"auth_method"`
	LWTTopic   string      `json:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload"`
	LWTQoS     byte        `json:"lwt_qos"`
	LWTRetain  bool        `json:"lwt_retain"`
	MaxRetries int         `json:"max_retries"`
	BackoffMS  int         `json:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "robodelivery"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Role != RoleWorld && c.Role != RoleDispatcher {
		return fmt.Errorf("mqtt: role must be %q or %q, got %q", RoleWorld, RoleDispatcher, c.Role)
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return errors.New("mqtt: qos must be 0, 1 or 2")
	}
	if c.MaxRetries < 0 || c.BackoffMS < 0 {
		return errors.New("mqtt: max_retries and backoff_ms must not be negative")
	}
	return nil
}

// OutTopic is where this side publishes its batches.
func (c Config) OutTopic() string { return c.TopicPrefix + "/" + c.Role }

// InTopic is where the peer publishes its batches.
func (c Config) InTopic() string {
	if c.Role == RoleWorld {
		return c.TopicPrefix + "/" + RoleDispatcher
	}
	return c.TopicPrefix + "/" + RoleWorld
}

func (c Config) backoff() time.Duration { return time.Duration(c.BackoffMS) * time.Millisecond }

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
