package tcp

import (
	"errors"
	"time"
)

// Config describes one end of the framed TCP link.
type Config struct {
	// Addr is the listen address on the accepting side and the peer address
	// on the dialing side.
	Addr string `json:"addr"`
	// MaxFrameBytes caps the encoded size of one batch in both directions.
	MaxFrameBytes int `json:"max_frame_bytes"`
	// BackoffMS is the fixed delay between two dial attempts.
	BackoffMS int `json:"backoff_ms"`
	// MaxAttempts bounds consecutive failed dials. Zero retries forever.
	MaxAttempts    int `json:"max_attempts"`
	WriteTimeoutMS int `json:"write_timeout_ms"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:5000"
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = 1 << 20
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 500
	}
	if c.WriteTimeoutMS == 0 {
		c.WriteTimeoutMS = 2000
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxFrameBytes <= 0 {
		return errors.New("tcp: max_frame_bytes must be positive")
	}
	if c.BackoffMS < 0 || c.MaxAttempts < 0 || c.WriteTimeoutMS < 0 {
		return errors.New("tcp: backoff_ms, max_attempts and write_timeout_ms must not be negative")
	}
	return nil
}

func (c Config) backoff() time.Duration      { return time.Duration(c.BackoffMS) * time.Millisecond }
func (c Config) writeTimeout() time.Duration { return time.Duration(c.WriteTimeoutMS) * time.Millisecond }
