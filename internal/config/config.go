package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	Broker         BrokerConfig
}

// BrokerConfig tunes the realtime pairing broker. All durations are
// validated up front so the dispatcher never has to guard against zero
// timers.
type BrokerConfig struct {
	// MinSessionLength and MaxSessionLength bound the client-supplied
	// session length preference. Preferences outside the range are clamped.
	MinSessionLength time.Duration
	MaxSessionLength time.Duration
	// DefaultSessionLength is used when a ticket carries no preference.
	DefaultSessionLength time.Duration
	// SkipWindowCap caps the tail portion of a session during which an
	// early skip is accepted. The effective window is the smaller of the
	// cap and a quarter of the session length.
	SkipWindowCap time.Duration
	// DecisionWindow bounds how long both sides have to submit a decision
	// once the session timer expires. A side that stays silent is recorded
	// as a skip.
	DecisionWindow time.Duration
	// MaxRoomParticipants bounds the mesh size of a live room, owner
	// included.
	MaxRoomParticipants int
}

func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		MinSessionLength:     30 * time.Second,
		MaxSessionLength:     10 * time.Minute,
		DefaultSessionLength: 3 * time.Minute,
		SkipWindowCap:        30 * time.Second,
		DecisionWindow:       15 * time.Second,
		MaxRoomParticipants:  4,
	}
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, broker BrokerConfig) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if err := validateBrokerConfig(broker); err != nil {
		return nil, fmt.Errorf("broker config: %w", err)
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		Broker:         broker,
	}, nil
}

func validateBrokerConfig(bc BrokerConfig) error {
	if bc.MinSessionLength <= 0 {
		return fmt.Errorf("min session length must be positive")
	}
	if bc.MaxSessionLength < bc.MinSessionLength {
		return fmt.Errorf("max session length cannot be less than min session length")
	}
	if bc.DefaultSessionLength < bc.MinSessionLength || bc.DefaultSessionLength > bc.MaxSessionLength {
		return fmt.Errorf("default session length must be within session length bounds")
	}
	if bc.SkipWindowCap < 0 {
		return fmt.Errorf("skip window cap cannot be negative")
	}
	if bc.DecisionWindow <= 0 {
		return fmt.Errorf("decision window must be positive")
	}
	if bc.MaxRoomParticipants < 2 {
		return fmt.Errorf("max room participants must be at least 2")
	}
	return nil
}
