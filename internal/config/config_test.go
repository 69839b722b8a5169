package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	// "secret" base64-encoded
	const secret = "c2VjcmV0"

	t.Run("valid", func(t *testing.T) {
		cfg, err := NewConfig("localhost:8000", "host=localhost", secret, []string{"http://localhost:3000"}, DefaultBrokerConfig())
		require.NoError(t, err)

		assert.Equal(t, "localhost:8000", cfg.ServerAddr)
		assert.Equal(t, "host=localhost", cfg.DatabaseDSN)
		assert.Equal(t, []byte("secret"), cfg.SigningKey)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
		assert.Equal(t, DefaultBrokerConfig(), cfg.Broker)
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := NewConfig("", "dsn", secret, nil, DefaultBrokerConfig())
		assert.ErrorContains(t, err, "server address")

		_, err = NewConfig("localhost:8000", "", secret, nil, DefaultBrokerConfig())
		assert.ErrorContains(t, err, "database DSN")

		_, err = NewConfig("localhost:8000", "dsn", "", nil, DefaultBrokerConfig())
		assert.ErrorContains(t, err, "signing secret")
	})

	t.Run("rejects a malformed signing secret", func(t *testing.T) {
		_, err := NewConfig("localhost:8000", "dsn", "not-base64!!!", nil, DefaultBrokerConfig())
		assert.ErrorContains(t, err, "decode signing secret")
	})
}

func TestValidateBrokerConfig(t *testing.T) {
	tt := []struct {
		name    string
		mutate  func(*BrokerConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(bc *BrokerConfig) {},
		},
		{
			name:    "zero min session length",
			mutate:  func(bc *BrokerConfig) { bc.MinSessionLength = 0 },
			wantErr: "min session length",
		},
		{
			name:    "max below min",
			mutate:  func(bc *BrokerConfig) { bc.MaxSessionLength = bc.MinSessionLength - time.Second },
			wantErr: "max session length",
		},
		{
			name:    "default outside bounds",
			mutate:  func(bc *BrokerConfig) { bc.DefaultSessionLength = bc.MaxSessionLength + time.Second },
			wantErr: "default session length",
		},
		{
			name:    "negative skip window cap",
			mutate:  func(bc *BrokerConfig) { bc.SkipWindowCap = -time.Second },
			wantErr: "skip window cap",
		},
		{
			name:    "zero decision window",
			mutate:  func(bc *BrokerConfig) { bc.DecisionWindow = 0 },
			wantErr: "decision window",
		},
		{
			name:    "room of one",
			mutate:  func(bc *BrokerConfig) { bc.MaxRoomParticipants = 1 },
			wantErr: "max room participants",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			bc := DefaultBrokerConfig()
			tc.mutate(&bc)

			err := validateBrokerConfig(bc)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
