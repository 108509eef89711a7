package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid default", func(c *Config) {}, nil},
		{"missing language", func(c *Config) { c.Language = "" }, ErrInvalidConfig},
		{"bad sample width", func(c *Config) { c.SampleWidth = 4 }, ErrUnsupportedSampleWidth},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_LoggerDefaultsToNoOp(t *testing.T) {
	cfg := Config{}
	require.IsType(t, NoOpLogger{}, cfg.logger())

	cfg.Logger = NoOpLogger{}
	require.IsType(t, NoOpLogger{}, cfg.logger())
}
