package formakv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       LoggingConfig
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "production defaults", cfg: LoggingConfig{}, wantLevel: zapcore.InfoLevel},
		{name: "development defaults", cfg: LoggingConfig{Development: true}, wantLevel: zapcore.DebugLevel},
		{name: "explicit level", cfg: LoggingConfig{Level: "warn", Format: "console"}, wantLevel: zapcore.WarnLevel},
		{name: "debug json", cfg: LoggingConfig{Level: "debug", Format: "json"}, wantLevel: zapcore.DebugLevel},
		{name: "bad level", cfg: LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "bad encoding", cfg: LoggingConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}
