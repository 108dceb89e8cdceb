package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixedVersion struct {
	version uint
	dirty   bool
	err     error
}

func (f fixedVersion) Version() (uint, bool, error) {
	return f.version, f.dirty, f.err
}

func TestLogSchemaVersion(t *testing.T) {
	tests := []struct {
		name    string
		source  fixedVersion
		level   zapcore.Level
		message string
	}{
		{"clean", fixedVersion{version: 1}, zapcore.InfoLevel, "Database migrations applied"},
		{"dirty", fixedVersion{version: 1, dirty: true}, zapcore.WarnLevel, "Database schema is dirty"},
		{"error", fixedVersion{err: errors.New("no version")}, zapcore.ErrorLevel, "Failed to read schema version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logSchemaVersion(tt.source, zap.New(core))

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, tt.message, entries[0].Message)
		})
	}
}
