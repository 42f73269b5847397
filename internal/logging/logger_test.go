package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLevelIsInfo(t *testing.T) {
	t.Setenv("SOCSIM_LOG_LEVEL", "")
	assert.Equal(t, logrus.InfoLevel, New().GetLevel())
}

func TestNew_LevelFromEnv(t *testing.T) {
	t.Setenv("SOCSIM_LOG_LEVEL", "debug")
	assert.Equal(t, logrus.DebugLevel, New().GetLevel())

	t.Setenv("SOCSIM_LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, New().GetLevel())

	t.Setenv("SOCSIM_LOG_LEVEL", "error")
	assert.Equal(t, logrus.ErrorLevel, New().GetLevel())
}

func TestNew_JSONFormatFromEnv(t *testing.T) {
	t.Setenv("SOCSIM_LOG_FORMAT", "json")
	_, ok := New().Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNewWithComponent(t *testing.T) {
	entry := NewWithComponent("engine")
	require.NotNil(t, entry)
	assert.Equal(t, "engine", entry.Data["component"])
}
