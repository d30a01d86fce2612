package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/purelifecenter/portal/core"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "")
		conf := core.NewConfig()
		assert.Equal(t, "DEV", conf.Env)
		assert.False(t, conf.Database.InMemory)
		assert.Equal(t, uint(3), conf.Training.SaveAttempts)
		assert.Equal(t, 500*time.Millisecond, conf.Training.SaveInitialBackoff)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("TEST_DATABASE_INMEMORY", "true")
		t.Setenv("TEST_SERVER_ADDR", ":9000")
		conf := core.NewConfig()
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.True(t, conf.Database.InMemory)
		assert.Equal(t, ":9000", conf.Server.Addr)
	})
}
