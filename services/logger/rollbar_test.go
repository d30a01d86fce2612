package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	usr := user.User{ID: "u1", Username: "ada", Email: "ada@test.com"}
	logger.Error("saving progress", errors.New("boom"), usr)
	logger.Info("started")

	out := buf.String()
	assert.Contains(t, out, "ERROR: saving progress")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "INFO: started")
	assert.NotContains(t, out, "ada@test.com")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	err := errors.New("boom")
	usr := user.User{ID: "u1"}
	args := logger.prepare("msg", []interface{}{err, usr, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
