package notifications

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
)

type failing struct{}

func (failing) SendAlert(string, string) error { return errors.New("offline") }

func TestMulti(t *testing.T) {
	rec := &Recorder{}
	m := Multi{NewLogNotifier(logger.Nop()), failing{}, rec}

	err := m.SendAlert(LevelWarning, "breaker tripped for group-1")
	assert.EqualError(t, err, "offline")
	assert.Equal(t, []Alert{{Level: LevelWarning, Message: "breaker tripped for group-1"}}, rec.Alerts())
}
