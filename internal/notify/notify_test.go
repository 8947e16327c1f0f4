package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInbox_DrainInOrder(t *testing.T) {
	in := NewInbox(3)
	Success(in, "one")
	Info(in, "two")
	Error(in, "three")
	Success(in, "four")

	got := in.Drain()
	assert.Equal(t, []Notice{
		{Level: LevelInfo, Message: "two"},
		{Level: LevelError, Message: "three"},
		{Level: LevelSuccess, Message: "four"},
	}, got)
	assert.Empty(t, in.Drain())
}

func TestMulti_FansOut(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	in := NewInbox(0)
	m := Multi{in, Log{Logger: zap.New(core)}, Nop{}}

	Success(m, "Kesh Ratn added to cart!")

	assert.Len(t, in.Drain(), 1)
	assert.Equal(t, 1, logs.FilterMessage("notice").Len())
}
