package ircd

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narodnik/mvc-ircd/pkg/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestNew_Defaults(t *testing.T) {
	ir, err := New(Config{Logger: testLogger(), MonitorInterval: time.Hour})
	require.NoError(t, err)
	defer ir.Close()

	assert.NotNil(t, ir.Store)
	assert.NotNil(t, ir.View)
	assert.Equal(t, ir.Store.Root().ID(), ir.Store.Head().ID())
}

func TestSendMessage_AdvancesHead(t *testing.T) {
	ir, err := New(Config{Logger: testLogger(), Nick: "alice", MonitorInterval: time.Hour})
	require.NoError(t, err)
	defer ir.Close()

	first, err := ir.SendMessage("hello")
	require.NoError(t, err)
	assert.Equal(t, first, ir.Store.Head().ID())

	second, err := ir.SendMessage("world")
	require.NoError(t, err)
	assert.Equal(t, second, ir.Store.Head().ID())
	assert.Equal(t, 2, ir.Store.Height(ir.Store.Head()))
}

func TestReplay(t *testing.T) {
	ir, err := New(Config{Logger: testLogger(), Nick: "alice", MonitorInterval: time.Hour})
	require.NoError(t, err)
	defer ir.Close()

	_, err = ir.SendMessage("hello")
	require.NoError(t, err)

	events := ir.Replay()
	require.Len(t, events, 1)
	assert.Equal(t, types.PrivMsg{Nick: "alice", Msg: "hello"}, events[0].Action)

	assert.Empty(t, ir.Replay(), "no event may be replayed twice")
}

func TestComposeMessage(t *testing.T) {
	parent := types.Hash{0x01}
	ts := types.Now()

	event := ComposeMessage(parent, "bob", "bob message", ts)
	assert.Equal(t, parent, event.PreviousEventHash)
	assert.Equal(t, ts, event.Timestamp)
	assert.Equal(t, types.PrivMsg{Nick: "bob", Msg: "bob message"}, event.Action)
}
