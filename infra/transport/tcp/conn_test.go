package tcp

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/model"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/infra/logger"
)

var nop = logger.NopLogger{}

func listen(t *testing.T, cfg Config) *Conn {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	l, err := Listen(cfg, nop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func dial(t *testing.T, addr string) *Conn {
	t.Helper()
	d, err := Dial(Config{Addr: addr, BackoffMS: 10}, nop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func waitConnected(t *testing.T, conns ...*Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range conns {
		require.NoError(t, c.WaitConnected(ctx))
	}
}

func pollN(t *testing.T, c *Conn, n int) events.Batch {
	t.Helper()
	var got events.Batch
	require.Eventually(t, func() bool {
		got = append(got, c.Poll()...)
		return len(got) >= n
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte(`[]`)))
	require.NoError(t, writeFrame(&buf, []byte(`[{"kind":"low_battery","robot_number":1}]`)))
	assert.Equal(t, []byte{0, 0, 0, 2}, buf.Bytes()[:4])

	first, err := readFrame(&buf, 64)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(first))
	second, err := readFrame(&buf, 64)
	require.NoError(t, err)
	assert.Equal(t, `[{"kind":"low_battery","robot_number":1}]`, string(second))
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 100)
	buf.Write(hdr[:])
	_, err := readFrame(&buf, 10)
	assert.ErrorIs(t, err, transport.ErrFrameTooLarge)
}

func TestListenDialExchange(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	l := listen(t, Config{})
	d := dial(t, l.Addr().String())
	waitConnected(t, l, d)
	assert.NotEmpty(t, l.Session())

	order := events.NewOrder(1, model.Food{Size: 2}, model.Pt(4, 4), model.Pt(1, 2))
	require.NoError(t, l.Send(context.Background(), events.Batch{order}))
	assert.Equal(t, events.Batch{order}, pollN(t, d, 1))

	cmds := events.Batch{events.FoodStart(model.Pt(1, 2), 1, model.Food{Size: 2}), events.SpawnRobot(0, 50)}
	require.NoError(t, d.Send(context.Background(), cmds))
	assert.Equal(t, cmds, pollN(t, l, 2))

	assert.Equal(t, 2.0, testutil.ToFloat64(framesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(framesReceived))
}

func TestSendWithoutPeer(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	l := listen(t, Config{})

	err := l.Send(context.Background(), events.Batch{events.LowBattery(1)})

	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(framesDropped.WithLabelValues("disconnected")))
	assert.Empty(t, l.Poll())
}

func TestSendRejectsOversizeBatch(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	l := listen(t, Config{MaxFrameBytes: 16})

	err := l.Send(context.Background(), events.Batch{events.NewOrder(1, model.Food{Size: 1}, model.Pt(1, 1), model.Pt(2, 2))})

	assert.ErrorIs(t, err, transport.ErrFrameTooLarge)
}

func TestSendAfterClose(t *testing.T) {
	l := listen(t, Config{})
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Send(context.Background(), events.Batch{}), transport.ErrClosed)
	assert.ErrorIs(t, l.WaitConnected(context.Background()), transport.ErrClosed)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestDialGivesUp(t *testing.T) {
	d, err := Dial(Config{Addr: freeAddr(t), BackoffMS: 1, MaxAttempts: 2}, nop)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = d.WaitConnected(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, d.Connected())
}

func TestDialerRedialsAfterPeerRestart(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	addr := freeAddr(t)
	l, err := Listen(Config{Addr: addr}, nop)
	require.NoError(t, err)
	d := dial(t, addr)
	waitConnected(t, l, d)

	require.NoError(t, l.Close())
	l2 := listen(t, Config{Addr: addr})
	require.Eventually(t, func() bool { return l2.Connected() && d.Connected() }, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return d.Send(context.Background(), events.Batch{events.ReturnToBase(3)}) == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, events.ReturnToBase(3), pollN(t, l2, 1)[0])
	assert.GreaterOrEqual(t, testutil.ToFloat64(reconnects), 1.0)
}

func TestListenerAcceptsNextPeer(t *testing.T) {
	l := listen(t, Config{})
	first, err := Dial(Config{Addr: l.Addr().String(), BackoffMS: 10}, nop)
	require.NoError(t, err)
	waitConnected(t, l, first)
	session := l.Session()
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return !l.Connected() }, 5*time.Second, 5*time.Millisecond)

	second := dial(t, l.Addr().String())
	waitConnected(t, l, second)

	assert.NotEqual(t, session, l.Session())
	require.NoError(t, second.Send(context.Background(), events.Batch{events.LowBattery(2)}))
	assert.Equal(t, events.Batch{events.LowBattery(2)}, pollN(t, l, 1))
}

func TestMalformedFramesAreDropped(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	l := listen(t, Config{})
	raw, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer raw.Close()

	require.NoError(t, writeFrame(raw, []byte(`not json`)))
	require.NoError(t, writeFrame(raw, []byte(`[{"kind":"teleport"},{"kind":"low_battery","robot_number":3}]`)))

	assert.Equal(t, events.Batch{events.LowBattery(3)}, pollN(t, l, 1))
	assert.Equal(t, 2.0, testutil.ToFloat64(decodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(framesDropped.WithLabelValues("decode")))
}
