package actuator

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"gatewarden/internal/access"
)

type fakePort struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.written...)
}

type fakeOpener struct {
	mu      sync.Mutex
	ports   []*fakePort
	openErr error
	mode    *serial.Mode
}

func (o *fakeOpener) open(_ string, mode *serial.Mode) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.mode = mode
	port := &fakePort{}
	o.ports = append(o.ports, port)
	return port, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.ports)
}

var (
	openCmd  = []byte{0xA0, 0x01, 0x01, 0xA2}
	closeCmd = []byte{0xA0, 0x01, 0x00, 0xA1}
)

func newTestRelay(t *testing.T, opener *fakeOpener) *Relay {
	t.Helper()
	relay, err := New(Options{
		Device:        "/dev/ttyUSB0",
		Port:          PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "none"},
		OpenCommand:   openCmd,
		CloseCommand:  closeCmd,
		RetryInterval: 10 * time.Millisecond,
		Open:          opener.open,
	})
	require.NoError(t, err)
	return relay
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{OpenCommand: openCmd, CloseCommand: closeCmd})
	assert.Error(t, err, "device required")

	_, err = New(Options{Device: "/dev/ttyUSB0", OpenCommand: openCmd})
	assert.Error(t, err, "close command required")

	_, err = New(Options{Device: "/dev/ttyUSB0", OpenCommand: openCmd, CloseCommand: closeCmd, Port: PortOptions{StopBits: 3}})
	assert.Error(t, err, "bad stop bits")
}

func TestSerialModeDefaultsAndMapping(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	mode, err = PortOptions{BaudRate: 19200, DataBits: 7, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	_, err = PortOptions{Parity: "weird"}.SerialMode()
	assert.Error(t, err)
	_, err = PortOptions{DataBits: 9}.SerialMode()
	assert.Error(t, err)
}

func TestSyncWritesOnlyOnChange(t *testing.T) {
	opener := &fakeOpener{}
	relay := newTestRelay(t, opener)

	require.NoError(t, relay.sync(), "nothing desired yet")
	assert.Equal(t, 0, opener.opened())

	relay.Apply(access.BarrierStatus{State: access.BarrierOpen})
	require.NoError(t, relay.sync())
	require.NoError(t, relay.sync())

	relay.Apply(access.BarrierStatus{State: access.BarrierClosed})
	require.NoError(t, relay.sync())

	require.Equal(t, 1, opener.opened())
	writes := opener.ports[0].writes()
	require.Len(t, writes, 2)
	assert.True(t, bytes.Equal(openCmd, writes[0]))
	assert.True(t, bytes.Equal(closeCmd, writes[1]))

	status := relay.Status()
	assert.True(t, status.Online)
	assert.Equal(t, access.BarrierClosed, status.Applied)
	assert.Equal(t, 2, status.Writes)
}

func TestApplyIgnoresOlderRevision(t *testing.T) {
	opener := &fakeOpener{}
	relay := newTestRelay(t, opener)

	relay.Apply(access.BarrierStatus{State: access.BarrierClosed, Revision: 2})
	relay.Apply(access.BarrierStatus{State: access.BarrierOpen, Revision: 1})
	require.NoError(t, relay.sync())

	status := relay.Status()
	assert.Equal(t, access.BarrierClosed, status.Desired)
	assert.Equal(t, access.BarrierClosed, status.Applied)
	writes := opener.ports[0].writes()
	require.Len(t, writes, 1)
	assert.True(t, bytes.Equal(closeCmd, writes[0]))

	relay.Apply(access.BarrierStatus{State: access.BarrierOpen, Revision: 3})
	assert.Equal(t, access.BarrierOpen, relay.Status().Desired)
}

func TestSyncRetriesAfterOpenFailure(t *testing.T) {
	opener := &fakeOpener{openErr: errors.New("no such file or directory")}
	relay := newTestRelay(t, opener)

	relay.Apply(access.BarrierStatus{State: access.BarrierOpen})
	assert.Error(t, relay.sync())
	status := relay.Status()
	assert.False(t, status.Online)
	assert.Contains(t, status.LastError, "no such file")

	opener.mu.Lock()
	opener.openErr = nil
	opener.mu.Unlock()
	require.NoError(t, relay.sync())
	assert.True(t, relay.Status().Online)
	assert.Empty(t, relay.Status().LastError)
}

func TestWriteFailureReopensPort(t *testing.T) {
	opener := &fakeOpener{}
	relay := newTestRelay(t, opener)

	relay.Apply(access.BarrierStatus{State: access.BarrierOpen})
	require.NoError(t, relay.sync())

	opener.ports[0].writeErr = errors.New("input/output error")
	relay.Apply(access.BarrierStatus{State: access.BarrierClosed})
	assert.Error(t, relay.sync())
	assert.True(t, opener.ports[0].closed)

	require.NoError(t, relay.sync())
	require.Equal(t, 2, opener.opened())
	assert.True(t, bytes.Equal(closeCmd, opener.ports[1].writes()[0]))
}

func TestReconnectRewritesDesiredState(t *testing.T) {
	opener := &fakeOpener{}
	relay := newTestRelay(t, opener)

	relay.Apply(access.BarrierStatus{State: access.BarrierOpen})
	require.NoError(t, relay.sync())

	relay.Disconnect()
	assert.False(t, relay.Status().Online)
	relay.Reconnect()
	require.NoError(t, relay.sync())

	require.Equal(t, 2, opener.opened())
	assert.True(t, opener.ports[0].closed)
	assert.True(t, bytes.Equal(openCmd, opener.ports[1].writes()[0]))
}

func TestRunDrivesRelayUntilCancelled(t *testing.T) {
	opener := &fakeOpener{}
	relay := newTestRelay(t, opener)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	relay.Apply(access.BarrierStatus{State: access.BarrierOpen})
	require.Eventually(t, func() bool {
		return relay.Status().Applied == access.BarrierOpen
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, opener.ports[0].closed, "port closed on shutdown")
}
