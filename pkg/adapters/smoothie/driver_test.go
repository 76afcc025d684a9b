package smoothie_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/aliquot/pkg/adapters/smoothie"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Hardware = (*smoothie.Driver)(nil)

const (
	okAck    = "ok\r\nok\r\n"
	position = "ok MCS: X:418.000 Y:353.000 Z:218.000 A:218.000 B:19.000 C:19.000\r\n"
)

// fakePort answers every command with a scripted reply.
type fakePort struct {
	mu       sync.Mutex
	read     bytes.Buffer
	commands []string
	reply    func(cmd string) string
	closed   bool
}

func newFakePort() *fakePort {
	return &fakePort{}
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := strings.TrimSuffix(string(p), "\r\n\r\n")
	f.commands = append(f.commands, cmd)

	resp := okAck
	if cmd == "M114.2" {
		resp = position + okAck
	}
	if f.reply != nil {
		if r := f.reply(cmd); r != "" {
			resp = r
		}
	}
	f.read.WriteString(resp)
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePort) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakePort) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = nil
}

func connect(t *testing.T, port *fakePort) *smoothie.Driver {
	t.Helper()
	d, err := smoothie.New(port, smoothie.WithInstrument(domain.MountLeft, "p300_single_v1"))
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))
	port.Reset()
	return d
}

func TestDriver_Connect(t *testing.T) {
	port := newFakePort()
	d, err := smoothie.New(port)
	require.NoError(t, err)

	require.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, []string{"", "M999", "G90", "M400", "M114.2", "M400"}, port.Commands())

	require.NoError(t, d.Close())
	assert.True(t, port.closed)
}

func TestDriver_MoveAndPosition(t *testing.T) {
	ctx := context.Background()
	port := newFakePort()
	d := connect(t, port)

	require.NoError(t, d.MoveTo(ctx, domain.MountLeft, domain.Point{X: 10, Y: 20.5, Z: 30.1234}, "", 400))
	assert.Equal(t, []string{"G0F24000 X10.000Y20.500Z30.123", "M400"}, port.Commands())

	pos, err := d.GantryPosition(ctx, domain.MountLeft, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: 418, Y: 353, Z: 218}, pos)
}

func TestDriver_RightMountUsesA(t *testing.T) {
	ctx := context.Background()
	port := newFakePort()
	d, err := smoothie.New(port, smoothie.WithInstrument(domain.MountRight, "p10_single_v1"))
	require.NoError(t, err)

	require.NoError(t, d.MoveTo(ctx, domain.MountRight, domain.Point{X: 1, Y: 2, Z: 3}, "", 10))
	assert.Equal(t, "G0F600 X1.000Y2.000A3.000", port.Commands()[0])
}

func TestDriver_TipAndLiquid(t *testing.T) {
	ctx := context.Background()
	port := newFakePort()
	d := connect(t, port)

	assert.ErrorIs(t, d.Aspirate(ctx, domain.MountLeft, 10, 1), domain.ErrHardwareFault)

	require.NoError(t, d.PickUpTip(ctx, domain.MountLeft, 51.83, 3, 1))
	cmds := strings.Join(port.Commands(), "\n")
	assert.Contains(t, cmds, "Z208.000")
	assert.Contains(t, cmds, "Z206.000", "third press goes deeper")

	port.Reset()
	require.NoError(t, d.Aspirate(ctx, domain.MountLeft, 185.1, 1))
	assert.Equal(t, []string{
		"M907 B0.500 G4P0.005", "M400",
		"G0F486 B12.000", "M400",
		"M907 B0.050 G4P0.005", "M400",
	}, port.Commands())

	info, err := d.AttachedInstrument(ctx, domain.MountLeft)
	require.NoError(t, err)
	assert.True(t, info.HasTip)
	assert.InDelta(t, 185.1, info.CurrentVolume, 1e-9)

	require.NoError(t, d.MoveTo(ctx, domain.MountLeft, domain.Point{Z: 100}, "", 400))
	assert.Contains(t, port.Commands()[len(port.Commands())-2], "Z151.830", "tip length offsets the nozzle")

	require.NoError(t, d.DropTip(ctx, domain.MountLeft))
	info, err = d.AttachedInstrument(ctx, domain.MountLeft)
	require.NoError(t, err)
	assert.False(t, info.HasTip)
	assert.Zero(t, info.CurrentVolume)
}

func TestDriver_ControllerError(t *testing.T) {
	ctx := context.Background()
	port := newFakePort()
	d := connect(t, port)

	port.reply = func(cmd string) string {
		if strings.HasPrefix(cmd, "G0") {
			return "ALARM: Hard limit +X\r\n" + okAck
		}
		return ""
	}

	err := d.MoveTo(ctx, domain.MountLeft, domain.Point{X: 500}, "", 400)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHardwareFault)

	var serr *smoothie.Error
	require.True(t, errors.As(err, &serr))
	assert.True(t, serr.Alarm)
	assert.Contains(t, serr.Response, "Hard limit")

	assert.Equal(t, []string{"G0F24000 X500.000Y0.000Z0.000", "M999"}, port.Commands())
}

func TestDriver_NoResponse(t *testing.T) {
	port := newFakePort()
	port.reply = func(string) string { return "garbage" }
	d, err := smoothie.New(port)
	require.NoError(t, err)

	err = d.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrHardwareFault)
}

func TestDriver_PauseResume(t *testing.T) {
	port := newFakePort()
	d := connect(t, port)

	require.NoError(t, d.Pause(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Delay(ctx, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, port.Commands(), "nothing is sent while paused")

	require.NoError(t, d.Resume(context.Background()))
	require.NoError(t, d.Delay(context.Background(), 1500*time.Millisecond))
	assert.Equal(t, []string{"G4P1.500", "M400"}, port.Commands())
}

func TestSerialConfig_Normalize(t *testing.T) {
	cfg := smoothie.SerialConfig{Path: "/dev/ttyACM0"}.Normalize()
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 115200, cfg.Mode().BaudRate)

	_, err := smoothie.OpenPort(smoothie.SerialConfig{})
	assert.Error(t, err)
}
