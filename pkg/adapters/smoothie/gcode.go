package smoothie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/aliquot/pkg/domain"
)

const (
	gcodeHome            = "G28.2"
	gcodeMove            = "G0"
	gcodeDwell           = "G4"
	gcodeCurrentPosition = "M114.2"
	gcodeAbsoluteCoords  = "G90"
	gcodeResetFromError  = "M999"
	gcodeSetCurrent      = "M907"
	gcodeWait            = "M400"

	terminator = "\r\n\r\n"
	ack        = "ok\r\nok\r\n"

	roundingPrecision = 3
)

// Error is an error or alarm reported by the motion controller.
type Error struct {
	Command  string
	Response string
	Alarm    bool
}

func (e *Error) Error() string {
	kind := "error"
	if e.Alarm {
		kind = "alarm"
	}
	return fmt.Sprintf("smoothie %s: command=%q response=%q", kind, e.Command, e.Response)
}

// Unwrap lets callers match controller failures with domain.ErrHardwareFault.
func (e *Error) Unwrap() error {
	return domain.ErrHardwareFault
}

// ErrNoResponse is returned when the controller stops answering.
var ErrNoResponse = errors.New("smoothie did not respond")

// formatAxes renders axis targets as "X1.000Y2.000" in the given axis order.
func formatAxes(order string, values map[byte]float64) string {
	var b strings.Builder
	for i := 0; i < len(order); i++ {
		v, ok := values[order[i]]
		if !ok {
			continue
		}
		b.WriteByte(order[i])
		b.WriteString(strconv.FormatFloat(v, 'f', roundingPrecision, 64))
	}
	return b.String()
}

// parsePosition reads an M114.2 reply such as
// "ok MCS: X:418.000 Y:353.000 Z:218.000 A:218.000 B:19.000 C:19.000".
func parsePosition(resp string) (map[byte]float64, error) {
	fields := strings.Fields(resp)
	out := make(map[byte]float64, 6)
	for _, f := range fields {
		axis, value, ok := strings.Cut(f, ":")
		if !ok || len(axis) != 1 || !strings.Contains(axes, axis) {
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected position value %q: %w", f, err)
		}
		out[axis[0]] = v
	}
	if len(out) != len(axes) {
		return nil, fmt.Errorf("%w: unexpected position response %q", domain.ErrHardwareFault, resp)
	}
	return out, nil
}

// send writes one command followed by M400 and returns the command's reply.
// The caller must hold d.mu.
func (d *Driver) send(ctx context.Context, command string) (string, error) {
	if err := d.waitRunning(ctx); err != nil {
		return "", err
	}
	resp, err := d.exchange(command)
	if err != nil {
		return "", err
	}
	if _, err := d.exchange(gcodeWait); err != nil {
		return "", err
	}
	return resp, nil
}

func (d *Driver) exchange(command string) (string, error) {
	d.logger.Debug("Sending gcode", "command", command)
	if _, err := d.port.Write([]byte(command + terminator)); err != nil {
		return "", fmt.Errorf("%w: write %q: %w", domain.ErrHardwareFault, command, err)
	}
	raw, err := d.readAck()
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", domain.ErrHardwareFault, command, err)
	}
	resp := cleanResponse(command, raw)

	lower := strings.ToLower(resp)
	isAlarm := strings.Contains(lower, "alarm")
	if isAlarm || strings.Contains(lower, "error") {
		d.logger.Warn("Controller reported a failure", "command", command, "response", resp)
		d.resetFromError()
		return "", &Error{Command: command, Response: resp, Alarm: isAlarm}
	}
	return resp, nil
}

func (d *Driver) readAck() (string, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 256)
	for {
		n, err := d.port.Read(chunk)
		buf.Write(chunk[:n])
		if bytes.Contains(buf.Bytes(), []byte(ack)) {
			return buf.String(), nil
		}
		if err != nil {
			return buf.String(), err
		}
		if n == 0 {
			return buf.String(), ErrNoResponse
		}
	}
}

// resetFromError clears the controller's halt state. Failures are only logged.
func (d *Driver) resetFromError() {
	if _, err := d.port.Write([]byte(gcodeResetFromError + terminator)); err != nil {
		d.logger.Warn("Failed to reset controller", "err", err)
		return
	}
	if _, err := d.readAck(); err != nil {
		d.logger.Warn("Failed to reset controller", "err", err)
	}
}

// cleanResponse strips the ack, line breaks and any echo of the command.
func cleanResponse(command, raw string) string {
	resp := strings.Replace(raw, ack, "", 1)
	for _, part := range strings.Fields(command) {
		if strings.HasPrefix(resp, part) {
			resp = strings.TrimSpace(strings.TrimPrefix(resp, part))
		}
	}
	resp = strings.NewReplacer("\r", "", "\n", " ").Replace(resp)
	return strings.TrimSpace(resp)
}
