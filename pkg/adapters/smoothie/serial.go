package smoothie

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal serial connection the driver needs.
type Port interface {
	io.ReadWriter
	io.Closer
}

// SerialConfig describes how to open the controller's serial port.
type SerialConfig struct {
	Path        string        `json:"port" yaml:"port" mapstructure:"port"`
	BaudRate    int           `json:"baud" yaml:"baud" mapstructure:"baud"`
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
}

// Normalize applies defaults for unset values.
func (c SerialConfig) Normalize() SerialConfig {
	if c.BaudRate <= 0 {
		c.BaudRate = 115200
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	return c
}

// Mode converts the config into the structure go.bug.st/serial opens ports with.
func (c SerialConfig) Mode() *serial.Mode {
	c = c.Normalize()
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenPort opens a real serial port with the configured read timeout.
func OpenPort(cfg SerialConfig) (Port, error) {
	cfg = cfg.Normalize()
	if cfg.Path == "" {
		return nil, fmt.Errorf("serial port path is required")
	}
	port, err := serial.Open(cfg.Path, cfg.Mode())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Path, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Path, err)
	}
	return port, nil
}
