package attlink

/*
 * attlink
 *
 * Host side of the attitude link: a byte-at-a-time frame decoder bound to a
 * serial transport, with per-type subscriptions and automatic reconnect.
 *
 * License: MIT License
 */

import (
	"errors"
	"fmt"
	"strings"
	"time"

	serial "github.com/albenik/go-serial/v2"
	"github.com/albenik/go-serial/v2/enumerator"
	bugst "go.bug.st/serial"
)

// Default USB bridge of the device.
const (
	VendorID    = "0403"
	ProductID   = "6015"
	DefaultBaud = 115200
)

var (
	ErrNoPorts      = errors.New("attlink: no serial ports found")
	ErrPortNotFound = errors.New("attlink: no matching USB port found")
)

// PortConfig selects the serial port. An empty Device means USB discovery by
// VendorID and ProductID.
type PortConfig struct {
	Device    string
	VendorID  string
	ProductID string
	Baud      int
}

// SerialDialer returns a Dialer for cfg.
func SerialDialer(cfg PortConfig) Dialer {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.Device != "" {
		return func() (*Transport, error) {
			return OpenDevice(cfg.Device, cfg.Baud)
		}
	}
	if cfg.VendorID == "" {
		cfg.VendorID = VendorID
	}
	if cfg.ProductID == "" {
		cfg.ProductID = ProductID
	}
	return func() (*Transport, error) {
		return FindUSBPort(cfg.VendorID, cfg.ProductID, cfg.Baud)
	}
}

// FindUSBPort opens the first USB serial port matching vid and pid.
func FindUSBPort(vid, pid string, baud int) (*Transport, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, ErrNoPorts
	}
	for _, port := range ports {
		if !port.IsUSB || !strings.EqualFold(port.VID, vid) || !strings.EqualFold(port.PID, pid) {
			continue
		}
		serPort, err := serial.Open(port.Name, usbPortOptions(baud)...)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", port.Name, err)
		}
		return &Transport{
			ReadWriteCloser: serPort,
			PortName:        port.Name,
			VendorID:        port.VID,
			ProductID:       port.PID,
			SerialNumber:    port.SerialNumber,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s:%s", ErrPortNotFound, vid, pid)
}

// readTimeoutMs bounds a blocking Read on an idle line.
const readTimeoutMs = 1000

func usbPortOptions(baud int) []serial.Option {
	return []serial.Option{
		serial.WithBaudrate(baud),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(readTimeoutMs),
	}
}

// OpenDevice opens a serial device by path, e.g. /dev/ttyUSB0 or COM3.
func OpenDevice(path string, baud int) (*Transport, error) {
	if path == "" {
		return nil, errors.New("attlink: no device path provided")
	}
	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	// Read returns (0, nil) after the timeout.
	if err := port.SetReadTimeout(readTimeoutMs * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &Transport{ReadWriteCloser: port, PortName: path}, nil
}
