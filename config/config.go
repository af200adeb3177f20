package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ashajkofci/attlink"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "attmon.toml"

// Config holds all attmon configuration
type Config struct {
	Port    PortConfig    `toml:"port"`
	Link    LinkConfig    `toml:"link"`
	Log     LogConfig     `toml:"log"`
	Monitor MonitorConfig `toml:"monitor"`
}

// PortConfig selects the serial device. Device wins over USB discovery.
type PortConfig struct {
	Device    string `toml:"device"`
	VendorID  string `toml:"vendor_id"`
	ProductID string `toml:"product_id"`
	Baud      int    `toml:"baud"`
}

type LinkConfig struct {
	ReadBuffer int           `toml:"read_buffer"`
	MaxRetries int           `toml:"max_retries"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MonitorConfig controls how attmon shows frames.
type MonitorConfig struct {
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

const (
	ModeJSONL = "jsonl"
	ModeTUI   = "tui"
)

func Default() Config {
	return Config{
		Port: PortConfig{
			VendorID:  attlink.VendorID,
			ProductID: attlink.ProductID,
			Baud:      attlink.DefaultBaud,
		},
		Link: LinkConfig{
			ReadBuffer: attlink.ReadBufferSize,
			MaxRetries: attlink.MaxRetries,
			RetryDelay: attlink.RetryDelay,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Monitor: MonitorConfig{
			Mode: ModeJSONL,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// The result is not validated; callers apply overrides and then Validate.
func Load(path string) (Config, error) {
	conf := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return conf, nil
		}
		return conf, err
	}

	if err := toml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parse %s: %w", path, err)
	}
	return conf, nil
}

func (c Config) Validate() error {
	if c.Port.Baud <= 0 {
		return fmt.Errorf("config: invalid baud rate %d", c.Port.Baud)
	}
	if c.Port.Device == "" && (c.Port.VendorID == "" || c.Port.ProductID == "") {
		return errors.New("config: device or vendor_id/product_id required")
	}
	if c.Link.ReadBuffer <= 0 {
		return fmt.Errorf("config: invalid read_buffer %d", c.Link.ReadBuffer)
	}
	if c.Link.MaxRetries <= 0 {
		return fmt.Errorf("config: invalid max_retries %d", c.Link.MaxRetries)
	}
	if c.Link.RetryDelay < 0 {
		return fmt.Errorf("config: negative retry_delay %s", c.Link.RetryDelay)
	}
	if _, ok := attlink.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	switch strings.ToLower(c.Monitor.Mode) {
	case ModeJSONL, ModeTUI:
	default:
		return fmt.Errorf("config: unknown monitor mode %q", c.Monitor.Mode)
	}
	return nil
}

// SerialPort converts the [port] section for attlink.SerialDialer.
func (c Config) SerialPort() attlink.PortConfig {
	return attlink.PortConfig{
		Device:    c.Port.Device,
		VendorID:  c.Port.VendorID,
		ProductID: c.Port.ProductID,
		Baud:      c.Port.Baud,
	}
}

// LinkOptions converts the [link] section.
func (c Config) LinkOptions() []attlink.Option {
	return []attlink.Option{
		attlink.WithReadBufferSize(c.Link.ReadBuffer),
		attlink.WithMaxRetries(c.Link.MaxRetries),
		attlink.WithRetryDelay(c.Link.RetryDelay),
	}
}
