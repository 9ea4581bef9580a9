// Package config resolves raw command options into the validated driver
// configuration shared by every driver variant.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"

	"github.com/kazuph/tab-transfer/internal/console"
)

const (
	// DefaultPort is the well-known remote debugging port
	DefaultPort = 9222
	// DefaultSocket is the abstract socket Chrome on Android listens on
	DefaultSocket = "chrome_devtools_remote"

	DefaultTimeout = 10 * time.Second
	MinTimeout     = 10 * time.Second

	// ReopenInterval is the pause between two reopen requests
	ReopenInterval = 100 * time.Millisecond

	maxPort = 65535
)

// Options are raw, typed command inputs before validation
type Options struct {
	Port           int
	TimeoutSeconds int
	Date           bool
	SkipCheck      bool
	Socket         string
	Serial         string
	Debug          bool
}

// DriverConfig holds the resolved configuration for one run
type DriverConfig struct {
	Port      int           `json:"port"`
	Timeout   time.Duration `json:"timeout"`
	FileDate  *time.Time    `json:"fileDate,omitempty"`
	SkipCheck bool          `json:"skipCheck"`
	Socket    string        `json:"socket"`
	Serial    string        `json:"serial,omitempty"`
	Debug     bool          `json:"debug"`
}

// Default returns the configuration used when no options are given
func Default() DriverConfig {
	return DriverConfig{
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
		Socket:  DefaultSocket,
	}
}

// Resolve validates opts. Out-of-range port and timeout values fall back to
// their defaults and emit exactly one warning each.
func Resolve(opts Options, now time.Time, out console.Output) DriverConfig {
	cfg := Default()
	cfg.SkipCheck = opts.SkipCheck
	cfg.Serial = opts.Serial
	cfg.Debug = opts.Debug

	if opts.Port > 0 && opts.Port <= maxPort {
		cfg.Port = opts.Port
	} else {
		out.Warning("Invalid port %d, falling back to default %d.", opts.Port, DefaultPort)
	}

	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	if timeout >= MinTimeout {
		cfg.Timeout = timeout
	} else {
		out.Warning("Timeout of %ds is below the minimum of %ds, falling back to default %ds.",
			opts.TimeoutSeconds, int(MinTimeout/time.Second), int(DefaultTimeout/time.Second))
	}

	if opts.Socket != "" {
		cfg.Socket = opts.Socket
	}

	if opts.Date {
		date := now
		cfg.FileDate = &date
	}

	return cfg
}

// LoadEnv loads environment overrides (tool paths, log settings) from the
// given .env files. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}
