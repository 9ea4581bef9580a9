package driver

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/logger"
	"github.com/kazuph/tab-transfer/internal/platform"
)

// Option customizes a driver at construction
type Option func(*options)

type options struct {
	runner   platform.Runner
	log      zerolog.Logger
	probe    platform.Probe
	channel  func() channel.Channel
	interval time.Duration
}

// WithRunner sets the runner used for host tools
func WithRunner(r platform.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithLogger sets the logger handed to the driver and its channel
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithProbe replaces the variant's environment probe
func WithProbe(p platform.Probe) Option {
	return func(o *options) { o.probe = p }
}

// WithChannel replaces the variant's channel constructor
func WithChannel(fn func() channel.Channel) Option {
	return func(o *options) { o.channel = fn }
}

// WithReopenInterval sets the minimum pause between two reopen requests; zero disables pacing
func WithReopenInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func buildOptions(opts []Option) options {
	o := options{
		log:      logger.WithComponent("driver"),
		interval: config.ReopenInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.runner == nil {
		o.runner = platform.NewExecRunner(o.log)
	}

	return o
}

func (o options) probeOr(def platform.Probe) platform.Probe {
	if o.probe != nil {
		return o.probe
	}

	return def
}

func (o options) channelOr(def func() channel.Channel) func() channel.Channel {
	if o.channel != nil {
		return o.channel
	}

	return def
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(interval), 1)
}

// Factory creates a fresh driver for one run
type Factory func(cfg config.DriverConfig, opts ...Option) Driver

var factories = map[string]Factory{
	"android": func(cfg config.DriverConfig, opts ...Option) Driver { return NewAndroidDriver(cfg, opts...) },
	"iphone":  func(cfg config.DriverConfig, opts ...Option) Driver { return NewIphoneDriver(cfg, opts...) },
	"legacy":  func(cfg config.DriverConfig, opts ...Option) Driver { return NewLegacyDriver(cfg, opts...) },
}

var aliases = map[string]string{
	"ios": "iphone",
}

// New creates the driver registered under name
func New(name string, cfg config.DriverConfig, opts ...Option) (Driver, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}

	factory, ok := factories[key]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	return factory(cfg, opts...), nil
}

// Names lists the registered drivers
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
