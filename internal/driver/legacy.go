package driver

import (
	"context"
	"net/http"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/loader"
	"github.com/kazuph/tab-transfer/internal/platform"
)

// LegacyDriver keeps the behaviour of the earlier copy-tabs command: it
// only requires the adb binary, lets adb pick the attached device and opens
// tabs with GET as older Chrome builds expect.
type LegacyDriver struct {
	*machine
}

var _ Driver = (*LegacyDriver)(nil)

// NewLegacyDriver creates a new driver for the pre-subcommand CLI form
func NewLegacyDriver(cfg config.DriverConfig, opts ...Option) *LegacyDriver {
	o := buildOptions(opts)
	log := o.log.With().Str("driver", "legacy").Logger()

	m := &machine{
		name:     "legacy",
		cfg:      cfg,
		listPath: AndroidListPath,
		limiter:  newLimiter(o.interval),
		log:      log,
		probe:    o.probeOr(platform.NewADBProbe(o.runner, false, "")),
		newChannel: o.channelOr(func() channel.Channel {
			return channel.NewADBForward(o.runner, channel.ADBOptions{
				Port:    cfg.Port,
				Socket:  cfg.Socket,
				Timeout: cfg.Timeout,
				Serial:  cfg.Serial,
			}, log)
		}),
		restorer: func(_ context.Context, ch channel.Channel) (loader.Restorer, error) {
			return loader.NewHTTPTabRestorer(ch, http.MethodGet, log), nil
		},
	}

	return &LegacyDriver{machine: m}
}
