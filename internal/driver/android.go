package driver

import (
	"context"
	"net/http"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/loader"
	"github.com/kazuph/tab-transfer/internal/platform"
)

// AndroidListPath is the DevTools endpoint listing Chrome targets
const AndroidListPath = "/json/list"

// AndroidDriver reads Chrome tabs from a USB-attached Android device through
// an adb port forward
type AndroidDriver struct {
	*machine
}

var _ Driver = (*AndroidDriver)(nil)

// NewAndroidDriver creates a new Android driver
func NewAndroidDriver(cfg config.DriverConfig, opts ...Option) *AndroidDriver {
	o := buildOptions(opts)
	log := o.log.With().Str("driver", "android").Logger()

	m := &machine{
		name:     "android",
		cfg:      cfg,
		listPath: AndroidListPath,
		limiter:  newLimiter(o.interval),
		log:      log,
		probe:    o.probeOr(platform.NewADBProbe(o.runner, true, cfg.Serial)),
		newChannel: o.channelOr(func() channel.Channel {
			return channel.NewADBForward(o.runner, channel.ADBOptions{
				Port:    cfg.Port,
				Socket:  cfg.Socket,
				Timeout: cfg.Timeout,
				Serial:  cfg.Serial,
				USBOnly: true,
			}, log)
		}),
		restorer: func(_ context.Context, ch channel.Channel) (loader.Restorer, error) {
			return loader.NewHTTPTabRestorer(ch, http.MethodPut, log), nil
		},
	}

	return &AndroidDriver{machine: m}
}
