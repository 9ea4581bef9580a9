package driver

import (
	"context"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/loader"
	"github.com/kazuph/tab-transfer/internal/platform"
)

// IphoneListPath lists the pages of the first device on the proxy port
const IphoneListPath = "/json"

// IphoneDriver reads Safari and Chrome tabs from an iOS device through
// ios_webkit_debug_proxy
type IphoneDriver struct {
	*machine
}

var _ Driver = (*IphoneDriver)(nil)

// NewIphoneDriver creates a new iOS driver
func NewIphoneDriver(cfg config.DriverConfig, opts ...Option) *IphoneDriver {
	o := buildOptions(opts)
	log := o.log.With().Str("driver", "iphone").Logger()

	m := &machine{
		name:     "iphone",
		cfg:      cfg,
		listPath: IphoneListPath,
		limiter:  newLimiter(o.interval),
		log:      log,
		probe:    o.probeOr(platform.NewProxyProbe(o.runner)),
		newChannel: o.channelOr(func() channel.Channel {
			return channel.NewProxyTunnel(o.runner, channel.ProxyOptions{
				Port:    cfg.Port,
				Timeout: cfg.Timeout,
			}, log)
		}),
		restorer: func(ctx context.Context, ch channel.Channel) (loader.Restorer, error) {
			return loader.NewWebSocketTabRestorer(ctx, ch, IphoneListPath, log)
		},
	}

	return &IphoneDriver{machine: m}
}
