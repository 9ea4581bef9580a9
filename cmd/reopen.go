package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/driver"
	"github.com/kazuph/tab-transfer/internal/format"
	"github.com/kazuph/tab-transfer/internal/service"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

func (a *app) reopenCmd() *cobra.Command {
	var (
		f        copyFlags
		platform string
	)

	cmd := &cobra.Command{
		Use:   "reopen [file]",
		Short: "Reopen saved tabs on a mobile device",
		Long: `Reopen previously saved tabs on an Android or iOS device.

The file is read as JSON, or as YAML for .yaml/.yml files. Every tab is
opened independently; tabs that fail are reported and the rest still open.

For Android:
- Uses ADB and the Chrome DevTools HTTP endpoint (/json/new)

For iOS:
- Uses iOS WebKit Debug Proxy and evaluates window.open in the first
  inspectable page

Examples:
  tab-transfer reopen --platform android tabs.json
  tab-transfer reopen --platform iphone --port 9222 saved-tabs.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := tabs.DefaultFile
			if len(args) > 0 {
				file = args[0]
			}

			records, err := format.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			cfg := config.Resolve(f.options(a.debug), a.now(), a.out)

			drv, err := driver.New(platform, cfg, a.driverOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a.out.Note("Reopening %d tabs on %s device...", len(records), drv.Name())

			result, err := service.New(cfg, a.out).Reopen(ctx, drv, records)
			var ce *service.CopyTabsError
			if err != nil && !(errors.As(err, &ce) && ce.Kind == driver.PartialReopenFailure) {
				return err
			}

			a.out.Success("Reopened %d of %d tabs.", len(result.Opened), len(records))
			return err
		},
	}

	addConnectionFlags(cmd, &f, copyCommand{socket: true, serial: true})
	cmd.Flags().StringVarP(&platform, "platform", "P", "", "Target platform (android, iphone or legacy) [required]")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}
