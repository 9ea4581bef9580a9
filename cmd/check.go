package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/driver"
	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/service"
)

var adbHints = []string{
	"macOS: brew install --cask android-platform-tools",
	"Linux: sudo apt install android-tools-adb",
	"Windows: Download from https://developer.android.com/tools/releases/platform-tools",
}

var installHints = map[string][]string{
	"android": adbHints,
	"legacy":  adbHints,
	"iphone": {
		"macOS: brew install ios-webkit-debug-proxy",
		"Linux: See https://github.com/google/ios-webkit-debug-proxy",
		"Windows: Not officially supported",
	},
}

// checkPlatforms expands the check argument into driver names
func checkPlatforms(arg string) ([]string, error) {
	switch arg {
	case "", "all":
		return []string{"android", "iphone"}, nil
	case "ios":
		return []string{"iphone"}, nil
	}

	for _, name := range driver.Names() {
		if name == arg {
			return []string{name}, nil
		}
	}

	return nil, fmt.Errorf("unknown platform %q, use android, iphone or omit for all", arg)
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [platform]",
		Short: "Check system dependencies",
		Long: `Check that the tools and devices needed for a platform are available.

This command verifies:
- ADB (Android Debug Bridge) and an authorized device for Android support
- iOS WebKit Debug Proxy for iOS support

You can check a specific platform or all platforms:
  tab-transfer check           # Check all platforms
  tab-transfer check android   # Check only Android dependencies
  tab-transfer check iphone    # Check only iOS dependencies
  tab-transfer check legacy    # Check the legacy Android path`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) > 0 {
				arg = args[0]
			}

			names, err := checkPlatforms(arg)
			if err != nil {
				return err
			}

			var errs []error
			for _, name := range names {
				res, err := a.check(cmd.Context(), name)
				if err != nil {
					errs = append(errs, err)
					a.out.Warning("%s: %s", name, detail(res, err))
					for _, hint := range installHints[name] {
						a.out.Note("  %s", hint)
					}
					continue
				}
				a.out.Success("%s: %s", name, res.Detail)
			}

			return errors.Join(errs...)
		},
	}
}

func (a *app) check(ctx context.Context, name string) (platform.CheckResult, error) {
	cfg := config.Default()

	drv, err := driver.New(name, cfg, a.driverOpts...)
	if err != nil {
		return platform.CheckResult{}, err
	}

	return service.New(cfg, a.out).Check(ctx, drv)
}

func detail(res platform.CheckResult, err error) string {
	if res.Detail != "" {
		return res.Detail
	}

	return err.Error()
}
