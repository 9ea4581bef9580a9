package cmd

import (
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

// copyCommand describes one copy command and the driver it runs
type copyCommand struct {
	use     string
	driver  string
	aliases []string
	short   string
	long    string
	socket  bool
	serial  bool
}

var androidCommand = copyCommand{
	use:    "android [file]",
	driver: "android",
	short:  "Copy tabs from Android Chrome via ADB",
	long: `Copy all open tabs from Chrome on Android to a file using ADB.

Requirements:
- Android device with USB debugging enabled
- ADB (Android Debug Bridge) installed (ADB_PATH, ANDROID_HOME or PATH)
- Chrome browser running on the device
- USB connection between device and computer

This command will:
1. Check that adb and an authorized device are available
2. Forward the Chrome DevTools socket to a local port
3. Retrieve all open tabs
4. Write them as JSON (or YAML for .yaml/.yml files)`,
	socket: true,
	serial: true,
}

var iphoneCommand = copyCommand{
	use:     "iphone [file]",
	driver:  "iphone",
	aliases: []string{"ios"},
	short:   "Copy tabs from iOS Safari/Chrome via iOS WebKit Debug Proxy",
	long: `Copy all open tabs from Safari or Chrome on iOS to a file using
ios_webkit_debug_proxy.

Requirements:
- iOS device with Web Inspector enabled (Settings > Safari > Advanced)
- ios_webkit_debug_proxy installed (IOS_WEBKIT_DEBUG_PROXY_PATH or PATH)
- USB connection between device and computer`,
}

var legacyCommand = copyCommand{
	use:    "copy-tabs [file]",
	driver: "legacy",
	short:  "Copy tabs from Android Chrome (legacy behavior)",
	long: `Copy tabs from Android Chrome the way earlier releases did: the
environment check only requires adb, the port forward targets the default
device and tabs are reopened with GET requests.`,
	socket: true,
}

type copyFlags struct {
	port      int
	timeout   int
	date      bool
	noDate    bool
	skipCheck bool
	socket    string
	serial    string
}

func (f copyFlags) options(debug bool) config.Options {
	return config.Options{
		Port:           f.port,
		TimeoutSeconds: f.timeout,
		Date:           f.date && !f.noDate,
		SkipCheck:      f.skipCheck,
		Socket:         f.socket,
		Serial:         f.serial,
		Debug:          debug,
	}
}

func addConnectionFlags(cmd *cobra.Command, f *copyFlags, def copyCommand) {
	cmd.Flags().IntVarP(&f.port, "port", "p", config.DefaultPort, "Local port for the device debugging endpoint")
	cmd.Flags().IntVarP(&f.timeout, "timeout", "t", int(config.DefaultTimeout.Seconds()), "Network timeout in seconds (minimum 10)")
	cmd.Flags().BoolVar(&f.skipCheck, "skip-check", false, "Skip the environment check")
	if def.socket {
		cmd.Flags().StringVarP(&f.socket, "socket", "s", config.DefaultSocket, "Abstract socket Chrome listens on")
	}
	if def.serial {
		cmd.Flags().StringVar(&f.serial, "serial", "", "Serial of the device to use when several are attached")
	}
}

func (a *app) copyCmd(def copyCommand) *cobra.Command {
	var f copyFlags

	cmd := &cobra.Command{
		Use:     def.use,
		Aliases: def.aliases,
		Short:   def.short,
		Long:    def.long,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := tabs.DefaultFile
			if len(args) > 0 {
				file = args[0]
			}

			cfg := config.Resolve(f.options(a.debug), a.now(), a.out)

			drv, err := driver.New(def.driver, cfg, a.driverOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			records, err := service.New(cfg, a.out).Run(ctx, drv)
			if err != nil {
				return err
			}

			path := tabs.DatedPath(file, cfg.FileDate)
			if err := format.WriteFile(path, records); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			a.out.Success("Copied %d tabs from %s to %s.", len(records), drv.Name(), path)
			return nil
		},
	}

	addConnectionFlags(cmd, &f, def)
	cmd.Flags().BoolVar(&f.date, "date", true, "Append the current date to the file name")
	cmd.Flags().BoolVar(&f.noDate, "no-date", false, "Do not append the current date to the file name")

	return cmd
}
