package cmd

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kazuph/tab-transfer/internal/console"
	"github.com/kazuph/tab-transfer/internal/driver"
	"github.com/kazuph/tab-transfer/internal/logger"
	"github.com/kazuph/tab-transfer/internal/service"
)

// CompatEnv enables the legacy copy-tabs command when set to a true value
const CompatEnv = "TAB_TRANSFER_COMPAT"

// app carries what every command shares. Tests replace the writer, clock
// and driver options.
type app struct {
	stdout     io.Writer
	out        console.Output
	now        func() time.Time
	driverOpts []driver.Option

	debug  bool
	compat bool
}

func newApp(stdout io.Writer) *app {
	return &app{
		stdout: stdout,
		out:    console.New(stdout, false),
		now:    time.Now,
	}
}

// NewRootCmd builds the command tree. The legacy command only exists when
// compat is true, so it is decided before any flag is parsed.
func NewRootCmd(stdout io.Writer, compat bool) *cobra.Command {
	return newApp(stdout).rootCmd(compat)
}

func (a *app) rootCmd(compat bool) *cobra.Command {
	root := &cobra.Command{
		Use:   "tab-transfer",
		Short: "Copy open browser tabs from Android and iOS devices, and reopen them",
		Long: `tab-transfer copies the list of open tabs from Chrome on Android (via ADB)
or from Safari/Chrome on iOS (via ios_webkit_debug_proxy) into a JSON file,
and can reopen a saved list on a device.

This tool supports:
- Copying tabs from Android Chrome via ADB
- Copying tabs from iOS Chrome/Safari via iOS WebKit Debug Proxy
- Reopening saved tabs on mobile devices
- Environment dependency checking
- An MCP server exposing the same operations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.debug {
				logger.SetDebug(true)
			}
			a.out = console.New(a.stdout, a.debug)
		},
	}

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug output")
	root.PersistentFlags().BoolVar(&a.compat, "compat", compat, "Enable compatibility mode (registers the legacy copy-tabs command)")

	root.AddCommand(a.copyCmd(androidCommand))
	root.AddCommand(a.copyCmd(iphoneCommand))
	if compat {
		root.AddCommand(a.copyCmd(legacyCommand))
	}
	root.AddCommand(a.reopenCmd())
	root.AddCommand(a.checkCmd())
	root.AddCommand(a.mcpCmd())

	return root
}

// CompatEnabled reports whether compatibility mode is requested on the
// command line or in the environment
func CompatEnabled(args []string, getenv func(string) string) bool {
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if arg == "--compat" {
			return true
		}
		if v, ok := strings.CutPrefix(arg, "--compat="); ok {
			// cobra rejects a value ParseBool cannot read, so only a valid one decides.
			if enabled, err := strconv.ParseBool(v); err == nil {
				return enabled
			}
		}
	}

	enabled, err := strconv.ParseBool(getenv(CompatEnv))
	return err == nil && enabled
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	a := newApp(os.Stdout)
	root := a.rootCmd(CompatEnabled(os.Args[1:], os.Getenv))

	err := root.Execute()
	if err != nil {
		a.report(err)
	}

	return service.ExitCode(err)
}

func (a *app) report(err error) {
	a.out.Error("%v", err)

	if errors.Is(err, service.ErrEnvironmentNotReady) {
		a.out.Note("Run `tab-transfer check` for installation hints, or pass --skip-check.")
	}
}
