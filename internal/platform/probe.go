package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProbeTimeout bounds every environment probe, independently of the fetch timeout
const ProbeTimeout = 5 * time.Second

// ErrProbeMisconfigured means the probe itself cannot run
var ErrProbeMisconfigured = errors.New("probe misconfigured")

// CheckResult is the outcome of one environment check
type CheckResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func ok(format string, args ...any) CheckResult {
	return CheckResult{OK: true, Detail: fmt.Sprintf(format, args...)}
}

func notReady(format string, args ...any) CheckResult {
	return CheckResult{OK: false, Detail: fmt.Sprintf(format, args...)}
}

// Probe answers whether the host can set up a device channel. A failed check
// is reported as CheckResult{OK: false}; errors are reserved for probes that
// cannot run at all.
type Probe interface {
	Check(ctx context.Context) (CheckResult, error)
}

// Device is one line of `adb devices`
type Device struct {
	Serial string
	State  string
}

// ParseDevices parses the output of `adb devices`
func ParseDevices(output string) []Device {
	var devices []Device

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}

	return devices
}

// ADBProbe checks for a working adb binary and, optionally, an authorized device
type ADBProbe struct {
	runner        Runner
	tool          Tool
	requireDevice bool
	serial        string
}

func NewADBProbe(runner Runner, requireDevice bool, serial string) *ADBProbe {
	return &ADBProbe{
		runner:        runner,
		tool:          ADBTool,
		requireDevice: requireDevice,
		serial:        serial,
	}
}

func (p *ADBProbe) Check(ctx context.Context) (CheckResult, error) {
	if p == nil || p.runner == nil {
		return CheckResult{}, fmt.Errorf("%w: adb probe has no runner", ErrProbeMisconfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	path, err := p.tool.Find()
	if err != nil {
		return notReady("%v. %s", err, p.tool.Hint), nil
	}

	out, err := p.runner.Output(ctx, path, "version")
	if err != nil {
		return notReady("adb command failed: %v", err), nil
	}
	if !strings.Contains(string(out), "Android Debug Bridge") {
		return notReady("%s did not return the expected version output", path), nil
	}

	if !p.requireDevice {
		return ok("adb available at %s", path), nil
	}

	out, err = p.runner.Output(ctx, path, "devices")
	if err != nil {
		return notReady("failed to list adb devices: %v", err), nil
	}

	return p.evaluate(ParseDevices(string(out))), nil
}

func (p *ADBProbe) evaluate(devices []Device) CheckResult {
	var ready, unauthorized []string

	for _, d := range devices {
		if p.serial != "" && d.Serial != p.serial {
			continue
		}
		switch d.State {
		case "device":
			ready = append(ready, d.Serial)
		case "unauthorized":
			unauthorized = append(unauthorized, d.Serial)
		}
	}

	switch {
	case len(ready) > 0:
		return ok("adb device ready: %s", strings.Join(ready, ", "))
	case len(unauthorized) > 0:
		return notReady("Android device %s found but unauthorized. Check the device screen for the USB debugging prompt, "+
			"tap 'Allow' and keep the device unlocked.", strings.Join(unauthorized, ", "))
	case p.serial != "":
		return notReady("Android device %s not found. Connect it via USB and enable USB debugging.", p.serial)
	default:
		return notReady("No Android device found. Connect a device via USB, enable USB debugging in Developer Options " +
			"and use a cable that supports data transfer.")
	}
}

// IDeviceTool lists iOS devices. It ships with libimobiledevice, which the
// proxy depends on, but is optional for the probe.
var IDeviceTool = Tool{Name: "idevice_id", EnvVar: "IDEVICE_ID_PATH"}

// ProxyProbe checks for a working ios_webkit_debug_proxy
type ProxyProbe struct {
	runner  Runner
	tool    Tool
	devices Tool
}

func NewProxyProbe(runner Runner) *ProxyProbe {
	return &ProxyProbe{
		runner:  runner,
		tool:    ProxyTool,
		devices: IDeviceTool,
	}
}

func (p *ProxyProbe) Check(ctx context.Context) (CheckResult, error) {
	if p == nil || p.runner == nil {
		return CheckResult{}, fmt.Errorf("%w: proxy probe has no runner", ErrProbeMisconfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	path, err := p.tool.Find()
	if err != nil {
		return notReady("%v. %s", err, p.tool.Hint), nil
	}

	if _, err := p.runner.Output(ctx, path, "--help"); err != nil {
		return notReady("ios_webkit_debug_proxy command failed: %v", err), nil
	}

	lister, err := p.devices.Find()
	if err != nil {
		return ok("ios_webkit_debug_proxy available at %s (device list unavailable, %s not found)", path, p.devices.Name), nil
	}

	out, err := p.runner.Output(ctx, lister, "-l")
	if err != nil {
		return notReady("failed to list iOS devices: %v", err), nil
	}

	udids := strings.Fields(string(out))
	if len(udids) == 0 {
		return notReady("No iOS device found. Connect the device via USB, unlock and trust this computer, " +
			"and enable Web Inspector in Safari settings."), nil
	}

	return ok("ios_webkit_debug_proxy available, device ready: %s", strings.Join(udids, ", ")), nil
}
