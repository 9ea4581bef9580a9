// Package platform locates the host tools needed to reach a device and
// probes whether they are usable.
package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	ADB         = "adb"
	WebKitProxy = "ios_webkit_debug_proxy"
)

// ErrToolNotFound is returned when a required binary cannot be located
var ErrToolNotFound = errors.New("tool not found")

// Tool describes how to locate one host binary. Extra returns additional
// absolute candidates that are checked before PATH.
type Tool struct {
	Name   string
	EnvVar string
	Extra  func() []string
	Hint   string
}

var (
	ADBTool = Tool{
		Name:   ADB,
		EnvVar: "ADB_PATH",
		Extra:  androidSDKCandidates,
		Hint: "Install with:\n- macOS: brew install --cask android-platform-tools\n" +
			"- Linux: sudo apt install android-tools-adb\n" +
			"- Windows: download from developer.android.com/tools/releases/platform-tools",
	}
	ProxyTool = Tool{
		Name:   WebKitProxy,
		EnvVar: "IOS_WEBKIT_DEBUG_PROXY_PATH",
		Hint: "Install with:\n- macOS: brew install ios-webkit-debug-proxy\n" +
			"- Linux: see github.com/google/ios-webkit-debug-proxy for build instructions",
	}
)

// Find returns the path of the tool: the env override, then SDK locations,
// then PATH.
func (t Tool) Find() (string, error) {
	if t.EnvVar != "" {
		if p := os.Getenv(t.EnvVar); p != "" {
			if isExecutableFile(p) {
				return p, nil
			}
			return "", fmt.Errorf("%w: %s=%s is not an executable file", ErrToolNotFound, t.EnvVar, p)
		}
	}

	if t.Extra != nil {
		for _, p := range t.Extra() {
			if isExecutableFile(p) {
				return p, nil
			}
		}
	}

	p, err := exec.LookPath(t.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not in PATH", ErrToolNotFound, t.Name)
	}

	return p, nil
}

func androidSDKCandidates() []string {
	bin := ADB
	if runtime.GOOS == "windows" {
		bin = "adb.exe"
	}

	var out []string
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if root := os.Getenv(env); root != "" {
			out = append(out, filepath.Join(root, "platform-tools", bin))
		}
	}

	return out
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}

	if runtime.GOOS == "windows" {
		return true
	}

	return info.Mode().Perm()&0o111 != 0
}
