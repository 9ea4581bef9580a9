package platform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/platform/platformtest"
)

const adbVersion = "Android Debug Bridge version 1.0.41\nVersion 34.0.5-10900879\n"

func TestADBProbeToolMissing(t *testing.T) {
	t.Setenv("ADB_PATH", "")
	t.Setenv("ANDROID_HOME", "")
	t.Setenv("ANDROID_SDK_ROOT", "")
	t.Setenv("PATH", t.TempDir())

	runner := platformtest.NewRunner()
	res, err := platform.NewADBProbe(runner, true, "").Check(context.Background())

	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "tool not found")
	assert.Empty(t, runner.Calls())
}

func TestADBProbe(t *testing.T) {
	tests := []struct {
		name          string
		requireDevice bool
		serial        string
		version       string
		versionErr    error
		devices       string
		wantOK        bool
		wantDetail    string
	}{
		{name: "binary only", version: adbVersion, wantOK: true, wantDetail: "adb available"},
		{name: "broken binary", versionErr: errors.New("exit status 1"), wantDetail: "adb command failed"},
		{name: "unexpected version output", version: "hello\n", wantDetail: "expected version output"},
		{
			name: "device ready", requireDevice: true, version: adbVersion,
			devices: "List of devices attached\nR58M\tdevice\n", wantOK: true, wantDetail: "R58M",
		},
		{
			name: "no device", requireDevice: true, version: adbVersion,
			devices: "List of devices attached\n\n", wantDetail: "No Android device found",
		},
		{
			name: "unauthorized", requireDevice: true, version: adbVersion,
			devices: "List of devices attached\nR58M\tunauthorized\n", wantDetail: "unauthorized",
		},
		{
			name: "serial not attached", requireDevice: true, serial: "XYZ", version: adbVersion,
			devices: "List of devices attached\nR58M\tdevice\n", wantDetail: "XYZ not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platformtest.Executable(t, "ADB_PATH", "adb")

			runner := platformtest.NewRunner().
				On("version", tt.version, tt.versionErr).
				On("devices", tt.devices, nil)

			res, err := platform.NewADBProbe(runner, tt.requireDevice, tt.serial).Check(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, res.OK)
			assert.Contains(t, res.Detail, tt.wantDetail)
			assert.Equal(t, tt.requireDevice && tt.versionErr == nil && tt.version == adbVersion, runner.Ran("devices"))
		})
	}
}

func TestProbeWithoutRunnerIsMisconfigured(t *testing.T) {
	_, err := platform.NewADBProbe(nil, false, "").Check(context.Background())
	assert.ErrorIs(t, err, platform.ErrProbeMisconfigured)

	_, err = platform.NewProxyProbe(nil).Check(context.Background())
	assert.ErrorIs(t, err, platform.ErrProbeMisconfigured)
}

func TestProxyProbe(t *testing.T) {
	t.Run("proxy missing", func(t *testing.T) {
		t.Setenv("IOS_WEBKIT_DEBUG_PROXY_PATH", "")
		t.Setenv("PATH", t.TempDir())

		res, err := platform.NewProxyProbe(platformtest.NewRunner()).Check(context.Background())
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Contains(t, res.Detail, "ios_webkit_debug_proxy")
	})

	t.Run("no device lister", func(t *testing.T) {
		platformtest.Executable(t, "IOS_WEBKIT_DEBUG_PROXY_PATH", "ios_webkit_debug_proxy")
		t.Setenv("IDEVICE_ID_PATH", "")
		t.Setenv("PATH", t.TempDir())

		res, err := platform.NewProxyProbe(platformtest.NewRunner().On("--help", "usage", nil)).Check(context.Background())
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Contains(t, res.Detail, "device list unavailable")
	})

	t.Run("no device attached", func(t *testing.T) {
		platformtest.Executable(t, "IOS_WEBKIT_DEBUG_PROXY_PATH", "ios_webkit_debug_proxy")
		platformtest.Executable(t, "IDEVICE_ID_PATH", "idevice_id")

		runner := platformtest.NewRunner().On("--help", "usage", nil).On("-l", "\n", nil)
		res, err := platform.NewProxyProbe(runner).Check(context.Background())
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Contains(t, res.Detail, "No iOS device found")
	})

	t.Run("device attached", func(t *testing.T) {
		platformtest.Executable(t, "IOS_WEBKIT_DEBUG_PROXY_PATH", "ios_webkit_debug_proxy")
		platformtest.Executable(t, "IDEVICE_ID_PATH", "idevice_id")

		runner := platformtest.NewRunner().On("--help", "usage", nil).On("-l", "00008030-001A\n", nil)
		res, err := platform.NewProxyProbe(runner).Check(context.Background())
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Contains(t, res.Detail, "00008030-001A")
	})
}
