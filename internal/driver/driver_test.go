package driver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kazuph/tab-transfer/internal/channel"
	"github.com/kazuph/tab-transfer/internal/channel/channeltest"
	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/console"
	"github.com/kazuph/tab-transfer/internal/logger"
	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

type mockProbe struct {
	mock.Mock
}

func (m *mockProbe) Check(ctx context.Context) (platform.CheckResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(platform.CheckResult), args.Error(1)
}

func newTestDriver(t *testing.T, name string, ch *channeltest.Channel, probe platform.Probe) Driver {
	t.Helper()

	opts := []Option{
		WithLogger(logger.Nop()),
		WithReopenInterval(0),
		WithChannel(func() channel.Channel { return ch }),
	}
	if probe != nil {
		opts = append(opts, WithProbe(probe))
	}

	d, err := New(name, config.Default(), opts...)
	require.NoError(t, err)

	return d
}

func TestFetchTabsScenario(t *testing.T) {
	ch := channeltest.New().On(http.MethodGet, AndroidListPath,
		`[{"title":"Example","url":"https://example.com"},{"title":"","url":"https://a.test"}]`, nil)
	d := newTestDriver(t, "android", ch, nil)

	records, err := d.FetchTabs(context.Background(), console.NewRecorder(false))
	require.NoError(t, err)

	assert.Equal(t, []tabs.Record{
		{Title: "Example", URL: "https://example.com"},
		{Title: "", URL: "https://a.test"},
	}, records)
	assert.Equal(t, 1, ch.Opens())
	assert.Equal(t, 1, ch.Closes())
	assert.Equal(t, StateClosed, d.State())
}

func TestFetchTabsPreservesOrderWithoutEmptyURLs(t *testing.T) {
	ch := channeltest.New().On(http.MethodGet, IphoneListPath, `[
		{"title":"c","url":"https://c.test"},
		{"title":"sw","type":"service_worker","url":""},
		{"title":"a","url":"https://a.test"},
		{"title":"a","url":"https://a.test"},
		{"title":"b","url":"https://b.test"}
	]`, nil)
	d := newTestDriver(t, "iphone", ch, nil)

	records, err := d.FetchTabs(context.Background(), console.NewRecorder(false))
	require.NoError(t, err)

	var got []string
	for _, r := range records {
		assert.NotEmpty(t, r.URL)
		got = append(got, r.URL)
	}
	assert.Equal(t, []string{"https://c.test", "https://a.test", "https://a.test", "https://b.test"}, got)
}

func TestFetchTabsFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(ch *channeltest.Channel)
		wantKind   Kind
		wantStage  Stage
		wantOpens  int
		wantCloses int
	}{
		{
			name: "channel setup fails",
			setup: func(ch *channeltest.Channel) {
				ch.OpenErr = &channel.Error{Kind: channel.SetupFailed, Op: "open", Err: errors.New("no devices/emulators found")}
			},
			wantKind: ConnectionFailed, wantStage: StageConnect, wantOpens: 1, wantCloses: 0,
		},
		{
			name: "channel setup times out",
			setup: func(ch *channeltest.Channel) {
				ch.OpenErr = &channel.Error{Kind: channel.Timeout, Op: "open", Err: context.DeadlineExceeded}
			},
			wantKind: ConnectionFailed, wantStage: StageConnect, wantOpens: 1, wantCloses: 0,
		},
		{
			name: "malformed payload",
			setup: func(ch *channeltest.Channel) {
				ch.On(http.MethodGet, AndroidListPath, `{"oops":true}`, nil)
			},
			wantKind: ProtocolError, wantStage: StageFetch, wantOpens: 1, wantCloses: 1,
		},
		{
			name: "missing url",
			setup: func(ch *channeltest.Channel) {
				ch.On(http.MethodGet, AndroidListPath, `[{"type":"page","title":"x"}]`, nil)
			},
			wantKind: ProtocolError, wantStage: StageFetch, wantOpens: 1, wantCloses: 1,
		},
		{
			name: "request timeout",
			setup: func(ch *channeltest.Channel) {
				ch.On(http.MethodGet, AndroidListPath, "", &channel.Error{Kind: channel.Timeout, Op: "request", Err: context.DeadlineExceeded})
			},
			wantKind: Timeout, wantStage: StageFetch, wantOpens: 1, wantCloses: 1,
		},
		{
			name: "endpoint refused",
			setup: func(ch *channeltest.Channel) {
				ch.On(http.MethodGet, AndroidListPath, "", &channel.Error{Kind: channel.Unreachable, Op: "request", Err: errors.New("connection refused")})
			},
			wantKind: ConnectionFailed, wantStage: StageFetch, wantOpens: 1, wantCloses: 1,
		},
		{
			name: "close fails after fetch",
			setup: func(ch *channeltest.Channel) {
				ch.On(http.MethodGet, AndroidListPath, `[]`, nil)
				ch.CloseErr = &channel.Error{Kind: channel.SetupFailed, Op: "close", Err: errors.New("adb gone")}
			},
			wantKind: ConnectionFailed, wantStage: StageClose, wantOpens: 1, wantCloses: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := channeltest.New()
			tt.setup(ch)
			d := newTestDriver(t, "android", ch, nil)

			_, err := d.FetchTabs(context.Background(), console.NewRecorder(false))
			require.Error(t, err)

			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantKind, de.Kind)
			assert.Equal(t, tt.wantStage, de.Stage)
			assert.Equal(t, tt.wantOpens, ch.Opens())
			assert.Equal(t, tt.wantCloses, ch.Closes())
			assert.Equal(t, StateFailed, d.State())
			assert.Equal(t, tt.wantKind, d.(*AndroidDriver).Failure())
		})
	}
}

func TestDriverIsSingleUse(t *testing.T) {
	ch := channeltest.New().On(http.MethodGet, AndroidListPath, `[]`, nil)
	d := newTestDriver(t, "legacy", ch, nil)

	_, err := d.FetchTabs(context.Background(), console.NewRecorder(false))
	require.NoError(t, err)

	_, err = d.FetchTabs(context.Background(), console.NewRecorder(false))
	assert.ErrorIs(t, err, ErrDriverUsed)
	_, err = d.ReopenTabs(context.Background(), nil, console.NewRecorder(false))
	assert.ErrorIs(t, err, ErrDriverUsed)
	_, err = d.CheckEnvironment(context.Background())
	assert.ErrorIs(t, err, ErrDriverUsed)
	assert.Equal(t, 1, ch.Opens())
}

func TestCheckEnvironment(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		probe := &mockProbe{}
		probe.On("Check", mock.Anything).Return(platform.CheckResult{OK: true, Detail: "adb device ready"}, nil).Once()

		d := newTestDriver(t, "android", channeltest.New(), probe)
		res, err := d.CheckEnvironment(context.Background())
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, StateEnvironmentChecked, d.State())
		probe.AssertExpectations(t)
	})

	t.Run("not ready leaves driver idle", func(t *testing.T) {
		probe := &mockProbe{}
		probe.On("Check", mock.Anything).Return(platform.CheckResult{OK: false, Detail: "bridge tool not found"}, nil)

		d := newTestDriver(t, "android", channeltest.New(), probe)
		res, err := d.CheckEnvironment(context.Background())
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, "bridge tool not found", res.Detail)
		assert.Equal(t, StateIdle, d.State())
	})

	t.Run("probe cannot run", func(t *testing.T) {
		probe := &mockProbe{}
		probe.On("Check", mock.Anything).Return(platform.CheckResult{}, platform.ErrProbeMisconfigured)

		d := newTestDriver(t, "iphone", channeltest.New(), probe)
		_, err := d.CheckEnvironment(context.Background())
		assert.ErrorIs(t, err, platform.ErrProbeMisconfigured)
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, EnvironmentCheckFailed, kind)
		assert.Equal(t, StateFailed, d.State())
	})
}

func newTab(u string) string {
	return "/json/new?" + url.QueryEscape(u)
}

func TestReopenTabsContinuesPastFailures(t *testing.T) {
	records := []tabs.Record{
		{Title: "one", URL: "https://one.test"},
		{Title: "two", URL: "https://two.test"},
		{Title: "three", URL: "https://three.test"},
		{Title: "four", URL: "https://four.test"},
	}
	ch := channeltest.New().
		On(http.MethodPut, newTab("https://one.test"), `{}`, nil).
		On(http.MethodPut, newTab("https://two.test"), "", &channel.Error{Kind: channel.Unreachable, Op: "request", Err: errors.New("reset")}).
		On(http.MethodPut, newTab("https://three.test"), `{}`, nil).
		On(http.MethodPut, newTab("https://four.test"), `{}`, nil)
	d := newTestDriver(t, "android", ch, nil)
	out := console.NewRecorder(false)

	result, err := d.ReopenTabs(context.Background(), records, out)

	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, PartialReopenFailure, de.Kind)
	require.Len(t, de.Failed, 1)
	assert.Equal(t, records[1], de.Failed[0].Record)

	assert.Len(t, result.Opened, 3)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, records[1], result.Failed[0].Record)
	assert.Len(t, ch.Requests(), 4)
	assert.Equal(t, 1, out.Count(console.LevelWarning))
	assert.Equal(t, 1, ch.Closes())
	assert.Equal(t, StateClosed, d.State())
}

func TestReopenTabsSkipsInvalidRecords(t *testing.T) {
	ch := channeltest.New().On(http.MethodGet, newTab("https://ok.test"), `{}`, nil)
	d := newTestDriver(t, "legacy", ch, nil)

	result, err := d.ReopenTabs(context.Background(), []tabs.Record{{Title: "bad"}, {URL: "https://ok.test"}}, console.NewRecorder(false))

	kind, _ := KindOf(err)
	assert.Equal(t, PartialReopenFailure, kind)
	assert.Equal(t, []tabs.Record{{URL: "https://ok.test"}}, result.Opened)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, tabs.ErrEmptyURL)
	assert.Equal(t, []string{"GET " + newTab("https://ok.test")}, ch.Requests())
}

func TestReopenTabsAllSucceed(t *testing.T) {
	ch := channeltest.New().On(http.MethodPut, newTab("https://ok.test"), `{}`, nil)
	d := newTestDriver(t, "android", ch, nil)
	out := console.NewRecorder(true)

	result, err := d.ReopenTabs(context.Background(), []tabs.Record{{URL: "https://ok.test"}}, out)
	require.NoError(t, err)
	assert.Len(t, result.Opened, 1)
	assert.Empty(t, result.Failed)
	assert.Positive(t, out.Count(console.LevelNote))
	assert.Equal(t, StateClosed, d.State())
}

func TestReopenTabsConnectionFailure(t *testing.T) {
	ch := channeltest.New()
	ch.OpenErr = &channel.Error{Kind: channel.SetupFailed, Op: "open", Err: errors.New("adb not running")}
	d := newTestDriver(t, "android", ch, nil)

	_, err := d.ReopenTabs(context.Background(), []tabs.Record{{URL: "https://ok.test"}}, console.NewRecorder(false))
	kind, _ := KindOf(err)
	assert.Equal(t, ConnectionFailed, kind)
	assert.Equal(t, 0, ch.Closes())
}

func TestIphoneReopenOverInspector(t *testing.T) {
	stream := &channeltest.Stream{Reply: func(cmd map[string]any) []any {
		return []any{map[string]any{"id": cmd["id"], "result": map[string]any{"wasThrown": false}}}
	}}
	ch := channeltest.New().On(http.MethodGet, IphoneListPath,
		`[{"title":"Start","url":"https://start.test","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/page/1"}]`, nil)
	ch.StreamFn = func(string) (channel.Stream, error) { return stream, nil }
	d := newTestDriver(t, "ios", ch, nil)

	result, err := d.ReopenTabs(context.Background(), []tabs.Record{{URL: "https://a.test"}, {URL: "https://b.test"}}, console.NewRecorder(false))
	require.NoError(t, err)
	assert.Len(t, result.Opened, 2)
	assert.Len(t, stream.Sent(), 2)
	assert.True(t, stream.Closed())
	assert.Equal(t, 1, ch.Closes())
}

func TestIphoneReopenWithoutInspectablePage(t *testing.T) {
	ch := channeltest.New().On(http.MethodGet, IphoneListPath, `[]`, nil)
	d := newTestDriver(t, "iphone", ch, nil)

	_, err := d.ReopenTabs(context.Background(), []tabs.Record{{URL: "https://a.test"}}, console.NewRecorder(false))
	kind, _ := KindOf(err)
	assert.Equal(t, ProtocolError, kind)
	assert.Equal(t, 1, ch.Closes())
}

func TestReopenPacing(t *testing.T) {
	ch := channeltest.New().On(http.MethodPut, newTab("https://ok.test"), `{}`, nil)
	d := NewAndroidDriver(config.Default(),
		WithLogger(logger.Nop()),
		WithReopenInterval(20*time.Millisecond),
		WithChannel(func() channel.Channel { return ch }),
	)

	records := []tabs.Record{{URL: "https://ok.test"}, {URL: "https://ok.test"}, {URL: "https://ok.test"}}
	start := time.Now()
	_, err := d.ReopenTabs(context.Background(), records, console.NewRecorder(false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestVerboseNotes(t *testing.T) {
	quiet := console.NewRecorder(false)
	ch := channeltest.New().On(http.MethodGet, AndroidListPath, `[]`, nil)
	_, err := newTestDriver(t, "android", ch, nil).FetchTabs(context.Background(), quiet)
	require.NoError(t, err)
	assert.Empty(t, quiet.Messages())

	verbose := console.NewRecorder(true)
	ch = channeltest.New().On(http.MethodGet, AndroidListPath, `[]`, nil)
	_, err = newTestDriver(t, "android", ch, nil).FetchTabs(context.Background(), verbose)
	require.NoError(t, err)
	assert.Equal(t, 3, verbose.Count(console.LevelNote))
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"android", "iphone", "legacy"}, Names())

	for name, want := range map[string]string{"android": "android", "ios": "iphone", " iPhone ": "iphone", "legacy": "legacy"} {
		d, err := New(name, config.Default(), WithLogger(logger.Nop()))
		require.NoError(t, err)
		assert.Equal(t, want, d.Name())
		assert.Equal(t, StateIdle, d.State())
	}

	_, err := New("blackberry", config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "android, iphone, legacy")
}

func TestErrorStrings(t *testing.T) {
	err := &Error{Kind: ProtocolError, Stage: StageFetch, Err: errors.New("bad json")}
	assert.Equal(t, "fetch: protocol error: bad json", err.Error())
	assert.Equal(t, "kind(0)", Kind(0).String())
	assert.Equal(t, "environment checked", StateEnvironmentChecked.String())
}
